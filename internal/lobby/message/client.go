package message

// Isso aqui são as mensagens que vão no sentido servidor -> cliente.

import (
	"encoding/json"
	"fmt"

	"retroroyale/internal/network"
)

// WelcomePayload confirma a entrada e informa o ID atribuído.
type WelcomePayload struct {
	PlayerID string     `json:"player_id"`
	State    LobbyState `json:"state"`
}

// RejectPayload explica por que a conexão não foi aceita.
type RejectPayload struct {
	Reason string `json:"reason"`
}

// LobbyStatePayload embrulha o estado do lobby para difusão.
type LobbyStatePayload struct {
	State LobbyState `json:"state"`
}

// MatchStartPayload embrulha o plano de partida.
type MatchStartPayload struct {
	Match MatchPlan `json:"match"`
}

// MatchStatePayload embrulha um snapshot autoritativo.
type MatchStatePayload struct {
	State Snapshot `json:"state"`
}

// DuelRequestPayload notifica o alvo de um desafio pendente.
type DuelRequestPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DuelStartPayload anuncia o início de um duelo. A roleta (wheel) e o seed
// do giro vão juntos para que todos os clientes vejam a mesma animação e
// cheguem ao mesmo minigame selecionado.
type DuelStartPayload struct {
	DuelID        string   `json:"duel_id"`
	Participants  []string `json:"participants"`
	Seed          uint64   `json:"seed"`
	WheelEntries  []string `json:"wheel_entries"`
	WheelSpinSeed uint64   `json:"wheel_spin_seed"`
	SelectedEntry string   `json:"selected_entry"`
}

// DuelRoundResultPayload é o resultado de uma rodada (melhor de 3).
type DuelRoundResultPayload struct {
	DuelID  string            `json:"duel_id"`
	Round   int               `json:"round"`
	Choices map[string]string `json:"choices"`
	Winner  string            `json:"winner,omitempty"` // vazio em empate
	Scores  map[string]int    `json:"scores"`
}

// DuelResolvedPayload é o desfecho final de um duelo.
type DuelResolvedPayload struct {
	DuelID  string   `json:"duel_id"`
	Winner  string   `json:"winner"`
	Loser   string   `json:"loser"`
	Entries []string `json:"entries,omitempty"`
	Forfeit bool     `json:"forfeit,omitempty"`
}

// MinigameStartPayload entrega o payload construído pelo hook do minigame.
type MinigameStartPayload struct {
	SessionID    string          `json:"session_id"`
	Minigame     string          `json:"minigame"`
	Participants []string        `json:"participants"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// MinigameResolvedPayload é o desfecho de uma sessão de minigame.
type MinigameResolvedPayload struct {
	SessionID string          `json:"session_id"`
	Minigame  string          `json:"minigame"`
	Winner    string          `json:"winner,omitempty"`
	Loser     string          `json:"loser,omitempty"`
	Outcome   json.RawMessage `json:"outcome,omitempty"`
}

// EliminatedPayload anuncia a eliminação de um ator.
type EliminatedPayload struct {
	PlayerID string `json:"player_id"`
}

// PlayerLeftPayload anuncia a saída de um participante.
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
}

// MatchOverPayload fecha a partida com o vencedor (se houver).
type MatchOverPayload struct {
	Winner    string `json:"winner,omitempty"`
	NPCWinner bool   `json:"npc_winner,omitempty"`
}

// ErrorClientPayload define a estrutura de uma resposta de erro.
type ErrorClientPayload struct {
	Error string `json:"error"`
}

// --- Construtores usados pelo LobbyServer ---

func CreateWelcome(playerID string, state LobbyState) network.Message {
	return network.NewMessage(TypeWelcome, WelcomePayload{PlayerID: playerID, State: state})
}

func CreateReject(reason string) network.Message {
	return network.NewMessage(TypeReject, RejectPayload{Reason: reason})
}

func CreateLobbyState(state LobbyState) network.Message {
	return network.NewMessage(TypeLobbyState, LobbyStatePayload{State: state})
}

func CreateMatchStart(plan MatchPlan) network.Message {
	return network.NewMessage(TypeMatchStart, MatchStartPayload{Match: plan})
}

func CreateMatchState(snap Snapshot) network.Message {
	return network.NewMessage(TypeMatchState, MatchStatePayload{State: snap})
}

func CreateDuelRequest(from, to string) network.Message {
	return network.NewMessage(TypeDuelRequest, DuelRequestPayload{From: from, To: to})
}

func CreateDuelStart(p DuelStartPayload) network.Message {
	return network.NewMessage(TypeDuelStart, p)
}

func CreateDuelRoundResult(p DuelRoundResultPayload) network.Message {
	return network.NewMessage(TypeDuelRoundResult, p)
}

func CreateDuelResolved(p DuelResolvedPayload) network.Message {
	return network.NewMessage(TypeDuelResult, p)
}

func CreateMinigameStart(p MinigameStartPayload) network.Message {
	return network.NewMessage(TypeMinigameStart, p)
}

func CreateMinigameResolved(p MinigameResolvedPayload) network.Message {
	return network.NewMessage(TypeMinigameResult, p)
}

func CreateEliminated(playerID string) network.Message {
	return network.NewMessage(TypeEliminated, EliminatedPayload{PlayerID: playerID})
}

func CreatePlayerLeft(playerID string) network.Message {
	return network.NewMessage(TypePlayerLeft, PlayerLeftPayload{PlayerID: playerID})
}

func CreateMatchOver(winner string, npcWinner bool) network.Message {
	return network.NewMessage(TypeMatchOver, MatchOverPayload{Winner: winner, NPCWinner: npcWinner})
}

// CreateErrorResponse usando a struct.
func CreateErrorResponse(format string, args ...interface{}) network.Message {
	return network.NewMessage(TypeError, ErrorClientPayload{Error: fmt.Sprintf(format, args...)})
}
