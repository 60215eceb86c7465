package message

// Isso aqui são os payloads que vão no sentido cliente -> servidor.

import (
	"encoding/json"

	"retroroyale/internal/network"
)

// JoinPayload apresenta o jogador ao lobby.
type JoinPayload struct {
	Name     string `json:"name"`
	CharName string `json:"char_name,omitempty"`
}

// ReadyPayload liga/desliga a prontidão do jogador.
type ReadyPayload struct {
	Ready bool `json:"ready"`
}

// CharPayload troca a skin escolhida no lobby.
type CharPayload struct {
	CharName string `json:"char_name"`
}

// InputPayload é o vetor de movimento do frame atual, já normalizado
// pelo cliente para [-1, 1] em cada eixo (o servidor re-aperta mesmo assim).
type InputPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StartMatchPayload é aceito apenas do host; seed vazio gera um novo.
type StartMatchPayload struct {
	Seed string `json:"seed,omitempty"`
}

// RequestDuelPayload propõe um duelo contra outro participante.
type RequestDuelPayload struct {
	Target string `json:"target"`
}

// DuelChoicePayload é a escolha de uma rodada (pedra/papel/tesoura).
type DuelChoicePayload struct {
	DuelID string `json:"duel_id"`
	Entry  string `json:"entry"`
}

// DuelResultPayload reporta o desfecho de um duelo do ponto de vista
// de um participante. O servidor cruza os reports antes de aceitar.
type DuelResultPayload struct {
	DuelID  string `json:"duel_id"`
	Outcome string `json:"outcome"` // "win", "lose" ou "forfeit"
	Winner  string `json:"winner,omitempty"`
	Loser   string `json:"loser,omitempty"`
	Entry   string `json:"entry,omitempty"`
}

// StartMinigamePayload pede o lançamento de um minigame para um subconjunto
// de participantes. Validado contra o registry no servidor.
type StartMinigamePayload struct {
	Minigame     string   `json:"minigame"`
	Participants []string `json:"participants"`
	DuelID       string   `json:"duel_id,omitempty"`
}

// MinigameResultPayload devolve ao servidor o resultado de uma sessão.
type MinigameResultPayload struct {
	SessionID string          `json:"session_id"`
	Minigame  string          `json:"minigame"`
	Outcome   string          `json:"outcome"`
	Winner    string          `json:"winner,omitempty"`
	Loser     string          `json:"loser,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// --- Construtores usados pelo LobbyClient ---

func CreateJoin(name, charName string) network.Message {
	return network.NewMessage(TypeJoin, JoinPayload{Name: name, CharName: charName})
}

func CreateSetReady(ready bool) network.Message {
	return network.NewMessage(TypeSetReady, ReadyPayload{Ready: ready})
}

func CreateMatchInput(x, y float64) network.Message {
	return network.NewMessage(TypeMatchInput, InputPayload{X: x, Y: y})
}

func CreateStartMatch(seed string) network.Message {
	return network.NewMessage(TypeStartMatch, StartMatchPayload{Seed: seed})
}

func CreateRequestDuel(target string) network.Message {
	return network.NewMessage(TypeRequestDuel, RequestDuelPayload{Target: target})
}

func CreateDuelChoice(duelID, entry string) network.Message {
	return network.NewMessage(TypeDuelChoice, DuelChoicePayload{DuelID: duelID, Entry: entry})
}

func CreateDuelResult(p DuelResultPayload) network.Message {
	return network.NewMessage(TypeDuelResult, p)
}

func CreateMinigameResult(p MinigameResultPayload) network.Message {
	return network.NewMessage(TypeMinigameResult, p)
}
