package lobby

import (
	"encoding/json"
	"log"

	"retroroyale/internal/lobby/message"
)

func (h *GameHandler) registerMatchHandlers() {
	h.matchRouter[message.TypeMatchInput] = handleMatchInput
	h.matchRouter[message.TypeRequestDuel] = handleRequestDuelCmd
	h.matchRouter[message.TypeDuelChoice] = handleDuelChoiceCmd
	h.matchRouter[message.TypeDuelResult] = handleDuelResultCmd
	h.matchRouter[message.TypeStartMinigame] = handleStartMinigameCmd
	h.matchRouter[message.TypeMinigameResult] = handleMinigameResultCmd

	// Trocas de prontidão/skin fora da partida continuam válidas para a
	// próxima; o cliente pode mandar do lobby pós-jogo sem erro.
	h.matchRouter[message.TypeSetReady] = handleSetReady
	h.matchRouter[message.TypeSetChar] = handleSetChar
}

// handleMatchInput repassa o vetor de movimento. É o comando mais quente do
// protocolo: sem resposta, sem log no caminho feliz.
func handleMatchInput(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.InputPayload
	if err := parseInto(payload, &req); err != nil {
		log.Printf("[Lobby %s] %v (MATCH_INPUT de %s)", h.lobbyID, err, p.ID)
		return
	}
	if h.match != nil {
		h.match.enqueue(inputMsg{pid: p.ID, x: req.X, y: req.Y})
	}
}

func handleRequestDuelCmd(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.RequestDuelPayload
	if err := parseInto(payload, &req); err != nil || req.Target == "" {
		errorTo(p, "payload de REQUEST_DUEL inválido")
		return
	}
	if h.match != nil {
		h.match.enqueue(duelRequestMsg{pid: p.ID, target: req.Target})
	}
}

func handleDuelChoiceCmd(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.DuelChoicePayload
	if err := parseInto(payload, &req); err != nil {
		errorTo(p, "payload de DUEL_CHOICE inválido")
		return
	}
	if h.match != nil {
		h.match.enqueue(duelChoiceMsg{pid: p.ID, payload: req})
	}
}

func handleDuelResultCmd(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.DuelResultPayload
	if err := parseInto(payload, &req); err != nil {
		errorTo(p, "payload de DUEL_RESULT inválido")
		return
	}
	if h.match != nil {
		h.match.enqueue(duelResultMsg{pid: p.ID, payload: req})
	}
}

func handleStartMinigameCmd(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.StartMinigamePayload
	if err := parseInto(payload, &req); err != nil || req.Minigame == "" {
		errorTo(p, "payload de START_MINIGAME inválido")
		return
	}
	if h.match != nil {
		h.match.enqueue(startMinigameMsg{pid: p.ID, payload: req})
	}
}

func handleMinigameResultCmd(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.MinigameResultPayload
	if err := parseInto(payload, &req); err != nil || req.SessionID == "" {
		errorTo(p, "payload de MINIGAME_RESULT inválido")
		return
	}
	if h.match != nil {
		h.match.enqueue(minigameResultMsg{pid: p.ID, payload: req})
	}
}
