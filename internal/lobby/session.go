package lobby

import (
	"encoding/json"
	"fmt"
	"log"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
)

// MinigameSession é uma sessão de minigame em andamento. Nasce por pedido
// explícito (START_MINIGAME) ou como braço de um duelo cuja roleta escolheu
// algo além do clássico; morre junto com o resultado, o timeout ou a queda
// de um participante.
type MinigameSession struct {
	ID           string
	Minigame     string
	Participants []string
	DuelID       string
	cap          minigame.Capability
	age          float64
}

func (s *MinigameSession) has(pid string) bool {
	for _, p := range s.Participants {
		if p == pid {
			return true
		}
	}
	return false
}

// handleStartMinigame valida e lança uma sessão pedida por um participante.
// Os erros do registry voltam pra quem pediu; ErrUnknown e
// ErrNotMultiplayerCapable são os dois únicos modos de recusa.
func (ms *MatchState) handleStartMinigame(requester string, p message.StartMinigamePayload) error {
	if ms.over {
		return fmt.Errorf("%w: partida encerrada", ErrProtocol)
	}
	participants := p.Participants
	if len(participants) == 0 {
		participants = []string{requester}
	}
	for _, pid := range participants {
		if !ms.alive(pid) {
			return fmt.Errorf("%w: participante %s fora da disputa", ErrProtocol, pid)
		}
	}
	return ms.launchMinigame(p.Minigame, participants, p.DuelID)
}

// launchMinigame consulta o registry, constrói o payload e anuncia a sessão.
func (ms *MatchState) launchMinigame(id string, participants []string, duelID string) error {
	cap, err := ms.registry.Lookup(id)
	if err != nil {
		return err
	}
	payload, err := cap.BuildMatchPayload(ms.hostState(), participants)
	if err != nil {
		return fmt.Errorf("minigame %s: payload de lançamento: %w", id, err)
	}

	s := &MinigameSession{
		ID:           ms.nextSessionID(),
		Minigame:     id,
		Participants: append([]string(nil), participants...),
		DuelID:       duelID,
		cap:          cap,
	}
	ms.sessions[s.ID] = s
	if duelID != "" && ms.duel != nil && ms.duel.ID == duelID {
		ms.duel.sessionID = s.ID
	}

	log.Printf("[Match %s] minigame %s lançado (sessão %s, %d participantes)",
		ms.lobbyID, id, s.ID, len(participants))
	ms.out.Broadcast(message.CreateMinigameStart(message.MinigameStartPayload{
		SessionID:    s.ID,
		Minigame:     id,
		Participants: s.Participants,
		Payload:      payload,
	}))
	return nil
}

// handleMinigameResult normaliza um report de sessão pelo hook do minigame
// e aplica o desfecho. Sessões amarradas a um duelo repassam o resultado
// pro fechamento do duelo; sessões avulsas só difundem o desfecho.
func (ms *MatchState) handleMinigameResult(reporter string, p message.MinigameResultPayload) error {
	s, ok := ms.sessions[p.SessionID]
	if !ok {
		return fmt.Errorf("%w: sessão %s não está ativa", ErrProtocol, p.SessionID)
	}
	if !s.has(reporter) {
		return fmt.Errorf("%w: %s não participa da sessão", ErrProtocol, reporter)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("minigame %s: report: %w", s.Minigame, err)
	}
	outcome, err := s.cap.ResolveResult(raw)
	if err != nil {
		return fmt.Errorf("%w: report de %s rejeitado: %v", ErrProtocol, s.Minigame, err)
	}
	ms.finishSession(s, outcome)
	return nil
}

// finishSession difunde o desfecho, destrói a sessão e, se for o braço de
// um duelo, fecha o duelo com o mesmo vencedor.
func (ms *MatchState) finishSession(s *MinigameSession, outcome minigame.Outcome) {
	delete(ms.sessions, s.ID)
	ms.out.Broadcast(message.CreateMinigameResolved(message.MinigameResolvedPayload{
		SessionID: s.ID,
		Minigame:  s.Minigame,
		Winner:    outcome.Winner,
		Loser:     outcome.Loser,
		Outcome:   outcome.Data,
	}))
	if s.DuelID != "" && ms.duel != nil && ms.duel.ID == s.DuelID {
		ms.duel.sessionID = ""
		if outcome.Winner != "" && ms.duel.has(outcome.Winner) {
			ms.resolveDuel(outcome.Winner, ms.duel.opponent(outcome.Winner), false)
		} else {
			ms.resolveStale()
		}
	}
}

// forfeitSessionsOf encerra as sessões de quem caiu. Sessões de dois
// participantes viram vitória de quem ficou; as demais são só canceladas.
func (ms *MatchState) forfeitSessionsOf(pid string) {
	for _, s := range ms.sessions {
		if !s.has(pid) {
			continue
		}
		outcome := minigame.Outcome{Loser: pid, Outcome: "forfeit"}
		if len(s.Participants) == 2 {
			for _, other := range s.Participants {
				if other != pid {
					outcome.Winner = other
				}
			}
		}
		log.Printf("[Match %s] sessão %s encerrada por desistência de %s",
			ms.lobbyID, s.ID, pid)
		ms.finishSession(s, outcome)
	}
}

// stepSessions envelhece as sessões e derruba as que estouraram o prazo.
func (ms *MatchState) stepSessions(dt float64) {
	for _, s := range ms.sessions {
		s.age += dt
		if s.age >= ms.cfg.MinigameTimeout {
			log.Printf("[Match %s] AVISO: sessão %s (%s) estourou o prazo",
				ms.lobbyID, s.ID, s.Minigame)
			ms.finishSession(s, minigame.Outcome{Outcome: "timeout"})
		}
	}
}
