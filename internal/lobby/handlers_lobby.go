package lobby

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/network"
)

func (h *GameHandler) registerLobbyHandlers() {
	h.lobbyRouter[message.TypeJoin] = handleJoin
	h.lobbyRouter[message.TypeSetReady] = handleSetReady
	h.lobbyRouter[message.TypeSetChar] = handleSetChar
	h.lobbyRouter[message.TypeStartMatch] = handleStartMatch
}

// handleJoin dá nome e skin ao participante. A conexão já foi aceita no
// OnConnect; JOIN só preenche a apresentação.
func handleJoin(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.JoinPayload
	if err := parseInto(payload, &req); err != nil {
		log.Printf("[Lobby %s] %v (JOIN de %s)", h.lobbyID, err, p.ID)
		errorTo(p, "payload de JOIN inválido")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name != "" {
		p.Name = name
	}
	if req.CharName != "" {
		p.CharName = req.CharName
	}
	h.broadcastLobbyState()
}

func handleSetReady(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.ReadyPayload
	if err := parseInto(payload, &req); err != nil {
		log.Printf("[Lobby %s] %v (SET_READY de %s)", h.lobbyID, err, p.ID)
		errorTo(p, "payload de SET_READY inválido")
		return
	}
	p.Ready = req.Ready
	h.broadcastLobbyState()
	h.reconsiderAutoStart()
}

func handleSetChar(h *GameHandler, p *Participant, payload json.RawMessage) {
	var req message.CharPayload
	if err := parseInto(payload, &req); err != nil || req.CharName == "" {
		errorTo(p, "payload de SET_CHAR inválido")
		return
	}
	p.CharName = req.CharName
	h.broadcastLobbyState()
}

// handleStartMatch inicia a partida imediatamente. Aceito apenas do host.
func handleStartMatch(h *GameHandler, p *Participant, payload json.RawMessage) {
	if p.ID != h.hostID {
		errorTo(p, "apenas o host pode iniciar a partida")
		return
	}
	var req message.StartMatchPayload
	if err := parseInto(payload, &req); err != nil {
		errorTo(p, "payload de START_MATCH inválido")
		return
	}
	if len(h.byID) < h.cfg.MinPlayers {
		errorTo(p, "são necessários %d jogadores para iniciar", h.cfg.MinPlayers)
		return
	}
	h.startMatch(req.Seed)
}

// --- Início automático ---

// reconsiderAutoStart reavalia o quórum depois de qualquer mudança de
// roster ou de prontidão. Controla o timer de contagem regressiva: arma
// quando o quórum aparece, desarma quando ele se desfaz.
func (h *GameHandler) reconsiderAutoStart() {
	if !h.cfg.AutoStart || h.phase != phaseOpen {
		return
	}
	if !h.quorumMet() {
		h.cancelStartTimer()
		return
	}
	if h.startTimer != nil {
		return // contagem já rodando
	}
	log.Printf("[Lobby %s] quórum atingido; partida em %s", h.lobbyID, h.cfg.StartDelay)
	h.startTimer = h.afterFunc(h.cfg.StartDelay, func() {
		// Roda na goroutine do Hub; revalida porque tudo pode ter mudado.
		h.startTimer = nil
		if h.phase == phaseOpen && h.quorumMet() {
			h.startMatch("")
		}
	})
}

func (h *GameHandler) quorumMet() bool {
	ready := 0
	for _, p := range h.byID {
		if !h.cfg.ReadyRequired || p.Ready {
			ready++
		}
	}
	return ready >= h.cfg.MinPlayers
}

// --- Partida ---

// startMatch monta o plano, anuncia MATCH_START e sobe o ator da partida.
// Seed vazio ganha um novo; o mesmo seed reproduz os mesmos spawns, a mesma
// roleta e os mesmos desfechos automáticos.
func (h *GameHandler) startMatch(seed string) {
	if h.phase != phaseOpen {
		return
	}
	h.cancelStartTimer()
	if seed == "" {
		seed = uuid.NewString()
	}
	h.phase = phaseInMatch
	for _, p := range h.byID {
		p.Ready = false
	}

	plan := h.buildPlan(seed)
	log.Printf("[Lobby %s] partida iniciando: seed=%s, %d participantes (%d spawns)",
		h.lobbyID, seed, len(plan.Players), len(plan.Spawns))
	h.broadcast(message.CreateMatchStart(plan))
	h.sink.MatchStarted(h.lobbyID, seed, len(plan.Players))

	state := newMatchState(h.cfg, h.lobbyID, seed, plan, h.registry, h.sink,
		&hubBroadcaster{h: h}, h.seq)
	h.match = newMatch(state)
	go h.match.Run()
	go h.watchMatch(h.match)
}

// buildPlan projeta o roster em um plano de partida: humanos ativos mais o
// preenchimento de NPCs, todos espalhados pelo perímetro.
func (h *GameHandler) buildPlan(seed string) message.MatchPlan {
	plan := message.MatchPlan{
		MapName: h.cfg.MapName,
		Mode:    h.cfg.Mode,
		Seed:    seed,
	}
	var ids []string
	var npcs []bool
	for _, pid := range h.order {
		p, ok := h.byID[pid]
		if !ok || !p.Active {
			continue
		}
		plan.Players = append(plan.Players, p.lobbyView())
		ids = append(ids, pid)
		npcs = append(npcs, false)
	}
	for i := 0; i < h.cfg.NPCFill; i++ {
		npcID := fmt.Sprintf("npc-%d", i+1)
		plan.Players = append(plan.Players, message.LobbyPlayer{
			PlayerID: npcID,
			Name:     fmt.Sprintf("Bot %d", i+1),
		})
		ids = append(ids, npcID)
		npcs = append(npcs, true)
	}

	spawns := buildSpawns(seed, h.cfg.MapW, h.cfg.MapH, len(ids))
	for i := range spawns {
		spawns[i].PlayerID = ids[i]
		spawns[i].NPC = npcs[i]
	}
	plan.Spawns = spawns
	return plan
}

// watchMatch espera o fim da partida e agenda a volta ao lobby na goroutine
// do Hub. O contador de sequência do lobby absorve o último da partida para
// a próxima nunca regredir.
func (h *GameHandler) watchMatch(m *Match) {
	result := <-m.Finished
	h.sched.Do(func() {
		if h.match != m {
			return // lobby já foi fechado ou resetado por outro caminho
		}
		h.match = nil
		h.seq = result.LastSeq
		log.Printf("[Lobby %s] partida encerrada: vencedor=%q npc=%v",
			h.lobbyID, result.Winner, result.NPCWinner)

		// Quem caiu durante a partida sai do roster agora: entradas
		// fantasmas contariam vaga, quórum e presença na lista do lobby.
		h.purgeInactive()

		if len(h.byID) == 0 {
			h.close()
			return
		}
		// Volta ao lobby depois do delay de reset, como no torneio original.
		h.afterFunc(h.cfg.ResetDelay, func() {
			if h.phase != phaseClosed {
				h.phase = phaseOpen
				h.broadcastLobbyState()
				h.reconsiderAutoStart()
			}
		})
	})
}

// hubBroadcaster leva as saídas da partida de volta pra goroutine do Hub.
// A goroutine da partida NUNCA toca nos canais de envio diretamente; tudo
// passa por closures agendadas, então fechar o lobby nunca corre com um
// broadcast da partida.
type hubBroadcaster struct {
	h *GameHandler
}

func (b *hubBroadcaster) Broadcast(msg network.Message) {
	b.h.sched.Do(func() { b.h.broadcast(msg) })
}

func (b *hubBroadcaster) BroadcastSnapshot(snap message.Snapshot) {
	b.h.sched.Do(func() { b.h.broadcastSnapshot(snap) })
}

func (b *hubBroadcaster) SendTo(pid string, msg network.Message) {
	b.h.sched.Do(func() { b.h.sendTo(pid, msg) })
}
