package lobby

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
	"retroroyale/internal/network"
)

// Fases do ciclo de vida do lobby.
const (
	phaseOpen    = "OPEN"
	phaseInMatch = "IN_MATCH"
	phaseClosed  = "CLOSED"
)

// CommandHandlerFunc define a assinatura de todas as funções que lidam com
// comandos. Elas recebem o handler, o participante remetente e o payload
// bruto da mensagem.
type CommandHandlerFunc func(h *GameHandler, p *Participant, payload json.RawMessage)

// scheduler agenda closures na goroutine do Hub. Em produção é o
// network.Server; os testes injetam um scheduler síncrono.
type scheduler interface {
	Do(fn func())
}

// GameHandler implementa network.EventHandler e é o cérebro do lobby.
// Todo o estado abaixo é mutado SOMENTE pela goroutine do Hub (callbacks e
// closures agendadas via scheduler), então nada aqui precisa de lock.
type GameHandler struct {
	cfg      Config
	lobbyID  string
	registry *minigame.Registry
	sink     EventSink
	sched    scheduler

	phase        string
	participants map[*network.Client]*Participant
	byID         map[string]*Participant
	order        []string
	hostID       string

	// seq é o contador de sequência de snapshots do LOBBY, não da partida:
	// atravessa partidas e nunca anda para trás enquanto o lobby viver.
	seq uint64

	match      *Match
	startTimer *time.Timer

	// Dois roteadores, um para cada fase do lobby.
	lobbyRouter map[string]CommandHandlerFunc
	matchRouter map[string]CommandHandlerFunc
}

// NewGameHandler inicializa o handler e registra os roteadores de comando.
func NewGameHandler(cfg Config, registry *minigame.Registry, sink EventSink) *GameHandler {
	if registry == nil {
		registry = minigame.DefaultRegistry()
	}
	if sink == nil {
		sink = NopSink{}
	}
	h := &GameHandler{
		cfg:          cfg,
		lobbyID:      uuid.NewString(),
		registry:     registry,
		sink:         sink,
		phase:        phaseOpen,
		participants: make(map[*network.Client]*Participant),
		byID:         make(map[string]*Participant),
		lobbyRouter:  make(map[string]CommandHandlerFunc),
		matchRouter:  make(map[string]CommandHandlerFunc),
	}
	h.registerLobbyHandlers()
	h.registerMatchHandlers()
	return h
}

// bind amarra o scheduler depois da composição (o Server precisa do handler
// no construtor, então a referência inversa chega depois).
func (h *GameHandler) bind(s scheduler) { h.sched = s }

// LobbyID identifica este lobby em logs e no feed de eventos.
func (h *GameHandler) LobbyID() string { return h.lobbyID }

// --- Implementação da interface network.EventHandler ---

// OnConnect é chamado pela goroutine do Hub. É seguro modificar o estado aqui.
func (h *GameHandler) OnConnect(c *network.Client) {
	if reason := h.rejectReason(); reason != "" {
		log.Printf("[Lobby %s] conexão de %s rejeitada: %s", h.lobbyID, c.RemoteAddr(), reason)
		c.TrySend(message.CreateReject(reason))
		c.Kick()
		return
	}

	p := &Participant{
		Client: c,
		ID:     uuid.NewString(),
		Name:   "Player",
		Active: true,
	}
	h.participants[c] = p
	h.byID[p.ID] = p
	h.order = append(h.order, p.ID)
	if h.hostID == "" {
		h.hostID = p.ID
	}

	log.Printf("[Lobby %s] %s entrou como %s (%d/%d)",
		h.lobbyID, c.RemoteAddr(), p.ID, len(h.byID), h.cfg.MaxPlayers)

	c.Send() <- message.CreateWelcome(p.ID, h.lobbyState())
	h.broadcastLobbyState()
}

// rejectReason decide se uma conexão nova pode virar participante.
// Vazio significa aceita.
func (h *GameHandler) rejectReason() string {
	switch {
	case h.phase == phaseClosed:
		return message.RejectLobbyClosed
	case h.phase == phaseInMatch && !h.cfg.AllowJoinDuringMatch:
		return message.RejectMatchActive
	case len(h.byID) >= h.cfg.MaxPlayers:
		return message.RejectLobbyFull
	case h.phase == phaseOpen && !h.cfg.AllowJoinInLobby:
		return message.RejectLobbyLocked
	}
	return ""
}

func (h *GameHandler) OnDisconnect(c *network.Client) {
	p, ok := h.participants[c]
	if !ok {
		// Conexão rejeitada no OnConnect: nada para limpar.
		return
	}
	delete(h.participants, c)
	p.Active = false

	if h.phase == phaseInMatch && h.match != nil {
		// A partida segue: o ator é eliminado lá dentro, dentro de um tick.
		h.match.enqueue(leaveMsg{pid: p.ID})
	} else {
		h.removeFromRoster(p.ID)
	}

	log.Printf("[Lobby %s] %s (%s) desconectou", h.lobbyID, p.ID, c.RemoteAddr())
	h.broadcast(message.CreatePlayerLeft(p.ID))
	h.broadcastLobbyState()
	h.reconsiderAutoStart()

	// Sem participantes e sem partida rodando (inclui a janela entre o fim
	// do match e a reabertura), o lobby morre.
	if len(h.byID) == 0 && h.match == nil {
		h.close()
	}
}

// OnMessage roteia pela fase atual. Mensagem fora de esquema é logada e
// descartada; a conexão nunca cai por causa disso.
func (h *GameHandler) OnMessage(c *network.Client, msg network.Message) {
	p, ok := h.participants[c]
	if !ok {
		return
	}
	router := h.lobbyRouter
	if h.phase == phaseInMatch {
		router = h.matchRouter
	}
	handler, found := router[msg.Type]
	if !found {
		log.Printf("[Lobby %s] %v: comando %q fora da fase %s (de %s)",
			h.lobbyID, ErrProtocol, msg.Type, h.phase, p.ID)
		p.Send() <- message.CreateErrorResponse("comando %q não é válido agora", msg.Type)
		return
	}
	handler(h, p, msg.Payload)
}

// --- Roster ---

func (h *GameHandler) removeFromRoster(pid string) {
	delete(h.byID, pid)
	for i, id := range h.order {
		if id == pid {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	if h.hostID == pid {
		h.hostID = ""
		if len(h.order) > 0 {
			h.hostID = h.order[0] // host migra pro mais antigo
		}
	}
}

// purgeInactive remove do roster os participantes que desconectaram durante
// a partida (OnDisconnect só os marca; a remoção espera o fim do match).
func (h *GameHandler) purgeInactive() {
	for _, pid := range append([]string(nil), h.order...) {
		if p, ok := h.byID[pid]; ok && !p.Active {
			h.removeFromRoster(pid)
		}
	}
}

func (h *GameHandler) lobbyState() message.LobbyState {
	state := message.LobbyState{
		MapName: h.cfg.MapName,
		Mode:    h.cfg.Mode,
		HostID:  h.hostID,
	}
	for _, pid := range h.order {
		if p, ok := h.byID[pid]; ok {
			state.Players = append(state.Players, p.lobbyView())
		}
	}
	return state
}

// broadcast entrega para todos os participantes ativos, sem nunca bloquear.
func (h *GameHandler) broadcast(msg network.Message) {
	for _, p := range h.byID {
		if p.Active {
			p.Client.TrySend(msg)
		}
	}
}

func (h *GameHandler) broadcastLobbyState() {
	h.broadcast(message.CreateLobbyState(h.lobbyState()))
}

// sendTo entrega para um participante específico, se ainda estiver ativo.
func (h *GameHandler) sendTo(pid string, msg network.Message) {
	if p, ok := h.byID[pid]; ok && p.Active {
		p.Client.TrySend(msg)
	}
}

// broadcastSnapshot registra a sequência entregue por participante; clientes
// lentos pulam snapshots mas nunca recebem sequência repetida ou antiga.
func (h *GameHandler) broadcastSnapshot(snap message.Snapshot) {
	h.seq = snap.Seq
	msg := message.CreateMatchState(snap)
	for _, p := range h.byID {
		p.trySendSnapshot(msg, snap.Seq)
	}
}

// close fecha o lobby de vez. Conexões novas recebem REJECT lobby_closed.
func (h *GameHandler) close() {
	if h.phase == phaseClosed {
		return
	}
	h.phase = phaseClosed
	h.cancelStartTimer()
	if h.match != nil {
		h.match.Stop()
		h.match = nil
	}
	log.Printf("[Lobby %s] lobby fechado", h.lobbyID)
}

// afterFunc dispara fn na goroutine do Hub após o atraso. Os timers nunca
// tocam no estado diretamente; o disparo só agenda a closure.
func (h *GameHandler) afterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { h.sched.Do(fn) })
}

func (h *GameHandler) cancelStartTimer() {
	if h.startTimer != nil {
		h.startTimer.Stop()
		h.startTimer = nil
	}
}

// errorTo formata uma RESPONSE_ERROR para o participante.
func errorTo(p *Participant, format string, args ...any) {
	message.SendError(p, format, args...)
}

// parseInto decodifica o payload e devolve erro de protocolo padronizado.
func parseInto(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}
