package arena

import (
	"encoding/json"
	"log"
	"math"
	"time"

	"retroroyale/internal/client"
	"retroroyale/internal/lobby/message"
)

// Fases visíveis da cena. O render decide o que desenhar por aqui.
const (
	PhaseLobby          = "LOBBY"
	PhaseArena          = "ARENA"
	PhaseDuel           = "DUEL"
	PhaseMinigame       = "MINIGAME"
	PhaseOver           = "OVER"
	PhaseConnectionLost = "CONNECTION_LOST"
)

// Parâmetros de apresentação. O servidor continua autoritativo; isso aqui
// só controla a suavidade do que o jogador vê.
const (
	lerpRate         = 12.0                   // aproximação exponencial dos remotos
	inputResendMax   = 150 * time.Millisecond // reenvio de input mesmo sem mudança
	staleAfter       = 250 * time.Millisecond // idade de snapshot que liga a predição
	defaultBlend     = 10.0                   // taxa de correção da posição local
	localPlayerSpeed = 110.0                  // espelho da velocidade do servidor
)

// InputVector é o vetor de movimento do frame, normalizado em [-1, 1].
type InputVector struct {
	X, Y float64
}

// Entity é um ator pronto para desenhar: posição já interpolada.
type Entity struct {
	ID     string
	X, Y   float64
	Char   string
	NPC    bool
	Name   string
	Local  bool
}

// DuelView é o sub-estado de duelo que a cena expõe pro render.
type DuelView struct {
	DuelID        string
	Participants  []string
	WheelEntries  []string
	SelectedEntry string
	Round         int
	Scores        map[string]int
	LastChoices   map[string]string
	LastWinner    string
	Local         bool // o jogador local participa deste duelo
}

// MinigameView é o sub-estado de minigame em andamento.
type MinigameView struct {
	SessionID    string
	Minigame     string
	Participants []string
	Payload      json.RawMessage
	Local        bool
}

// DrawableState é o que a cena entrega ao render a cada frame.
type DrawableState struct {
	Phase           string
	Entities        []Entity
	Safe            message.SafeZone
	Remaining       int
	RemainingHumans int
	Duel            *DuelView
	Minigame        *MinigameView
	PendingDuelFrom string // desafio recebido aguardando aceite
	Eliminated      bool
	Winner          string
	NPCWinner       bool
	Seq             uint64
	Predicting      bool
}

// entityTrack é o estado de render de um ator: a posição desenhada persegue
// a posição alvo vinda do último snapshot.
type entityTrack struct {
	id       string
	char     string
	npc      bool
	name     string
	x, y     float64 // posição desenhada
	tx, ty   float64 // alvo do servidor
	vx, vy   float64 // velocidade do servidor (extrapolação na predição)
}

// Scene é a cena de arena multiplayer: consome o LobbyClient e produz um
// estado desenhável por frame. Tudo aqui roda na thread do loop de jogo;
// a concorrência mora no cliente, não na cena.
type Scene struct {
	cli *client.LobbyClient

	blendRate float64
	now       func() time.Time // injetável nos testes

	phase   string
	localID string
	tracks  map[string]*entityTrack
	order   []string

	safe            message.SafeZone
	remaining       int
	remainingHumans int
	seq             uint64

	lastSnapshotAt time.Time
	predicting     bool

	lastInput   InputVector
	lastSentAt  time.Time
	inputEver   bool

	duel            *DuelView
	minigame        *MinigameView
	pendingProposal string // alvo do desafio que NÓS propusemos (provisório)
	pendingFrom     string // desafio recebido, aguardando aceite local
	eliminated      bool
	winner          string
	npcWinner       bool
}

// NewScene cria a cena em cima de um cliente já conectado (ou conectando).
// blendRate <= 0 usa o padrão; valores maiores corrigem a posição local
// mais rápido depois de um período de predição.
func NewScene(cli *client.LobbyClient, blendRate float64) *Scene {
	if blendRate <= 0 {
		blendRate = defaultBlend
	}
	return &Scene{
		cli:       cli,
		blendRate: blendRate,
		now:       time.Now,
		phase:     PhaseLobby,
		tracks:    make(map[string]*entityTrack),
	}
}

// Update consome eventos e snapshots pendentes, reenvia input e avança a
// interpolação. Chamar uma vez por frame com o dt do frame.
func (s *Scene) Update(input InputVector, dt float64) DrawableState {
	s.drainEvents()
	s.drainSnapshots()
	s.maybeSendInput(input)
	s.advance(input, dt)
	return s.drawable()
}

// --- Interações explícitas do jogador ---

// ProposeDuel desafia um alvo. O duelo fica PROVISÓRIO até o servidor
// confirmar com DUEL_START; se a confirmação vier com outro par, a proposta
// é simplesmente esquecida — o servidor decide, a cena obedece.
func (s *Scene) ProposeDuel(target string) {
	if s.phase != PhaseArena || target == "" || target == s.localID {
		return
	}
	s.pendingProposal = target
	if err := s.cli.RequestDuel(target); err != nil {
		s.pendingProposal = ""
	}
}

// AcceptDuel aceita o desafio pendente (o aceite é o desafio recíproco).
func (s *Scene) AcceptDuel() {
	if s.pendingFrom == "" {
		return
	}
	from := s.pendingFrom
	s.pendingFrom = ""
	s.cli.RequestDuel(from)
}

// DeclineDuel descarta o desafio localmente; o servidor o expira sozinho.
func (s *Scene) DeclineDuel() { s.pendingFrom = "" }

// ChooseDuelEntry joga uma rodada do duelo clássico.
func (s *Scene) ChooseDuelEntry(entry string) {
	if s.duel == nil || !s.duel.Local {
		return
	}
	s.cli.SendDuelChoice(s.duel.DuelID, entry)
}

// ReportMinigameResult devolve o desfecho do minigame local ao servidor.
func (s *Scene) ReportMinigameResult(p message.MinigameResultPayload) {
	if s.minigame == nil {
		return
	}
	p.SessionID = s.minigame.SessionID
	p.Minigame = s.minigame.Minigame
	s.cli.SendMinigameResult(p)
}

// --- Eventos ---

func (s *Scene) drainEvents() {
	for {
		ev, ok := s.cli.PollEvent()
		if !ok {
			return
		}
		s.applyEvent(ev)
	}
}

func (s *Scene) applyEvent(ev client.Event) {
	switch ev.Type {
	case message.TypeWelcome:
		s.localID = s.cli.PlayerID()

	case message.TypeMatchStart:
		var p message.MatchStartPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.enterMatch(p.Match)

	case message.TypeDuelRequest:
		var p message.DuelRequestPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.To == s.localID {
			s.pendingFrom = p.From
		}

	case message.TypeDuelStart:
		var p message.DuelStartPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.pendingProposal = ""
		s.pendingFrom = ""
		s.duel = &DuelView{
			DuelID:        p.DuelID,
			Participants:  p.Participants,
			WheelEntries:  p.WheelEntries,
			SelectedEntry: p.SelectedEntry,
			Round:         1,
			Scores:        make(map[string]int),
			Local:         contains(p.Participants, s.localID),
		}
		if s.duel.Local {
			s.phase = PhaseDuel
		}

	case message.TypeDuelRoundResult:
		var p message.DuelRoundResultPayload
		if json.Unmarshal(ev.Payload, &p) != nil || s.duel == nil || s.duel.DuelID != p.DuelID {
			return
		}
		s.duel.Round = p.Round + 1
		s.duel.Scores = p.Scores
		s.duel.LastChoices = p.Choices
		s.duel.LastWinner = p.Winner

	case message.TypeDuelResult:
		var p message.DuelResolvedPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		if s.duel != nil && s.duel.DuelID == p.DuelID {
			s.duel = nil
			if s.phase == PhaseDuel {
				s.phase = PhaseArena
			}
		}

	case message.TypeMinigameStart:
		var p message.MinigameStartPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.minigame = &MinigameView{
			SessionID:    p.SessionID,
			Minigame:     p.Minigame,
			Participants: p.Participants,
			Payload:      p.Payload,
			Local:        contains(p.Participants, s.localID),
		}
		if s.minigame.Local {
			s.phase = PhaseMinigame
		}

	case message.TypeMinigameResult:
		var p message.MinigameResolvedPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		if s.minigame != nil && s.minigame.SessionID == p.SessionID {
			s.minigame = nil
			if s.phase == PhaseMinigame {
				s.phase = PhaseArena
			}
		}

	case message.TypeEliminated:
		var p message.EliminatedPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.removeTrack(p.PlayerID)
		if p.PlayerID == s.localID {
			s.eliminated = true
		}

	case message.TypePlayerLeft:
		var p message.PlayerLeftPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			s.removeTrack(p.PlayerID)
		}

	case message.TypeMatchOver:
		var p message.MatchOverPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return
		}
		s.winner = p.Winner
		s.npcWinner = p.NPCWinner
		s.phase = PhaseOver
		s.duel = nil
		s.minigame = nil

	case message.TypeLobbyState:
		if s.phase == PhaseOver {
			// Servidor reabriu o lobby depois do reset.
			s.phase = PhaseLobby
		}

	case client.EventDisconnected:
		s.phase = PhaseConnectionLost

	case message.TypeError:
		var p message.ErrorClientPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			log.Printf("[Arena] servidor recusou: %s", p.Error)
		}
	}
}

func (s *Scene) enterMatch(plan message.MatchPlan) {
	s.phase = PhaseArena
	s.tracks = make(map[string]*entityTrack)
	s.order = s.order[:0]
	s.duel = nil
	s.minigame = nil
	s.eliminated = false
	s.winner = ""
	s.npcWinner = false
	s.predicting = false
	s.lastSnapshotAt = time.Time{}

	names := make(map[string]message.LobbyPlayer, len(plan.Players))
	for _, p := range plan.Players {
		names[p.PlayerID] = p
	}
	for _, spawn := range plan.Spawns {
		info := names[spawn.PlayerID]
		s.tracks[spawn.PlayerID] = &entityTrack{
			id:   spawn.PlayerID,
			char: info.CharName,
			npc:  spawn.NPC,
			name: info.Name,
			x:    spawn.X, y: spawn.Y,
			tx: spawn.X, ty: spawn.Y,
		}
		s.order = append(s.order, spawn.PlayerID)
	}
}

func (s *Scene) removeTrack(pid string) {
	if _, ok := s.tracks[pid]; !ok {
		return
	}
	delete(s.tracks, pid)
	for i, id := range s.order {
		if id == pid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// --- Snapshots ---

func (s *Scene) drainSnapshots() {
	applied := false
	for {
		snap, ok := s.cli.PollSnapshot()
		if !ok {
			break
		}
		s.applySnapshot(snap)
		applied = true
	}
	if applied {
		s.lastSnapshotAt = s.now()
	}
}

func (s *Scene) applySnapshot(snap message.Snapshot) {
	s.seq = snap.Seq
	s.safe = snap.Safe
	s.remaining = snap.Remaining
	s.remainingHumans = snap.RemainingHumans

	seen := make(map[string]bool, len(snap.Entities))
	for _, e := range snap.Entities {
		seen[e.ID] = true
		t, ok := s.tracks[e.ID]
		if !ok {
			// Ator que a cena ainda não conhecia (entrada tardia): nasce
			// já no lugar certo, sem deslizar pela tela.
			t = &entityTrack{id: e.ID, char: e.Char, npc: e.NPC, name: e.Name, x: e.X, y: e.Y}
			s.tracks[e.ID] = t
			s.order = append(s.order, e.ID)
		}
		t.tx, t.ty = e.X, e.Y
		t.vx, t.vy = e.VX, e.VY
	}
	for pid := range s.tracks {
		if !seen[pid] {
			s.removeTrack(pid)
		}
	}
}

// --- Input e interpolação ---

// maybeSendInput reenvia o vetor quando ele muda ou quando o reenvio
// periódico vence, para o servidor nunca ficar com input fantasma.
func (s *Scene) maybeSendInput(input InputVector) {
	if s.phase != PhaseArena || s.eliminated {
		return
	}
	now := s.now()
	changed := !s.inputEver || input != s.lastInput
	if !changed && now.Sub(s.lastSentAt) < inputResendMax {
		return
	}
	if err := s.cli.SendInput(input.X, input.Y); err != nil {
		return
	}
	s.inputEver = true
	s.lastInput = input
	s.lastSentAt = now
}

// advance move as posições desenhadas. Remotos perseguem o alvo do servidor
// com aproximação exponencial; o ator local prediz com o próprio input
// quando os snapshots envelhecem e depois volta pro servidor por correção
// suave — nunca por teleporte.
func (s *Scene) advance(input InputVector, dt float64) {
	stale := s.lastSnapshotAt.IsZero() || s.now().Sub(s.lastSnapshotAt) > staleAfter
	s.predicting = stale && s.phase == PhaseArena && !s.eliminated

	for _, pid := range s.order {
		t := s.tracks[pid]
		local := pid == s.localID
		switch {
		case local && s.predicting:
			// Predição: integra o input local e arrasta o alvo junto para
			// a correção posterior partir de perto.
			t.x += input.X * localPlayerSpeed * dt
			t.y += input.Y * localPlayerSpeed * dt
			t.tx += t.vx * dt
			t.ty += t.vy * dt
		case local:
			t.x = approach(t.x, t.tx, s.blendRate*dt)
			t.y = approach(t.y, t.ty, s.blendRate*dt)
		default:
			t.x = approach(t.x, t.tx, lerpRate*dt)
			t.y = approach(t.y, t.ty, lerpRate*dt)
		}
	}
}

// approach aproxima cur de target por fração exponencial, saturando em 1
// para dt grande nunca ultrapassar o alvo.
func approach(cur, target, frac float64) float64 {
	if frac > 1 {
		frac = 1
	}
	return cur + (target-cur)*frac
}

// --- Projeção pro render ---

func (s *Scene) drawable() DrawableState {
	state := DrawableState{
		Phase:           s.phase,
		Safe:            s.safe,
		Remaining:       s.remaining,
		RemainingHumans: s.remainingHumans,
		Duel:            s.duel,
		Minigame:        s.minigame,
		PendingDuelFrom: s.pendingFrom,
		Eliminated:      s.eliminated,
		Winner:          s.winner,
		NPCWinner:       s.npcWinner,
		Seq:             s.seq,
		Predicting:      s.predicting,
	}
	for _, pid := range s.order {
		t := s.tracks[pid]
		state.Entities = append(state.Entities, Entity{
			ID:    t.id,
			X:     math.Round(t.x),
			Y:     math.Round(t.y),
			Char:  t.char,
			NPC:   t.npc,
			Name:  t.name,
			Local: pid == s.localID,
		})
	}
	return state
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
