package lobby

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
	"retroroyale/internal/network"
)

// broadcaster é o que a partida enxerga da camada de saída. A implementação
// real agenda as escritas na goroutine do Hub (único dono dos canais de
// envio); os testes usam uma implementação síncrona que grava em memória.
type broadcaster interface {
	Broadcast(msg network.Message)
	BroadcastSnapshot(snap message.Snapshot)
	SendTo(pid string, msg network.Message)
}

// actorState é o estado autoritativo de um ator (humano ou NPC) na partida.
type actorState struct {
	id   string
	name string
	char string
	npc  bool

	x, y   float64
	vx, vy float64

	// Último vetor de input recebido, já normalizado para [-1, 1].
	inX, inY float64

	// Tempo acumulado fora do círculo seguro.
	outsideTimer float64

	// connected vira false quando o participante cai; o ator é eliminado
	// mas o registro permanece para contagens e logs.
	connected bool

	// Âncora de perambulação dos NPCs.
	wanderInit   bool
	wanderAngle  float64
	wanderRadius float64
	wanderTimer  float64
}

// MatchState é o estado completo de uma partida em andamento. Ele é mutado
// EXCLUSIVAMENTE pela goroutine da partida (ver Match.Run): o tick é o único
// escritor, o que elimina corridas de dados por construção. Toda a
// aleatoriedade sai de geradores semeados, então a mesma sequência de inputs
// na mesma ordem de entrada reproduz o mesmo estado.
type MatchState struct {
	cfg     Config
	lobbyID string
	seed    string

	registry *minigame.Registry
	sink     EventSink
	out      broadcaster
	trigger  TriggerFunc

	tick uint64
	seq  uint64

	actors     map[string]*actorState
	order      []string // ordem estável de entrada; dita a aplicação de inputs
	eliminated map[string]bool

	duel           *DuelSession
	duelCooldown   float64
	requests       map[string]*duelRequest
	sessions       map[string]*MinigameSession
	sessionCounter uint64

	safeX, safeY  float64
	safeRadius    float64
	safeRadiusMin float64
	shrinkElapsed float64

	over      bool
	winner    string
	npcWinner bool

	// rng alimenta a perambulação dos NPCs; semeado pelo seed da partida.
	rng *rand.Rand
}

// duelRequest é um desafio pendente aguardando o aceite do alvo.
type duelRequest struct {
	initiator string
	target    string
	age       float64
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// newMatchState monta o estado inicial a partir do plano de partida.
func newMatchState(cfg Config, lobbyID, seed string, plan message.MatchPlan,
	registry *minigame.Registry, sink EventSink, out broadcaster, startSeq uint64) *MatchState {

	if sink == nil {
		sink = NopSink{}
	}
	trigger := cfg.Trigger
	if trigger == nil {
		trigger = ProximityTrigger(cfg.DuelRadius)
	}

	ms := &MatchState{
		cfg:        cfg,
		lobbyID:    lobbyID,
		seed:       seed,
		registry:   registry,
		sink:       sink,
		out:        out,
		trigger:    trigger,
		seq:        startSeq,
		actors:     make(map[string]*actorState),
		eliminated: make(map[string]bool),
		requests:   make(map[string]*duelRequest),
		sessions:   make(map[string]*MinigameSession),
		rng:        minigame.NewRand(minigame.SeedFrom("match", seed)),
	}

	// Círculo seguro começa largo e encolhe até um mínimo jogável.
	ms.safeX = cfg.MapW * 0.5
	ms.safeY = cfg.MapH * 0.5
	ms.safeRadius = math.Max(cfg.MapW, cfg.MapH) * 0.75
	ms.safeRadiusMin = math.Max(220, math.Min(cfg.MapW, cfg.MapH)/3)

	byID := make(map[string]message.LobbyPlayer, len(plan.Players))
	for _, p := range plan.Players {
		byID[p.PlayerID] = p
	}
	for _, spawn := range plan.Spawns {
		info := byID[spawn.PlayerID]
		name := info.Name
		if name == "" {
			if spawn.NPC {
				name = "NPC"
			} else {
				name = "Player"
			}
		}
		ms.actors[spawn.PlayerID] = &actorState{
			id:        spawn.PlayerID,
			name:      name,
			char:      info.CharName,
			npc:       spawn.NPC,
			x:         spawn.X,
			y:         spawn.Y,
			connected: true,
		}
		ms.order = append(ms.order, spawn.PlayerID)
	}
	return ms
}

// --- Consultas (usadas por gatilhos e pelos handlers) ---

func (ms *MatchState) alive(pid string) bool {
	_, ok := ms.actors[pid]
	return ok && !ms.eliminated[pid]
}

func (ms *MatchState) aliveCounts() (humans, npcs int) {
	for _, pid := range ms.order {
		if !ms.alive(pid) {
			continue
		}
		if ms.actors[pid].npc {
			npcs++
		} else {
			humans++
		}
	}
	return humans, npcs
}

// eligibleDuelists lista, em ordem de entrada, quem pode entrar em duelo.
func (ms *MatchState) eligibleDuelists() []string {
	if ms.duel != nil {
		return nil
	}
	var out []string
	for _, pid := range ms.order {
		if ms.alive(pid) && ms.actors[pid].connected {
			out = append(out, pid)
		}
	}
	return out
}

// Over informa se a partida terminou (e quem venceu, se alguém).
func (ms *MatchState) Over() (over bool, winner string, npcWinner bool) {
	return ms.over, ms.winner, ms.npcWinner
}

// Seq retorna o último número de sequência emitido.
func (ms *MatchState) Seq() uint64 { return ms.seq }

// --- Comandos vindos dos participantes ---

// ApplyInput registra o vetor de movimento mais recente de um participante.
// Os valores são reapertados para [-1, 1]: o cliente já normaliza, mas a
// validação autoritativa não confia nisso.
func (ms *MatchState) ApplyInput(pid string, x, y float64) {
	a, ok := ms.actors[pid]
	if !ok || a.npc || !ms.alive(pid) {
		return
	}
	a.inX = clamp(x, -1, 1)
	a.inY = clamp(y, -1, 1)
}

// Leave marca o participante como desconectado: ele é eliminado da arena e
// qualquer duelo ou sessão de minigame em que estava vira desistência em
// favor de quem ficou — dentro do mesmo tick, nunca pendurado.
func (ms *MatchState) Leave(pid string) {
	a, ok := ms.actors[pid]
	if !ok {
		return
	}
	a.connected = false
	ms.forfeitDuelOf(pid)
	ms.forfeitSessionsOf(pid)
	if ms.alive(pid) {
		ms.eliminate(pid)
	}
	ms.checkMatchEnd()
}

// --- O tick autoritativo ---

// Step avança a partida em um passo fixo de tempo. É o único caminho de
// código que muta o MatchState durante a partida; inputs enfileirados já
// foram aplicados na ordem de chegada pela goroutine da partida.
func (ms *MatchState) Step(dt float64) {
	if ms.over {
		return
	}
	ms.tick++

	ms.duelCooldown = math.Max(0, ms.duelCooldown-dt)
	ms.expireRequests(dt)
	ms.updateSafeZone(dt)

	frozen := ms.frozenSet()

	var toEliminate []string
	for _, pid := range ms.order {
		if !ms.alive(pid) {
			continue
		}
		a := ms.actors[pid]

		if frozen[pid] {
			a.vx, a.vy = 0, 0
		} else if a.npc {
			ms.wander(a, dt)
		} else {
			a.vx = a.inX * ms.cfg.PlayerSpeed
			a.vy = a.inY * ms.cfg.PlayerSpeed
		}

		a.x = clamp(a.x+a.vx*dt, 0, ms.cfg.MapW)
		a.y = clamp(a.y+a.vy*dt, 0, ms.cfg.MapH)

		// Fora do círculo com período de graça; duelistas são imunes
		// enquanto o duelo deles estiver de pé.
		if !frozen[pid] {
			dx := a.x - ms.safeX
			dy := a.y - ms.safeY
			tol := ms.safeRadius * 1.02
			if dx*dx+dy*dy > tol*tol {
				a.outsideTimer += dt
				if a.outsideTimer >= ms.cfg.OutsideGrace {
					toEliminate = append(toEliminate, pid)
				}
			} else {
				a.outsideTimer = 0
			}
		}
	}
	for _, pid := range toEliminate {
		ms.eliminate(pid)
	}

	ms.stepDuel(dt)
	ms.stepSessions(dt)

	// Gatilho autoritativo de duelo, avaliado depois do movimento.
	if ms.duel == nil && ms.duelCooldown <= 0 {
		if a, b, ok := ms.trigger(ms); ok {
			ms.startDuel(a, b)
		}
	}

	ms.checkMatchEnd()
	if !ms.over {
		ms.broadcastSnapshot()
	}
}

// frozenSet marca quem não se move neste tick (duelistas com duelo de pé).
func (ms *MatchState) frozenSet() map[string]bool {
	out := make(map[string]bool)
	if ms.duel != nil && !ms.duel.resolved {
		out[ms.duel.A] = true
		out[ms.duel.B] = true
	}
	for _, s := range ms.sessions {
		for _, pid := range s.Participants {
			out[pid] = true
		}
	}
	return out
}

// wander move um NPC orbitando uma âncora pessoal perto do centro, para os
// bots não se amontoarem no meio exato da arena.
func (ms *MatchState) wander(a *actorState, dt float64) {
	cx, cy := ms.cfg.MapW*0.5, ms.cfg.MapH*0.5
	safeR := ms.safeRadius
	if safeR <= 0 {
		safeR = 0.75 * math.Min(ms.cfg.MapW, ms.cfg.MapH)
	}
	if !a.wanderInit {
		a.wanderInit = true
		a.wanderAngle = ms.rng.Float64() * 2 * math.Pi
		a.wanderRadius = 0.35*math.Min(ms.cfg.MapW, ms.cfg.MapH) + ms.rng.Float64()*90 - 30
	}
	a.wanderTimer -= dt
	if a.wanderTimer <= 0 {
		a.wanderAngle += ms.rng.Float64()*0.44 - 0.22
		desired := math.Min(0.65*safeR, 0.45*math.Min(ms.cfg.MapW, ms.cfg.MapH))
		a.wanderRadius = math.Max(80, math.Min(desired, a.wanderRadius+ms.rng.Float64()*36-18))
		a.wanderTimer = 1.8 + ms.rng.Float64()*1.4
	}
	tx := cx + math.Cos(a.wanderAngle)*a.wanderRadius
	ty := cy + math.Sin(a.wanderAngle)*a.wanderRadius
	dx, dy := tx-a.x, ty-a.y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		dist = 1
	}
	nx, ny := dx/dist, dy/dist
	// Perto da borda do círculo, força o vetor para dentro.
	distCenter := math.Hypot(a.x-cx, a.y-cy)
	if distCenter > safeR*0.88 && distCenter > 0 {
		nx, ny = (cx-a.x)/distCenter, (cy-a.y)/distCenter
	}
	mag := ms.cfg.PlayerSpeed*0.7 + ms.rng.Float64()*16 - 6
	// Aceleração suavizada para evitar micro-tremores.
	const blend = 0.12
	a.vx = a.vx*(1-blend) + nx*mag*blend
	a.vy = a.vy*(1-blend) + ny*mag*blend
}

func (ms *MatchState) updateSafeZone(dt float64) {
	ms.shrinkElapsed += dt
	if ms.shrinkElapsed < ms.cfg.SafeShrinkDelay {
		return
	}
	if ms.safeRadius > ms.safeRadiusMin {
		ms.safeRadius = math.Max(ms.safeRadiusMin, ms.safeRadius-ms.cfg.SafeShrinkRate*dt)
	}
}

func (ms *MatchState) expireRequests(dt float64) {
	for key, req := range ms.requests {
		req.age += dt
		if req.age > ms.cfg.DuelRequestTTL {
			delete(ms.requests, key)
		}
	}
}

// eliminate tira um ator da disputa e anuncia a queda.
func (ms *MatchState) eliminate(pid string) {
	if ms.eliminated[pid] {
		return
	}
	ms.eliminated[pid] = true
	log.Printf("[Match %s] ator %s eliminado (tick %d)", ms.lobbyID, pid, ms.tick)
	ms.out.Broadcast(message.CreateEliminated(pid))
	ms.sink.Eliminated(ms.lobbyID, pid)
}

func (ms *MatchState) checkMatchEnd() {
	if ms.over {
		return
	}
	humans, npcs := ms.aliveCounts()
	switch {
	case humans == 1 && npcs == 0:
		for _, pid := range ms.order {
			if ms.alive(pid) {
				ms.winner = pid
				break
			}
		}
		ms.over = true
	case humans == 0 && npcs <= 4:
		ms.npcWinner = npcs > 0
		ms.over = true
	}
	if ms.over {
		ms.broadcastSnapshot()
		ms.out.Broadcast(message.CreateMatchOver(ms.winner, ms.npcWinner))
		ms.sink.MatchOver(ms.lobbyID, ms.winner, ms.npcWinner)
	}
}

// broadcastSnapshot projeta o estado e difunde com sequência crescente.
// A entrega é best-effort: cliente lento perde snapshots, nunca trava o tick.
func (ms *MatchState) broadcastSnapshot() {
	ms.seq++
	snap := message.Snapshot{
		Seq:  ms.seq,
		Tick: ms.tick,
		Safe: message.SafeZone{X: ms.safeX, Y: ms.safeY, Radius: ms.safeRadius},
	}
	humans := 0
	for _, pid := range ms.order {
		if !ms.alive(pid) {
			continue
		}
		a := ms.actors[pid]
		if !a.npc {
			humans++
		}
		snap.Entities = append(snap.Entities, message.EntityState{
			ID:   a.id,
			X:    math.Round(a.x),
			Y:    math.Round(a.y),
			VX:   math.Round(a.vx),
			VY:   math.Round(a.vy),
			Char: a.char,
			NPC:  a.npc,
			Name: a.name,
		})
	}
	snap.Remaining = len(snap.Entities)
	snap.RemainingHumans = humans
	snap.Winner = ms.winner
	snap.NPCWinner = ms.npcWinner
	ms.out.BroadcastSnapshot(snap)
}

func (ms *MatchState) hostState() minigame.HostState {
	return minigame.HostState{
		MatchSeed: ms.seed,
		Tick:      ms.tick,
		MapName:   ms.cfg.MapName,
	}
}

func (ms *MatchState) nextSessionID() string {
	ms.sessionCounter++
	return fmt.Sprintf("mg-%s-%d", ms.seed[:min(8, len(ms.seed))], ms.sessionCounter)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
