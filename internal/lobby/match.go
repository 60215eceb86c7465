package lobby

import (
	"log"
	"time"

	"retroroyale/internal/lobby/message"
)

// Mensagens internas enfileiradas pela goroutine do Hub para a da partida.
type inputMsg struct {
	pid  string
	x, y float64
}

type leaveMsg struct{ pid string }

type duelRequestMsg struct {
	pid    string
	target string
}

type duelChoiceMsg struct {
	pid     string
	payload message.DuelChoicePayload
}

type duelResultMsg struct {
	pid     string
	payload message.DuelResultPayload
}

type startMinigameMsg struct {
	pid     string
	payload message.StartMinigamePayload
}

type minigameResultMsg struct {
	pid     string
	payload message.MinigameResultPayload
}

// MatchResult é o que a partida devolve ao lobby quando termina.
type MatchResult struct {
	Winner    string
	NPCWinner bool
	LastSeq   uint64
}

// Match é o ator que roda uma partida: uma goroutine, um ticker de passo
// fixo e um canal de entrada. Todos os comandos dos participantes chegam
// serializados por aqui, então o MatchState nunca é tocado por duas
// goroutines ao mesmo tempo — o mesmo desenho de sala do resto do servidor.
type Match struct {
	state    *MatchState
	incoming chan any
	quit     chan struct{}

	// Finished recebe exatamente um MatchResult quando a partida termina
	// (por vitória ou por Stop). O lobby lê daqui para reabrir a sala.
	Finished chan MatchResult
}

func newMatch(state *MatchState) *Match {
	return &Match{
		state:    state,
		incoming: make(chan any, 256),
		quit:     make(chan struct{}),
		Finished: make(chan MatchResult, 1),
	}
}

// enqueue entrega um comando sem nunca bloquear a goroutine do Hub. Se a
// fila da partida encher (cliente inundando comandos), o comando é
// descartado — o input seguinte corrige.
func (m *Match) enqueue(cmd any) {
	select {
	case m.incoming <- cmd:
	default:
		log.Printf("[Match] AVISO: fila de comandos cheia, comando descartado")
	}
}

// Stop encerra a partida de fora (lobby fechando). Idempotente via select.
func (m *Match) Stop() {
	select {
	case <-m.quit:
	default:
		close(m.quit)
	}
}

// Run é o loop da partida. Drena todos os comandos pendentes antes de cada
// tick, então a ordem de chegada dos comandos é a ordem de aplicação.
func (m *Match) Run() {
	ticker := time.NewTicker(m.state.cfg.tickInterval())
	defer ticker.Stop()

	dt := m.state.cfg.dt()
	for {
		select {
		case cmd := <-m.incoming:
			m.apply(cmd)
		case <-ticker.C:
			for drained := false; !drained; {
				select {
				case cmd := <-m.incoming:
					m.apply(cmd)
				default:
					drained = true
				}
			}
			m.state.Step(dt)
			if over, winner, npcWinner := m.state.Over(); over {
				m.Finished <- MatchResult{
					Winner:    winner,
					NPCWinner: npcWinner,
					LastSeq:   m.state.Seq(),
				}
				return
			}
		case <-m.quit:
			m.Finished <- MatchResult{LastSeq: m.state.Seq()}
			return
		}
	}
}

// apply roteia um comando interno para o MatchState. Erros de protocolo
// voltam pro remetente como RESPONSE_ERROR; a partida segue intacta.
func (m *Match) apply(cmd any) {
	var pid string
	var err error
	switch c := cmd.(type) {
	case inputMsg:
		m.state.ApplyInput(c.pid, c.x, c.y)
	case leaveMsg:
		m.state.Leave(c.pid)
	case duelRequestMsg:
		pid, err = c.pid, m.state.handleRequestDuel(c.pid, c.target)
	case duelChoiceMsg:
		pid, err = c.pid, m.state.handleDuelChoice(c.pid, c.payload.DuelID, c.payload.Entry)
	case duelResultMsg:
		pid, err = c.pid, m.state.handleDuelResult(c.pid, c.payload)
	case startMinigameMsg:
		pid, err = c.pid, m.state.handleStartMinigame(c.pid, c.payload)
	case minigameResultMsg:
		pid, err = c.pid, m.state.handleMinigameResult(c.pid, c.payload)
	default:
		log.Printf("[Match] ERRO: comando interno desconhecido %T", cmd)
	}
	if err != nil {
		log.Printf("[Match %s] comando de %s rejeitado: %v", m.state.lobbyID, pid, err)
		m.state.out.SendTo(pid, message.CreateErrorResponse("%v", err))
	}
}
