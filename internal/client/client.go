package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/network"
)

// ErrNotConnected indica envio com o cliente desconectado. O chamador
// (a cena) trata isso como estado, não como pânico.
var ErrNotConnected = errors.New("client: not connected")

// Event é uma mensagem de servidor que não é snapshot: entradas e saídas
// do lobby, duelos, minigames, fim de partida. O consumidor decodifica o
// payload pelo tipo, com as mesmas structs do pacote message.
type Event struct {
	Type    string
	Payload json.RawMessage
}

// EventDisconnected é sintetizado localmente quando a conexão morre de vez
// (todas as tentativas de reconexão esgotadas). É SEMPRE o último evento.
const EventDisconnected = "DISCONNECTED"

// Config ajusta o comportamento do cliente. O zero value é utilizável.
type Config struct {
	// Tamanho máximo da fila de snapshots. Quando o consumidor fica para
	// trás, os MAIS ANTIGOS são descartados: só o estado recente importa.
	SnapshotBuffer int

	// Reconexão com retentativas limitadas (só para conexões por URL; a
	// conexão local do host não tem o que reconectar).
	MaxReconnects  int
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.SnapshotBuffer <= 0 {
		c.SnapshotBuffer = 8
	}
	if c.MaxReconnects < 0 {
		c.MaxReconnects = 0
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 500 * time.Millisecond
	}
	return c
}

// outboxSize limita a fila de saída; uplink congestionado descarta o
// excedente em vez de represar o loop de jogo.
const outboxSize = 64

// LobbyClient é o lado do jogador: conecta, enfileira snapshots e eventos,
// e expõe uma API de poll para o loop de jogo. A goroutine de leitura é a
// única que escreve nas filas; o loop de jogo é o único que lê. Os métodos
// de envio podem ser chamados do loop de jogo a qualquer momento.
type LobbyClient struct {
	cfg Config

	mu        sync.Mutex
	conn      network.MessageConn
	url       string // vazio para conexões locais
	connected bool
	closed    bool
	attempts  int

	// Fila de saída da conexão ativa, drenada por uma goroutine própria;
	// o loop de jogo nunca escreve no transporte diretamente. outDone
	// libera a goroutine quando a conexão morre ou é substituída.
	outbox  chan network.Message
	outDone chan struct{}

	// Filas separadas: snapshots podem ser descartados sob pressão,
	// eventos de ciclo de vida não.
	snapshots []message.Snapshot
	events    []Event
	lastSeq   uint64

	// PlayerID atribuído pelo WELCOME; vazio até lá.
	playerID string
}

// New cria um cliente desconectado.
func New(cfg Config) *LobbyClient {
	return &LobbyClient{cfg: cfg.withDefaults()}
}

// Connect disca um lobby remoto (ws://host:porta/ws) e inicia a leitura.
func (c *LobbyClient) Connect(url string) error {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", url, err)
	}
	c.mu.Lock()
	c.url = url
	c.adopt(network.NewWSConn(ws))
	c.mu.Unlock()
	return nil
}

// ConnectLocal adota o lado de cliente de um loopback em memória (o modo
// host: o mesmo processo roda servidor e jogador).
func (c *LobbyClient) ConnectLocal(conn network.MessageConn) {
	c.mu.Lock()
	c.url = ""
	c.adopt(conn)
	c.mu.Unlock()
}

// adopt instala a conexão e sobe as goroutines de leitura e escrita.
// Chamado com o lock em mãos.
func (c *LobbyClient) adopt(conn network.MessageConn) {
	c.install(conn)
	c.attempts = 0
	go c.readLoop(conn)
}

// install substitui a conexão ativa e o seu escritor. Chamado com o lock
// em mãos.
func (c *LobbyClient) install(conn network.MessageConn) {
	c.dropWriter()
	c.conn = conn
	c.connected = true
	c.outbox = make(chan network.Message, outboxSize)
	c.outDone = make(chan struct{})
	go c.writeLoop(conn, c.outbox, c.outDone)
}

// dropWriter libera a goroutine de escrita da conexão anterior, se houver.
// Chamado com o lock em mãos.
func (c *LobbyClient) dropWriter() {
	if c.outDone != nil {
		close(c.outDone)
		c.outDone = nil
		c.outbox = nil
	}
}

// writeLoop é o ÚNICO escritor da conexão: drena a fila de saída até a
// conexão cair ou ser substituída, e fecha de forma limpa no fim.
func (c *LobbyClient) writeLoop(conn network.MessageConn, out <-chan network.Message, done <-chan struct{}) {
	for {
		select {
		case msg := <-out:
			if err := conn.WriteMessage(msg); err != nil {
				return // a goroutine de leitura detecta a queda e decide
			}
		case <-done:
			conn.WriteClose()
			conn.Close()
			return
		}
	}
}

// Connected informa se há uma conexão viva neste instante.
func (c *LobbyClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// PlayerID é o identificador atribuído no WELCOME ("" antes dele).
func (c *LobbyClient) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Disconnect encerra de vez. Chamadas subsequentes (e envios posteriores)
// viram no-ops; nenhum evento de desconexão é sintetizado para um
// encerramento pedido pelo próprio jogador.
func (c *LobbyClient) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.connected = false
	c.dropWriter()
	if c.conn != nil {
		// Destrava leitor e escritor presos no transporte; o escritor
		// ainda tenta o fechamento limpo antes de sair.
		c.conn.Close()
		c.conn = nil
	}
}

// --- Leitura ---

func (c *LobbyClient) readLoop(conn network.MessageConn) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			c.onReadError(conn, err)
			return
		}
		c.dispatch(msg)
	}
}

// dispatch tria a mensagem: snapshots vão pra fila com descarte dos mais
// antigos e filtro de sequência; todo o resto vira evento.
func (c *LobbyClient) dispatch(msg network.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case message.TypeMatchState:
		var p message.MatchStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			log.Printf("[Client] AVISO: snapshot malformado: %v", err)
			return
		}
		// Snapshot atrasado ou repetido nunca entra na fila.
		if p.State.Seq <= c.lastSeq {
			return
		}
		c.lastSeq = p.State.Seq
		c.snapshots = append(c.snapshots, p.State)
		if over := len(c.snapshots) - c.cfg.SnapshotBuffer; over > 0 {
			c.snapshots = c.snapshots[over:]
		}

	case message.TypeWelcome:
		var p message.WelcomePayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			c.playerID = p.PlayerID
		}
		c.events = append(c.events, Event{Type: msg.Type, Payload: msg.Payload})

	default:
		c.events = append(c.events, Event{Type: msg.Type, Payload: msg.Payload})
	}
}

// onReadError decide entre reconectar e morrer. Uma conexão local não tem
// o que reconectar; uma remota tenta até o limite com espera crescente.
func (c *LobbyClient) onReadError(conn network.MessageConn, err error) {
	conn.Close()

	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return // Disconnect explícito ou conexão já substituída
	}
	c.connected = false
	c.dropWriter()
	url := c.url
	c.attempts++
	attempt := c.attempts
	c.mu.Unlock()

	if url == "" || attempt > c.cfg.MaxReconnects {
		c.terminate()
		return
	}

	delay := c.cfg.ReconnectDelay * time.Duration(attempt)
	log.Printf("[Client] AVISO: conexão perdida (%v); retentativa %d/%d em %s",
		err, attempt, c.cfg.MaxReconnects, delay)
	time.Sleep(delay)

	ws, _, dialErr := websocket.DefaultDialer.Dial(url, nil)
	if dialErr != nil {
		c.onReadError(conn, dialErr)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	newConn := network.NewWSConn(ws)
	c.install(newConn)
	c.mu.Unlock()
	c.readLoop(newConn)
}

// terminate sintetiza o ÚNICO evento de desconexão terminal.
func (c *LobbyClient) terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.dropWriter()
	c.conn = nil
	log.Printf("[Client] conexão encerrada definitivamente")
	c.events = append(c.events, Event{Type: EventDisconnected})
}

// --- Poll (chamado pelo loop de jogo) ---

// PollSnapshot devolve o próximo snapshot pendente, em ordem de sequência
// estritamente crescente. ok=false quando não há nada novo.
func (c *LobbyClient) PollSnapshot() (message.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return message.Snapshot{}, false
	}
	snap := c.snapshots[0]
	c.snapshots = c.snapshots[1:]
	return snap, true
}

// LatestSnapshot pula direto pro snapshot mais novo, descartando a fila.
// Útil quando a cena só quer o agora.
func (c *LobbyClient) LatestSnapshot() (message.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snapshots) == 0 {
		return message.Snapshot{}, false
	}
	snap := c.snapshots[len(c.snapshots)-1]
	c.snapshots = c.snapshots[:0]
	return snap, true
}

// PollEvent devolve o próximo evento pendente, na ordem de chegada.
func (c *LobbyClient) PollEvent() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return Event{}, false
	}
	ev := c.events[0]
	c.events = c.events[1:]
	return ev, true
}

// --- Envio ---

// send enfileira sem NUNCA bloquear o loop de jogo: a escrita real acontece
// na goroutine de escrita. Fila cheia (uplink parado) descarta a mensagem,
// que o estado seguinte substitui de qualquer forma. Erros de transporte
// são deixados para a goroutine de leitura detectar.
func (c *LobbyClient) send(msg network.Message) error {
	c.mu.Lock()
	out := c.outbox
	ok := c.connected
	c.mu.Unlock()
	if !ok || out == nil {
		return ErrNotConnected
	}
	select {
	case out <- msg:
	default:
	}
	return nil
}

func (c *LobbyClient) SendJoin(name, charName string) error {
	return c.send(message.CreateJoin(name, charName))
}

func (c *LobbyClient) SendReady(ready bool) error {
	return c.send(message.CreateSetReady(ready))
}

func (c *LobbyClient) SendStartMatch(seed string) error {
	return c.send(message.CreateStartMatch(seed))
}

// SendInput manda o vetor de movimento do frame. A cadência (reenvio por
// mudança ou por timeout) é decidida pela cena, não aqui.
func (c *LobbyClient) SendInput(x, y float64) error {
	return c.send(message.CreateMatchInput(x, y))
}

func (c *LobbyClient) RequestDuel(target string) error {
	return c.send(message.CreateRequestDuel(target))
}

func (c *LobbyClient) SendDuelChoice(duelID, entry string) error {
	return c.send(message.CreateDuelChoice(duelID, entry))
}

func (c *LobbyClient) SendDuelResult(p message.DuelResultPayload) error {
	return c.send(message.CreateDuelResult(p))
}

func (c *LobbyClient) SendStartMinigame(p message.StartMinigamePayload) error {
	return c.send(network.NewMessage(message.TypeStartMinigame, p))
}

func (c *LobbyClient) SendMinigameResult(p message.MinigameResultPayload) error {
	return c.send(message.CreateMinigameResult(p))
}
