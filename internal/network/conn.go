package network

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Tempo para aguardar por uma escrita na conexão.
	writeWait = 10 * time.Second

	// Tempo máximo para aguardar por uma resposta de pong do cliente.
	pongWait = 60 * time.Second

	// Frequência com que enviamos pings. Deve ser menor que pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// ErrConnClosed é retornado por leituras/escritas em uma conexão já encerrada.
var ErrConnClosed = errors.New("network: connection closed")

// MessageConn abstrai o transporte de envelopes Message.
// Existem duas implementações: wsConn (WebSocket real, via gorilla) e
// pipeConn (par de canais em memória, usado quando o cliente local é o
// próprio host e não precisa de socket). Ambas preservam o mesmo
// contrato de ordenação: mensagens chegam na ordem em que foram escritas.
type MessageConn interface {
	// ReadMessage bloqueia até a próxima mensagem ou erro de conexão.
	ReadMessage() (Message, error)

	// WriteMessage envia um envelope. Não é seguro para uso concorrente;
	// o writeLoop do Client é o único escritor.
	WriteMessage(Message) error

	// Ping envia um keepalive. Em pipes locais é um no-op.
	Ping() error

	// WriteClose avisa o outro lado que vamos fechar de forma limpa.
	WriteClose() error

	// Close derruba a conexão. Idempotente.
	Close() error

	// RemoteAddr identifica o outro lado, para logs.
	RemoteAddr() string
}

// --- Implementação WebSocket ---

type wsConn struct {
	conn *websocket.Conn
}

// NewWSConn embrulha uma conexão gorilla já estabelecida.
// Configura o limite de tamanho e o handler de pong que mantém
// o read deadline avançando enquanto o outro lado responder.
func NewWSConn(conn *websocket.Conn) MessageConn {
	conn.SetReadLimit(MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadMessage() (Message, error) {
	var msg Message
	if err := w.conn.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (w *wsConn) WriteMessage(msg Message) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(msg)
}

func (w *wsConn) Ping() error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

func (w *wsConn) WriteClose() error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (w *wsConn) Close() error { return w.conn.Close() }

func (w *wsConn) RemoteAddr() string { return w.conn.RemoteAddr().String() }

// IsUnexpectedClose diz se o erro de leitura representa uma queda anormal
// (útil para decidir se vale a pena logar com destaque).
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure)
}

// --- Implementação em memória (loopback do host) ---

type pipeConn struct {
	in        <-chan Message
	out       chan<- Message
	done      chan struct{}
	peerDone  <-chan struct{}
	closeOnce sync.Once
	name      string
}

// NewPipe cria um par de conexões em memória já interligadas.
// O lado "server" é registrado no Hub como se fosse um socket comum;
// o lado "client" vai para o LobbyClient local. Os buffers evitam que
// um lado lento bloqueie o outro imediatamente.
func NewPipe() (server MessageConn, client MessageConn) {
	toServer := make(chan Message, 64)
	toClient := make(chan Message, 64)
	srvDone := make(chan struct{})
	cliDone := make(chan struct{})
	srv := &pipeConn{in: toServer, out: toClient, done: srvDone, peerDone: cliDone, name: "pipe:client"}
	cli := &pipeConn{in: toClient, out: toServer, done: cliDone, peerDone: srvDone, name: "pipe:server"}
	return srv, cli
}

func (p *pipeConn) ReadMessage() (Message, error) {
	select {
	case msg, ok := <-p.in:
		if !ok {
			return Message{}, ErrConnClosed
		}
		return msg, nil
	case <-p.done:
		return Message{}, ErrConnClosed
	case <-p.peerDone:
		// Drena o que já estava no buffer antes de reportar o fechamento,
		// para não perder mensagens enviadas antes do Close do outro lado.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return Message{}, ErrConnClosed
		}
	}
}

func (p *pipeConn) WriteMessage(msg Message) error {
	// Checa o fechamento antes de tentar enviar: um select único poderia
	// escolher o envio mesmo com a conexão já encerrada.
	select {
	case <-p.done:
		return ErrConnClosed
	case <-p.peerDone:
		return ErrConnClosed
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrConnClosed
	case <-p.peerDone:
		return ErrConnClosed
	}
}

func (p *pipeConn) Ping() error       { return nil }
func (p *pipeConn) WriteClose() error { return nil }

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *pipeConn) RemoteAddr() string { return p.name }
