package network

import (
	"log"
	"time"
)

// Client é a representação de um jogador conectado do ponto de vista do servidor.
// Ele agrupa a conexão e os canais de comunicação.
type Client struct {
	// A conexão real com o jogador (WebSocket ou pipe local).
	conn MessageConn

	// Uma referência ao Hub central. O cliente usa isso para se (des)registrar.
	hub *Hub

	// Canal bufferizado para mensagens de saída. O Hub e o handler colocam
	// mensagens aqui, e a goroutine writeLoop as envia. O buffer evita que
	// o loop autoritativo bloqueie se o cliente estiver lento.
	send chan Message
}

// RemoteAddr identifica o outro lado, útil para o handler logar quem é quem.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr()
}

// Send expõe o canal de saída. É o único jeito seguro de escrever para o
// cliente: nunca escreva diretamente na conexão fora do writeLoop.
func (c *Client) Send() chan<- Message {
	return c.send
}

// TrySend tenta enfileirar sem bloquear. Retorna false quando o buffer do
// cliente está cheio; o chamador decide se a mensagem pode ser perdida
// (snapshots podem, eventos de ciclo de vida não deveriam).
func (c *Client) TrySend(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Kick derruba a conexão pelo lado do servidor. O pequeno atraso dá tempo
// do writeLoop despejar o que já está enfileirado (um REJECT, por exemplo)
// antes do socket fechar; o readLoop então se desregistra sozinho.
func (c *Client) Kick() {
	go func() {
		time.Sleep(250 * time.Millisecond)
		c.conn.Close()
	}()
}

func (c *Client) readLoop() {
	// Garante que a limpeza ocorrerá quando o loop terminar. Se o Hub já
	// estiver encerrando, ninguém consome o unregister, então selecionamos
	// contra o quit para não vazar esta goroutine.
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			if IsUnexpectedClose(err) {
				log.Printf("AVISO: queda inesperada do cliente %s: %v", c.conn.RemoteAddr(), err)
			}
			// Para qualquer erro (desconexão normal ou anormal), saímos do loop.
			break
		}

		// Empacota a mensagem com o cliente que a enviou e entrega ao Hub.
		select {
		case c.hub.incoming <- clientMessage{client: c, msg: msg}:
		case <-c.hub.quit:
			return
		}
	}
}

// writeLoop bombeia mensagens do canal 'send' do cliente para a conexão.
func (c *Client) writeLoop() {
	// Ticker para enviar pings periódicos para o cliente.
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			// O canal 'send' foi fechado pelo Hub: o cliente foi desregistrado.
			if !ok {
				c.conn.WriteClose()
				return
			}

			if err := c.conn.WriteMessage(msg); err != nil {
				log.Printf("AVISO: erro de escrita no cliente %s: %v", c.conn.RemoteAddr(), err)
				return
			}

		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				return // Se o ping falhar, a conexão está morta.
			}
		}
	}
}
