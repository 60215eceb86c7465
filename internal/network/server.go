package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrBind indica que o endereço pedido não pôde ser reservado.
// O chamador recebe esse erro na hora, sem retry: porta ocupada é um
// problema de configuração, não um problema transitório.
var ErrBind = errors.New("network: bind failed")

// Server é a estrutura principal do nosso servidor de rede.
// Ele gerencia um Hub e o listener HTTP que promove conexões a WebSocket.
type Server struct {
	hub      *Hub
	httpSrv  *http.Server
	listener net.Listener
	hubOnce  sync.Once
	stopOnce sync.Once
}

// upgrader armazena as configurações para promover uma conexão HTTP para WebSocket.
var upgrader = websocket.Upgrader{
	// CheckOrigin permite controlar quais domínios podem se conectar.
	// Para partidas caseiras/LAN, aceitamos qualquer origem.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewServer aceita um EventHandler para passá-lo ao Hub.
// Este é o ponto de injeção da lógica do jogo.
func NewServer(handler EventHandler) *Server {
	return &Server{
		hub: NewHub(handler),
	}
}

// wsHandler é o ponto de entrada para conexões de clientes.
// Ele lida com a requisição HTTP e a promove para uma conexão WebSocket.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("AVISO: erro ao fazer upgrade da conexão: %v", err)
		return
	}
	s.hub.Attach(NewWSConn(conn))
}

// Listen reserva o endereço, inicia o Hub e serve conexões WebSocket em /ws.
// Bloqueia até o Stop. Chamar Listen duas vezes no mesmo Server é erro de
// programação e não é suportado.
func (s *Server) Listen(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBind, address, err)
	}
	s.listener = ln

	s.startHub()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)
	s.httpSrv = &http.Server{Handler: mux}

	log.Printf("[Server] escutando em ws://%s/ws", ln.Addr())

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startHub garante que a goroutine do Hub rode exatamente uma vez,
// independente de quem chegou primeiro (Listen ou AttachLocal).
func (s *Server) startHub() {
	s.hubOnce.Do(func() { go s.hub.Run() })
}

// AttachLocal conecta um cliente em memória, sem socket, preservando o mesmo
// contrato de ordenação das conexões reais. O lado retornado vai para o
// LobbyClient do próprio host.
func (s *Server) AttachLocal() MessageConn {
	s.startHub()
	serverSide, clientSide := NewPipe()
	s.hub.Attach(serverSide)
	return clientSide
}

// Do agenda fn na goroutine do Hub. Atalho para quem só tem o Server.
func (s *Server) Do(fn func()) {
	s.hub.Do(fn)
}

// Addr retorna o endereço real do listener (útil quando se escuta em :0).
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop encerra o listener e derruba todos os clientes de forma graciosa.
// Seguro para chamar de um handler de sinal; broadcasts já enfileirados
// são despejados pelos writeLoops antes das conexões fecharem.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.hub.quit)
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			s.httpSrv.Shutdown(ctx)
		}
	})
}
