package lobby

import (
	"log"

	"retroroyale/internal/minigame"
	"retroroyale/internal/network"
)

// LobbyServer amarra o servidor de rede ao GameHandler do lobby. É a peça
// que o cmd/server e o modo host do cliente instanciam: um lobby por
// processo, um Hub por lobby.
type LobbyServer struct {
	handler *GameHandler
	srv     *network.Server
}

// NewLobbyServer compõe o lobby. Registry nil usa o catálogo embutido;
// sink nil desliga o feed de eventos.
func NewLobbyServer(cfg Config, registry *minigame.Registry, sink EventSink) *LobbyServer {
	handler := NewGameHandler(cfg, registry, sink)
	srv := network.NewServer(handler)
	handler.bind(srv)
	return &LobbyServer{handler: handler, srv: srv}
}

// LobbyID identifica este lobby (para registro no cluster e no feed).
func (ls *LobbyServer) LobbyID() string { return ls.handler.LobbyID() }

// Start reserva o endereço e serve conexões WebSocket. Bloqueia até o Stop;
// bind impossível volta na hora como network.ErrBind.
func (ls *LobbyServer) Start(address string) error {
	log.Printf("[Lobby %s] iniciando em %s", ls.handler.LobbyID(), address)
	return ls.srv.Listen(address)
}

// Addr é o endereço real do listener (útil com :0).
func (ls *LobbyServer) Addr() string { return ls.srv.Addr() }

// AttachLocal conecta o jogador-host em memória, sem passar por socket.
// O lado retornado alimenta um LobbyClient comum: mesmo protocolo, mesma
// ordenação, zero rede.
func (ls *LobbyServer) AttachLocal() network.MessageConn {
	return ls.srv.AttachLocal()
}

// Stop fecha o lobby de forma graciosa: a partida em andamento (se houver)
// encerra, os clientes recebem o fechamento e o listener é liberado.
func (ls *LobbyServer) Stop() {
	ls.srv.Do(func() { ls.handler.close() })
	ls.srv.Stop()
}
