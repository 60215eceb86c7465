package network

// EventHandler é a interface que conecta a camada de rede com a lógica do lobby.
// O código do jogo (fora deste pacote) implementa esta interface; todos os
// callbacks são invocados pela goroutine do Hub, nunca em paralelo entre si.
type EventHandler interface {
	// OnConnect é chamado quando um novo cliente se conecta com sucesso.
	OnConnect(c *Client)

	// OnDisconnect é chamado quando um cliente se desconecta.
	OnDisconnect(c *Client)

	// OnMessage é chamado para cada mensagem recebida de um cliente.
	OnMessage(c *Client, msg Message)
}
