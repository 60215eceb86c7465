package network

// clientMessage empacota uma mensagem com o cliente que a enviou.
// O Hub precisa de ambos para repassar ao EventHandler.
type clientMessage struct {
	client *Client
	msg    Message
}

// Hub mantém o conjunto de clientes ativos e roteia eventos para o handler.
// Todo o estado interno é acessado SOMENTE pela goroutine do Run, então o
// handler pode tocar no estado do lobby sem locks.
type Hub struct {
	// Clientes registrados. Mapa usado como "set".
	clients map[*Client]bool

	// Canal para registrar novos clientes.
	register chan *Client

	// Canal para desregistrar clientes.
	unregister chan *Client

	// Mensagens de entrada; as goroutines readLoop dos clientes escrevem aqui.
	incoming chan clientMessage

	// Fechado pelo Stop do servidor para encerrar o loop e todos os clientes.
	quit chan struct{}

	// Closures agendadas por outras goroutines (a da partida, timers de
	// auto-start) para rodar DENTRO da goroutine do Run. É o único caminho
	// legal para tocar nos canais de envio dos clientes de fora do Hub.
	do chan func()

	// O handler da lógica do jogo que processará os eventos.
	handler EventHandler
}

// NewHub cria, inicializa e retorna um novo Hub.
func NewHub(handler EventHandler) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan clientMessage),
		quit:       make(chan struct{}),
		do:         make(chan func(), 64),
		handler:    handler,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			// Notifica a lógica do jogo que um novo cliente chegou.
			h.handler.OnConnect(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Fechar o canal 'send' é o sinal para o writeLoop daquele
				// cliente parar. MUITO IMPORTANTE fazer isso só uma vez.
				close(client.send)
				h.handler.OnDisconnect(client)
			}

		case clientMsg := <-h.incoming:
			// O Hub não se importa com o conteúdo; delega para o handler.
			h.handler.OnMessage(clientMsg.client, clientMsg.msg)

		case fn := <-h.do:
			fn()

		case <-h.quit:
			// O select pode escolher o quit mesmo com closures já na fila
			// (um Stop logo depois de um Do, por exemplo). Despeja a fila
			// antes de derrubar os clientes para nenhuma se perder.
			for {
				select {
				case fn := <-h.do:
					fn()
					continue
				default:
				}
				break
			}
			// Encerramento gracioso: fecha o send de todo mundo para que os
			// writeLoops despejem o que falta e avisem o outro lado.
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// Do agenda fn para rodar na goroutine do Run. Depois do encerramento do
// Hub a closure é simplesmente descartada; quem agenda não espera resposta.
func (h *Hub) Do(fn func()) {
	select {
	case h.do <- fn:
	case <-h.quit:
	}
}

// Attach registra um cliente vindo de qualquer MessageConn e inicia suas
// goroutines de leitura e escrita. É usado tanto pelo wsHandler quanto pelo
// loopback local do host.
func (h *Hub) Attach(conn MessageConn) *Client {
	client := &Client{
		conn: conn,
		hub:  h,
		send: make(chan Message, 256),
	}
	h.register <- client
	go client.writeLoop()
	go client.readLoop()
	return client
}
