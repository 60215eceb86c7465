package client

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/network"
)

// snapMsg monta um MATCH_STATE com a sequência dada.
func snapMsg(seq uint64) network.Message {
	return message.CreateMatchState(message.Snapshot{Seq: seq, Tick: seq})
}

// waitEvent espera o próximo evento com prazo, para o teste nunca pendurar.
func waitEvent(t *testing.T, cli *LobbyClient, within time.Duration) Event {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if ev, ok := cli.PollEvent(); ok {
			return ev
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout esperando evento")
	return Event{} // inalcançável
}

func newLocalClient(t *testing.T, cfg Config) (*LobbyClient, network.MessageConn) {
	t.Helper()
	serverSide, clientSide := network.NewPipe()
	cli := New(cfg)
	cli.ConnectLocal(clientSide)
	t.Cleanup(cli.Disconnect)
	return cli, serverSide
}

func TestSnapshotQueueDropsOldest(t *testing.T) {
	cli, server := newLocalClient(t, Config{SnapshotBuffer: 8})

	for seq := uint64(1); seq <= 10; seq++ {
		if err := server.WriteMessage(snapMsg(seq)); err != nil {
			t.Fatalf("escrita %d falhou: %v", seq, err)
		}
	}
	// Sentinela depois dos snapshots: quando ela chegar, tudo foi triado.
	server.WriteMessage(message.CreateEliminated("x"))
	if ev := waitEvent(t, cli, time.Second); ev.Type != message.TypeEliminated {
		t.Fatalf("sentinela errada: %s", ev.Type)
	}

	// 10 entraram, o limite é 8: os DOIS MAIS ANTIGOS caem (1 e 2).
	var got []uint64
	for {
		snap, ok := cli.PollSnapshot()
		if !ok {
			break
		}
		got = append(got, snap.Seq)
	}
	if len(got) != 8 || got[0] != 3 || got[len(got)-1] != 10 {
		t.Fatalf("fila errada: quer [3..10], veio %v", got)
	}
}

func TestSnapshotSeqMonotonic(t *testing.T) {
	cli, server := newLocalClient(t, Config{})

	server.WriteMessage(snapMsg(5))
	server.WriteMessage(snapMsg(4)) // atrasado: deve ser descartado
	server.WriteMessage(snapMsg(5)) // repetido: idem
	server.WriteMessage(snapMsg(6))
	server.WriteMessage(message.CreateEliminated("x"))
	waitEvent(t, cli, time.Second)

	var got []uint64
	for {
		snap, ok := cli.PollSnapshot()
		if !ok {
			break
		}
		got = append(got, snap.Seq)
	}
	if len(got) != 2 || got[0] != 5 || got[1] != 6 {
		t.Fatalf("filtro de sequência errado: quer [5 6], veio %v", got)
	}
}

func TestLatestSnapshotSkipsQueue(t *testing.T) {
	cli, server := newLocalClient(t, Config{})

	for seq := uint64(1); seq <= 4; seq++ {
		server.WriteMessage(snapMsg(seq))
	}
	server.WriteMessage(message.CreateEliminated("x"))
	waitEvent(t, cli, time.Second)

	snap, ok := cli.LatestSnapshot()
	if !ok || snap.Seq != 4 {
		t.Fatalf("quer o mais novo (4), veio %v (%v)", snap.Seq, ok)
	}
	if _, ok := cli.PollSnapshot(); ok {
		t.Fatal("LatestSnapshot deveria ter esvaziado a fila")
	}
}

func TestEventsPreserveOrder(t *testing.T) {
	cli, server := newLocalClient(t, Config{})

	server.WriteMessage(message.CreatePlayerLeft("p1"))
	server.WriteMessage(message.CreateEliminated("p1"))
	server.WriteMessage(message.CreateMatchOver("p2", false))

	want := []string{message.TypePlayerLeft, message.TypeEliminated, message.TypeMatchOver}
	for _, typ := range want {
		ev := waitEvent(t, cli, time.Second)
		if ev.Type != typ {
			t.Fatalf("ordem de eventos quebrada: quer %s, veio %s", typ, ev.Type)
		}
	}
}

func TestWelcomeSetsPlayerID(t *testing.T) {
	cli, server := newLocalClient(t, Config{})

	server.WriteMessage(message.CreateWelcome("pid-42", message.LobbyState{}))
	ev := waitEvent(t, cli, time.Second)
	if ev.Type != message.TypeWelcome {
		t.Fatalf("quer WELCOME, veio %s", ev.Type)
	}
	if cli.PlayerID() != "pid-42" {
		t.Fatalf("PlayerID não foi absorvido: %q", cli.PlayerID())
	}
}

func TestLocalConnLossIsTerminal(t *testing.T) {
	cli, server := newLocalClient(t, Config{MaxReconnects: 3})

	server.Close()

	// Conexão local não tem o que reconectar: UM evento terminal, e só.
	ev := waitEvent(t, cli, time.Second)
	if ev.Type != EventDisconnected {
		t.Fatalf("quer %s, veio %s", EventDisconnected, ev.Type)
	}
	if _, ok := cli.PollEvent(); ok {
		t.Fatal("não deveria haver eventos depois do terminal")
	}
	if cli.Connected() {
		t.Fatal("cliente deveria constar como desconectado")
	}
	if err := cli.SendInput(1, 0); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("envio pós-queda deveria dar ErrNotConnected, veio: %v", err)
	}
}

// recvFrom lê do lado do servidor com prazo, para o teste nunca pendurar.
func recvFrom(t *testing.T, conn network.MessageConn, within time.Duration) network.Message {
	t.Helper()
	ch := make(chan network.Message, 1)
	go func() {
		if msg, err := conn.ReadMessage(); err == nil {
			ch <- msg
		}
	}()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(within):
		t.Fatalf("timeout lendo do lado do servidor")
		return network.Message{} // inalcançável
	}
}

func TestSendNeverBlocksOnStalledUplink(t *testing.T) {
	// Ninguém lê o lado do servidor: o uplink fica completamente parado.
	cli, _ := newLocalClient(t, Config{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			cli.SendInput(float64(i), 0)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("envio bloqueou o chamador com o uplink parado")
	}
}

func TestSendsArriveInOrder(t *testing.T) {
	cli, server := newLocalClient(t, Config{})

	cli.SendJoin("Alice", "mago")
	cli.SendReady(true)
	cli.SendStartMatch("s1")

	want := []string{message.TypeJoin, message.TypeSetReady, message.TypeStartMatch}
	for _, typ := range want {
		msg := recvFrom(t, server, time.Second)
		if msg.Type != typ {
			t.Fatalf("ordem de envio quebrada: quer %s, veio %s", typ, msg.Type)
		}
	}
}

// startWSServer sobe um servidor WebSocket mínimo que só aceita conexões;
// o shutdown derruba listener e conexões, deixando a porta recusando tudo.
func startWSServer(t *testing.T) (url string, shutdown func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var mu sync.Mutex
	var conns []*websocket.Conn
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns = append(conns, ws)
		mu.Unlock()
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listener de teste falhou: %v", err)
	}
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	return "ws://" + ln.Addr().String() + "/ws", func() {
		srv.Close()
		mu.Lock()
		for _, ws := range conns {
			ws.Close()
		}
		mu.Unlock()
	}
}

func TestReconnectRetriesThenSingleTerminalEvent(t *testing.T) {
	url, shutdown := startWSServer(t)
	cli := New(Config{MaxReconnects: 3, ReconnectDelay: 5 * time.Millisecond})
	if err := cli.Connect(url); err != nil {
		t.Fatalf("conexão inicial falhou: %v", err)
	}
	t.Cleanup(cli.Disconnect)

	// Servidor some de vez: toda rediscagem bate em porta fechada.
	shutdown()

	ev := waitEvent(t, cli, 5*time.Second)
	if ev.Type != EventDisconnected {
		t.Fatalf("quer %s após esgotar as retentativas, veio %s", EventDisconnected, ev.Type)
	}
	if _, ok := cli.PollEvent(); ok {
		t.Fatal("o evento terminal deve ser único")
	}
	if cli.Connected() {
		t.Fatal("cliente deveria constar como desconectado")
	}
	if err := cli.SendInput(1, 0); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("envio pós-esgotamento deveria dar ErrNotConnected, veio: %v", err)
	}
}

func TestDisconnectIdempotentAndSilent(t *testing.T) {
	cli, _ := newLocalClient(t, Config{})

	cli.Disconnect()
	cli.Disconnect() // repetido: no-op

	// Encerramento pedido pelo jogador não sintetiza evento terminal.
	time.Sleep(20 * time.Millisecond)
	if ev, ok := cli.PollEvent(); ok {
		t.Fatalf("não deveria haver evento após Disconnect explícito: %+v", ev)
	}
	if err := cli.SendReady(true); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("envio pós-Disconnect deveria dar ErrNotConnected, veio: %v", err)
	}
}
