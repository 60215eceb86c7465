package network

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// recvMessage lê com timeout para o teste nunca pendurar.
func recvMessage(t *testing.T, conn MessageConn, within time.Duration) Message {
	t.Helper()
	type result struct {
		msg Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := conn.ReadMessage()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("leitura falhou: %v", r.err)
		}
		return r.msg
	case <-time.After(within):
		t.Fatalf("timeout esperando mensagem")
		return Message{} // inalcançável
	}
}

func TestNewMessagePayload(t *testing.T) {
	msg := NewMessage("PING", map[string]int{"n": 7})
	if msg.Type != "PING" {
		t.Fatalf("tipo: quer PING, veio %s", msg.Type)
	}
	var got map[string]int
	if err := json.Unmarshal(msg.Payload, &got); err != nil || got["n"] != 7 {
		t.Fatalf("payload não sobreviveu à volta: %s (%v)", msg.Payload, err)
	}
}

func TestPipePreservesOrder(t *testing.T) {
	server, cli := NewPipe()
	defer server.Close()
	defer cli.Close()

	for i := 0; i < 10; i++ {
		if err := server.WriteMessage(NewMessage("SEQ", map[string]int{"i": i})); err != nil {
			t.Fatalf("escrita %d falhou: %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		msg := recvMessage(t, cli, time.Second)
		var p map[string]int
		json.Unmarshal(msg.Payload, &p)
		if p["i"] != i {
			t.Fatalf("ordem quebrada: quer %d, veio %d", i, p["i"])
		}
	}
}

func TestPipeDrainsAfterPeerClose(t *testing.T) {
	server, cli := NewPipe()

	server.WriteMessage(NewMessage("LAST", nil))
	server.Close()

	// A mensagem já entregue ainda deve ser lida antes do erro de fim.
	msg := recvMessage(t, cli, time.Second)
	if msg.Type != "LAST" {
		t.Fatalf("quer LAST, veio %s", msg.Type)
	}
	if _, err := cli.ReadMessage(); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("esperava ErrConnClosed depois do dreno, veio: %v", err)
	}
}

func TestPipeWriteAfterCloseFails(t *testing.T) {
	server, cli := NewPipe()
	cli.Close()
	server.Close()
	if err := server.WriteMessage(NewMessage("X", nil)); !errors.Is(err, ErrConnClosed) {
		t.Fatalf("escrita pós-fechamento deveria falhar com ErrConnClosed, veio: %v", err)
	}
}
