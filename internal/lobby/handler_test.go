package lobby

import (
	"encoding/json"
	"testing"
	"time"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/network"
)

// recvType lê mensagens da conexão até aparecer o tipo esperado, com um
// prazo para o teste nunca pendurar. Tipos intermediários são descartados.
func recvType(t *testing.T, conn network.MessageConn, msgType string, within time.Duration) network.Message {
	t.Helper()
	deadline := time.Now().Add(within)
	result := make(chan network.Message, 1)
	fail := make(chan error, 1)
	go func() {
		for {
			msg, err := conn.ReadMessage()
			if err != nil {
				fail <- err
				return
			}
			if msg.Type == msgType {
				result <- msg
				return
			}
		}
	}()
	select {
	case msg := <-result:
		return msg
	case err := <-fail:
		t.Fatalf("conexão caiu esperando %s: %v", msgType, err)
	case <-time.After(time.Until(deadline)):
		t.Fatalf("timeout esperando %s", msgType)
	}
	return network.Message{} // inalcançável
}

func newTestLobby(t *testing.T, cfg Config) *LobbyServer {
	t.Helper()
	ls := NewLobbyServer(cfg, rpsOnlyRegistry(t), nil)
	t.Cleanup(ls.Stop)
	return ls
}

// join conecta um cliente local e completa o handshake de entrada.
func join(t *testing.T, ls *LobbyServer, name string) (network.MessageConn, string) {
	t.Helper()
	conn := ls.AttachLocal()
	welcome := recvType(t, conn, message.TypeWelcome, time.Second)
	var p message.WelcomePayload
	if err := json.Unmarshal(welcome.Payload, &p); err != nil {
		t.Fatalf("WELCOME malformado: %v", err)
	}
	if err := conn.WriteMessage(message.CreateJoin(name, "")); err != nil {
		t.Fatalf("JOIN falhou: %v", err)
	}
	return conn, p.PlayerID
}

func TestJoinHandshakeAndRoster(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	ls := newTestLobby(t, cfg)

	c1, id1 := join(t, ls, "Alice")
	_, id2 := join(t, ls, "Bruno")
	if id1 == id2 {
		t.Fatalf("IDs de participante colidiram: %s", id1)
	}

	// O primeiro cliente acaba vendo o roster com os dois nomes.
	deadline := time.Now().Add(2 * time.Second)
	for {
		msg := recvType(t, c1, message.TypeLobbyState, time.Until(deadline))
		var p message.LobbyStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			t.Fatalf("LOBBY_STATE malformado: %v", err)
		}
		if p.State.HostID != id1 {
			t.Fatalf("host deveria ser o primeiro a entrar: quer %s, veio %s", id1, p.State.HostID)
		}
		names := map[string]bool{}
		for _, pl := range p.State.Players {
			names[pl.Name] = true
		}
		if names["Alice"] && names["Bruno"] {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("roster nunca mostrou os dois jogadores: %+v", p.State.Players)
		}
	}
}

func TestRejectWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	cfg.MaxPlayers = 1
	ls := newTestLobby(t, cfg)

	join(t, ls, "Alice")

	conn := ls.AttachLocal()
	msg := recvType(t, conn, message.TypeReject, time.Second)
	var p message.RejectPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("REJECT malformado: %v", err)
	}
	if p.Reason != message.RejectLobbyFull {
		t.Fatalf("quer motivo %s, veio %s", message.RejectLobbyFull, p.Reason)
	}
}

func TestHostStartsMatchAndSnapshotsFlow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	ls := newTestLobby(t, cfg)

	c1, _ := join(t, ls, "Alice")
	c2, _ := join(t, ls, "Bruno")

	if err := c1.WriteMessage(message.CreateStartMatch("seed-teste")); err != nil {
		t.Fatalf("START_MATCH falhou: %v", err)
	}

	for _, conn := range []network.MessageConn{c1, c2} {
		msg := recvType(t, conn, message.TypeMatchStart, 2*time.Second)
		var p message.MatchStartPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			t.Fatalf("MATCH_START malformado: %v", err)
		}
		if p.Match.Seed != "seed-teste" || len(p.Match.Spawns) != 2 {
			t.Fatalf("plano de partida errado: %+v", p.Match)
		}
	}

	// Snapshots em sequência estritamente crescente.
	var prev uint64
	for i := 0; i < 3; i++ {
		msg := recvType(t, c1, message.TypeMatchState, 2*time.Second)
		var p message.MatchStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			t.Fatalf("MATCH_STATE malformado: %v", err)
		}
		if p.State.Seq <= prev {
			t.Fatalf("sequência regrediu: %d depois de %d", p.State.Seq, prev)
		}
		prev = p.State.Seq
	}
}

func TestNonHostCannotStart(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	ls := newTestLobby(t, cfg)

	join(t, ls, "Alice")
	c2, _ := join(t, ls, "Bruno")

	if err := c2.WriteMessage(message.CreateStartMatch("")); err != nil {
		t.Fatalf("escrita falhou: %v", err)
	}
	recvType(t, c2, message.TypeError, 2*time.Second)
}

func TestAutoStartOnQuorum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartDelay = 50 * time.Millisecond
	ls := newTestLobby(t, cfg)

	c1, _ := join(t, ls, "Alice")
	c2, _ := join(t, ls, "Bruno")

	c1.WriteMessage(message.CreateSetReady(true))
	c2.WriteMessage(message.CreateSetReady(true))

	recvType(t, c1, message.TypeMatchStart, 3*time.Second)
	recvType(t, c2, message.TypeMatchStart, 3*time.Second)
}

func TestSlotFreedAfterMidMatchDisconnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	cfg.MaxPlayers = 2
	cfg.ResetDelay = 20 * time.Millisecond
	ls := newTestLobby(t, cfg)

	c1, _ := join(t, ls, "Alice")
	c2, _ := join(t, ls, "Bruno")

	c1.WriteMessage(message.CreateStartMatch(""))
	recvType(t, c1, message.TypeMatchStart, 2*time.Second)

	// Bruno cai no meio da partida: é eliminado e Alice vence sozinha.
	c2.Close()
	recvType(t, c1, message.TypeMatchOver, 3*time.Second)

	// De volta ao lobby, o roster não carrega o fantasma de quem caiu.
	deadline := time.Now().Add(3 * time.Second)
	for {
		msg := recvType(t, c1, message.TypeLobbyState, time.Until(deadline))
		var p message.LobbyStatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			t.Fatalf("LOBBY_STATE malformado: %v", err)
		}
		if len(p.State.Players) == 1 {
			break
		}
	}

	// E a vaga liberada aceita um jogador novo em vez de lobby_full.
	conn := ls.AttachLocal()
	recvType(t, conn, message.TypeWelcome, 3*time.Second)
}

func TestLobbyClosesWhenAllDisconnectMidMatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	cfg.MaxPlayers = 2
	ls := newTestLobby(t, cfg)

	c1, _ := join(t, ls, "Alice")
	c2, _ := join(t, ls, "Bruno")
	c1.WriteMessage(message.CreateStartMatch(""))
	recvType(t, c1, message.TypeMatchStart, 2*time.Second)

	c1.Close()
	c2.Close()

	// Com o roster vazio o lobby fecha assim que a partida devolve o
	// resultado; até lá conexões novas veem match_active, nunca lobby_full.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn := ls.AttachLocal()
		msg := recvType(t, conn, message.TypeReject, time.Until(deadline))
		var p message.RejectPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			t.Fatalf("REJECT malformado: %v", err)
		}
		switch p.Reason {
		case message.RejectLobbyClosed:
			return
		case message.RejectMatchActive:
			conn.Close()
			time.Sleep(20 * time.Millisecond)
		default:
			t.Fatalf("motivo de rejeição inesperado: %s", p.Reason)
		}
	}
	t.Fatal("lobby vazio nunca fechou depois da partida")
}

func TestDisconnectDuringMatchAnnouncesLeft(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	ls := newTestLobby(t, cfg)

	c1, _ := join(t, ls, "Alice")
	c2, id2 := join(t, ls, "Bruno")
	c3, _ := join(t, ls, "Carla")

	c1.WriteMessage(message.CreateStartMatch(""))
	recvType(t, c1, message.TypeMatchStart, 2*time.Second)

	c2.Close()

	msg := recvType(t, c1, message.TypePlayerLeft, 2*time.Second)
	var p message.PlayerLeftPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("PLAYER_LEFT malformado: %v", err)
	}
	if p.PlayerID != id2 {
		t.Fatalf("quer saída de %s, veio %s", id2, p.PlayerID)
	}

	// O ator de quem caiu é eliminado pela partida, dentro de um tick.
	elim := recvType(t, c3, message.TypeEliminated, 2*time.Second)
	var e message.EliminatedPayload
	if err := json.Unmarshal(elim.Payload, &e); err != nil {
		t.Fatalf("ELIMINATED malformado: %v", err)
	}
	if e.PlayerID != id2 {
		t.Fatalf("quer eliminação de %s, veio %s", id2, e.PlayerID)
	}
}
