package lobby

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
	"retroroyale/internal/network"
)

// captureOut implementa broadcaster gravando tudo em memória, síncrono.
// O MatchState não sabe a diferença; os testes inspecionam depois.
type captureOut struct {
	msgs   []network.Message
	snaps  []message.Snapshot
	direct map[string][]network.Message
}

func newCaptureOut() *captureOut {
	return &captureOut{direct: make(map[string][]network.Message)}
}

func (c *captureOut) Broadcast(msg network.Message)           { c.msgs = append(c.msgs, msg) }
func (c *captureOut) BroadcastSnapshot(snap message.Snapshot) { c.snaps = append(c.snaps, snap) }
func (c *captureOut) SendTo(pid string, msg network.Message) {
	c.direct[pid] = append(c.direct[pid], msg)
}

func (c *captureOut) lastOfType(msgType string) (network.Message, bool) {
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type == msgType {
			return c.msgs[i], true
		}
	}
	return network.Message{}, false
}

func (c *captureOut) countOfType(msgType string) int {
	n := 0
	for _, m := range c.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

// rpsOnlyRegistry deixa a roleta com uma entrada só, para os testes de
// duelo saberem qual minigame vai ser escolhido.
func rpsOnlyRegistry(t *testing.T) *minigame.Registry {
	t.Helper()
	r := minigame.NewRegistry()
	if err := r.Register(minigame.RPSDuelCapability()); err != nil {
		t.Fatalf("registro do duelo clássico falhou: %v", err)
	}
	return r
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SafeShrinkDelay = 1 << 20 // zona parada, salvo quando o teste quer
	return cfg
}

func planFor(seed string, spawns ...message.Spawn) message.MatchPlan {
	plan := message.MatchPlan{MapName: "test_arena", Mode: "tournament", Seed: seed}
	for _, s := range spawns {
		plan.Players = append(plan.Players, message.LobbyPlayer{PlayerID: s.PlayerID, Name: s.PlayerID})
		plan.Spawns = append(plan.Spawns, s)
	}
	return plan
}

func newTestState(t *testing.T, cfg Config, reg *minigame.Registry, seed string, spawns ...message.Spawn) (*MatchState, *captureOut) {
	t.Helper()
	out := newCaptureOut()
	ms := newMatchState(cfg, "lobby-test", seed, planFor(seed, spawns...), reg, nil, out, 0)
	return ms, out
}

func TestStepMovesPlayerAndClampsToBounds(t *testing.T) {
	cfg := testConfig()
	ms, _ := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "b", X: 800, Y: 400},
	)

	ms.ApplyInput("a", 1, 0)
	ms.Step(cfg.dt())
	if ms.actors["a"].x <= 100 {
		t.Fatalf("ator deveria ter andado pra direita, ficou em %.1f", ms.actors["a"].x)
	}

	// Décadas de ticks contra a borda: nunca sai do mapa.
	ms.ApplyInput("a", 1, 1)
	for i := 0; i < 500; i++ {
		ms.Step(cfg.dt())
	}
	a := ms.actors["a"]
	if a.x > cfg.MapW || a.y > cfg.MapH {
		t.Fatalf("ator escapou do mapa: (%.1f, %.1f)", a.x, a.y)
	}
}

func TestInputClampedToUnitRange(t *testing.T) {
	cfg := testConfig()
	ms, _ := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "b", X: 800, Y: 400},
	)
	ms.ApplyInput("a", 50, -50) // cliente malicioso
	ms.Step(cfg.dt())
	a := ms.actors["a"]
	if a.vx > cfg.PlayerSpeed+0.01 || a.vy < -cfg.PlayerSpeed-0.01 {
		t.Fatalf("velocidade estourou o limite: (%.1f, %.1f)", a.vx, a.vy)
	}
}

func TestSnapshotSeqStrictlyIncreasing(t *testing.T) {
	cfg := testConfig()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "b", X: 800, Y: 400},
	)
	startSeq := uint64(5)
	ms.seq = startSeq

	for i := 0; i < 20; i++ {
		ms.Step(cfg.dt())
	}
	if len(out.snaps) != 20 {
		t.Fatalf("quer 20 snapshots, vieram %d", len(out.snaps))
	}
	prev := startSeq
	for i, snap := range out.snaps {
		if snap.Seq <= prev {
			t.Fatalf("snapshot %d não cresceu: %d depois de %d", i, snap.Seq, prev)
		}
		prev = snap.Seq
	}
}

func TestProximityTriggerStartsAndFreezesDuel(t *testing.T) {
	cfg := testConfig()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 200, Y: 200},
		message.Spawn{PlayerID: "b", X: 230, Y: 200}, // a 30px, dentro do raio 44
		message.Spawn{PlayerID: "c", X: 800, Y: 500},
	)

	ms.Step(cfg.dt())
	if ms.duel == nil {
		t.Fatal("par dentro do raio deveria ter disparado um duelo")
	}
	if _, ok := out.lastOfType(message.TypeDuelStart); !ok {
		t.Fatal("DUEL_START não foi difundido")
	}
	if !ms.duel.has("a") || !ms.duel.has("b") {
		t.Fatalf("duelistas errados: %s x %s", ms.duel.A, ms.duel.B)
	}

	// Duelistas congelados: input não move.
	before := ms.actors["a"].x
	ms.ApplyInput("a", 1, 0)
	ms.Step(cfg.dt())
	if ms.actors["a"].x != before {
		t.Fatalf("duelista se moveu durante o duelo: %.1f -> %.1f", before, ms.actors["a"].x)
	}
}

func TestRPSDuelBestOfThree(t *testing.T) {
	cfg := testConfig()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 200, Y: 200},
		message.Spawn{PlayerID: "b", X: 230, Y: 200},
	)
	ms.Step(cfg.dt())
	d := ms.duel
	if d == nil || d.Selected != minigame.RPSDuelID {
		t.Fatalf("esperava duelo clássico ativo, veio %+v", d)
	}

	// Rodada 1: a vence. Rodada 2: empate (não pontua). Rodada 3: a fecha.
	plays := [][2]string{
		{minigame.ChoiceRock, minigame.ChoiceScissors},
		{minigame.ChoicePaper, minigame.ChoicePaper},
		{minigame.ChoiceScissors, minigame.ChoicePaper},
	}
	for _, play := range plays {
		if err := ms.handleDuelChoice("a", d.ID, play[0]); err != nil {
			t.Fatalf("jogada de a falhou: %v", err)
		}
		if err := ms.handleDuelChoice("b", d.ID, play[1]); err != nil {
			t.Fatalf("jogada de b falhou: %v", err)
		}
	}

	if got := out.countOfType(message.TypeDuelRoundResult); got != 3 {
		t.Fatalf("quer 3 resultados de rodada, vieram %d", got)
	}
	if ms.duel != nil {
		t.Fatal("duelo deveria ter sido resolvido com 2 pontos")
	}
	if !ms.eliminated["b"] {
		t.Fatal("perdedor deveria ter sido eliminado")
	}
	if ms.eliminated["a"] {
		t.Fatal("vencedor não pode ser eliminado")
	}
	if _, ok := out.lastOfType(message.TypeDuelResult); !ok {
		t.Fatal("DUEL_RESULT não foi difundido")
	}
}

func TestInvalidDuelChoiceRejected(t *testing.T) {
	cfg := testConfig()
	ms, _ := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 200, Y: 200},
		message.Spawn{PlayerID: "b", X: 230, Y: 200},
	)
	ms.Step(cfg.dt())
	d := ms.duel

	if err := ms.handleDuelChoice("a", d.ID, "lizard"); !errors.Is(err, ErrProtocol) {
		t.Fatalf("jogada inválida deveria dar ErrProtocol, veio: %v", err)
	}
	if err := ms.handleDuelChoice("a", "duel-falso", minigame.ChoiceRock); !errors.Is(err, ErrProtocol) {
		t.Fatalf("duelo inexistente deveria dar ErrProtocol, veio: %v", err)
	}
}

func TestDisconnectDuringDuelIsForfeitSameTick(t *testing.T) {
	cfg := testConfig()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 200, Y: 200},
		message.Spawn{PlayerID: "b", X: 230, Y: 200},
		message.Spawn{PlayerID: "c", X: 800, Y: 500},
	)
	ms.Step(cfg.dt())
	if ms.duel == nil {
		t.Fatal("setup: duelo não começou")
	}

	// b cai: a vence por desistência ANTES do Leave retornar.
	ms.Leave("b")
	if ms.duel != nil {
		t.Fatal("duelo deveria ter sido fechado na queda")
	}
	msg, ok := out.lastOfType(message.TypeDuelResult)
	if !ok {
		t.Fatal("DUEL_RESULT não foi difundido")
	}
	var p message.DuelResolvedPayload
	decodePayload(t, msg, &p)
	if p.Winner != "a" || !p.Forfeit {
		t.Fatalf("quer vitória de a por forfeit, veio %+v", p)
	}
	if !ms.eliminated["b"] {
		t.Fatal("quem caiu deveria estar eliminado")
	}
}

func TestNPCDuelAutoplayResolves(t *testing.T) {
	cfg := testConfig()
	ms, _ := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 200, Y: 200},
		message.Spawn{PlayerID: "npc-1", X: 230, Y: 200, NPC: true},
		message.Spawn{PlayerID: "c", X: 800, Y: 500},
	)
	ms.Step(cfg.dt())
	d := ms.duel
	if d == nil {
		t.Fatal("setup: duelo humano x NPC não começou")
	}

	// O autoplay é determinístico e público: o teste calcula a jogada do
	// NPC e responde com a que vence, rodada a rodada.
	counter := map[string]string{
		minigame.ChoiceRock:     minigame.ChoicePaper,
		minigame.ChoicePaper:    minigame.ChoiceScissors,
		minigame.ChoiceScissors: minigame.ChoiceRock,
	}
	for i := 0; i < 10 && ms.duel != nil; i++ {
		ai := minigame.RPSAIChoice(fmt.Sprintf("%d-npc-1", d.Seed), ms.duel.Round, []string{d.A, d.B})
		if err := ms.handleDuelChoice("a", d.ID, counter[ai]); err != nil {
			t.Fatalf("jogada contra NPC falhou: %v", err)
		}
	}
	if ms.duel != nil {
		t.Fatal("duelo contra NPC não resolveu em 10 rodadas vencidas")
	}
	if !ms.eliminated["npc-1"] {
		t.Fatal("NPC perdeu todas as rodadas e deveria estar eliminado")
	}
}

func TestNPCPseudoDuelResolvesInOneTick(t *testing.T) {
	cfg := testConfig()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "npc-1", X: 700, Y: 400, NPC: true},
		message.Spawn{PlayerID: "npc-2", X: 730, Y: 400, NPC: true},
	)

	// Step numa goroutine: se o pseudo-duelo não convergir, o tick nunca
	// volta e o teste falha pelo prazo em vez de pendurar a suíte.
	done := make(chan struct{})
	go func() {
		ms.Step(cfg.dt())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Step não retornou: duelo NPC x NPC ficou girando")
	}

	if ms.duel != nil {
		t.Fatal("pseudo-duelo entre NPCs deveria resolver dentro do próprio tick")
	}
	if n := out.countOfType(message.TypeDuelRoundResult); n != 0 {
		t.Fatalf("pseudo-duelo não tem rodadas, mas difundiu %d DUEL_ROUND_RESULT", n)
	}
	msg, ok := out.lastOfType(message.TypeDuelResult)
	if !ok {
		t.Fatal("DUEL_RESULT não foi difundido")
	}
	var p message.DuelResolvedPayload
	decodePayload(t, msg, &p)
	if p.Forfeit {
		t.Fatalf("pseudo-duelo não é desistência: %+v", p)
	}
	if !ms.eliminated[p.Loser] {
		t.Fatalf("perdedor %s deveria estar eliminado", p.Loser)
	}
}

func TestStaleDuelForcedResolution(t *testing.T) {
	cfg := testConfig()
	cfg.DuelStaleAfter = 3 * cfg.dt()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 200, Y: 200},
		message.Spawn{PlayerID: "b", X: 230, Y: 200},
		message.Spawn{PlayerID: "c", X: 800, Y: 500},
	)
	ms.Step(cfg.dt())
	if ms.duel == nil {
		t.Fatal("setup: duelo não começou")
	}

	for i := 0; i < 10 && ms.duel != nil; i++ {
		ms.Step(cfg.dt())
	}
	if ms.duel != nil {
		t.Fatal("duelo encalhado deveria ter sido resolvido à força")
	}
	msg, _ := out.lastOfType(message.TypeDuelResult)
	var p message.DuelResolvedPayload
	decodePayload(t, msg, &p)
	if !p.Forfeit {
		t.Fatalf("resolução forçada deveria vir marcada como forfeit: %+v", p)
	}
}

func TestStartMinigameRegistryErrors(t *testing.T) {
	cfg := testConfig()
	ms, _ := newTestState(t, cfg, minigame.DefaultRegistry(), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "b", X: 800, Y: 400},
	)

	err := ms.handleStartMinigame("a", message.StartMinigamePayload{Minigame: "grid_racer"})
	if !errors.Is(err, minigame.ErrUnknown) {
		t.Fatalf("minigame inexistente: quer ErrUnknown, veio %v", err)
	}

	err = ms.handleStartMinigame("a", message.StartMinigamePayload{Minigame: "brick_dropper"})
	if !errors.Is(err, minigame.ErrNotMultiplayerCapable) {
		t.Fatalf("minigame single-player: quer ErrNotMultiplayerCapable, veio %v", err)
	}
}

func TestMinigameSessionLifecycle(t *testing.T) {
	cfg := testConfig()
	ms, out := newTestState(t, cfg, minigame.DefaultRegistry(), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "b", X: 800, Y: 400},
	)

	err := ms.handleStartMinigame("a", message.StartMinigamePayload{
		Minigame:     "trail_duel",
		Participants: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("lançamento falhou: %v", err)
	}
	startMsg, ok := out.lastOfType(message.TypeMinigameStart)
	if !ok {
		t.Fatal("MINIGAME_START não foi difundido")
	}
	var start message.MinigameStartPayload
	decodePayload(t, startMsg, &start)
	if len(ms.sessions) != 1 {
		t.Fatalf("quer 1 sessão ativa, tem %d", len(ms.sessions))
	}

	err = ms.handleMinigameResult("b", message.MinigameResultPayload{
		SessionID: start.SessionID,
		Minigame:  "trail_duel",
		Outcome:   "win",
		Winner:    "b",
		Loser:     "a",
	})
	if err != nil {
		t.Fatalf("report falhou: %v", err)
	}
	if len(ms.sessions) != 0 {
		t.Fatal("sessão deveria ter sido destruída após o resultado")
	}
	resMsg, ok := out.lastOfType(message.TypeMinigameResult)
	if !ok {
		t.Fatal("MINIGAME_RESULT não foi difundido")
	}
	var res message.MinigameResolvedPayload
	decodePayload(t, resMsg, &res)
	if res.Winner != "b" {
		t.Fatalf("quer vencedor b, veio %+v", res)
	}
}

func TestMinigameSessionTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MinigameTimeout = 2 * cfg.dt()
	ms, out := newTestState(t, cfg, minigame.DefaultRegistry(), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "b", X: 800, Y: 400},
	)
	if err := ms.handleStartMinigame("a", message.StartMinigamePayload{
		Minigame:     "block_duel",
		Participants: []string{"a", "b"},
	}); err != nil {
		t.Fatalf("lançamento falhou: %v", err)
	}

	for i := 0; i < 5; i++ {
		ms.Step(cfg.dt())
	}
	if len(ms.sessions) != 0 {
		t.Fatal("sessão deveria ter estourado o prazo")
	}
	if _, ok := out.lastOfType(message.TypeMinigameResult); !ok {
		t.Fatal("timeout deveria difundir o encerramento")
	}
}

func TestSafeZoneEliminatesAfterGrace(t *testing.T) {
	cfg := testConfig()
	cfg.SafeShrinkDelay = 0
	cfg.SafeShrinkRate = 5000 // encolhe quase tudo num tick
	cfg.OutsideGrace = 3 * cfg.dt()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 96, Y: 96}, // canto, longe do centro
		message.Spawn{PlayerID: "b", X: 480, Y: 270},
		message.Spawn{PlayerID: "c", X: 470, Y: 280},
	)
	// b e c perto demais disparariam duelo; afasta antes de começar.
	ms.actors["c"].x = 700

	for i := 0; i < 30 && !ms.eliminated["a"]; i++ {
		ms.Step(cfg.dt())
	}
	if !ms.eliminated["a"] {
		t.Fatal("ator fora do círculo deveria ter sido eliminado após a graça")
	}
	if ms.eliminated["b"] {
		t.Fatal("ator no centro não deveria ter sido eliminado")
	}
	if _, ok := out.lastOfType(message.TypeEliminated); !ok {
		t.Fatal("ELIMINATED não foi difundido")
	}
}

func TestMatchEndsWithLastHuman(t *testing.T) {
	cfg := testConfig()
	ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "b", X: 800, Y: 400},
	)
	ms.Leave("b")

	over, winner, npcWinner := ms.Over()
	if !over || winner != "a" || npcWinner {
		t.Fatalf("quer vitória de a, veio over=%v winner=%q npc=%v", over, winner, npcWinner)
	}
	msg, ok := out.lastOfType(message.TypeMatchOver)
	if !ok {
		t.Fatal("MATCH_OVER não foi difundido")
	}
	var p message.MatchOverPayload
	decodePayload(t, msg, &p)
	if p.Winner != "a" {
		t.Fatalf("payload de MATCH_OVER errado: %+v", p)
	}
}

func TestMatchEndsWithNPCWin(t *testing.T) {
	cfg := testConfig()
	ms, _ := newTestState(t, cfg, rpsOnlyRegistry(t), "s1",
		message.Spawn{PlayerID: "a", X: 100, Y: 100},
		message.Spawn{PlayerID: "npc-1", X: 800, Y: 400, NPC: true},
		message.Spawn{PlayerID: "npc-2", X: 820, Y: 100, NPC: true},
	)
	ms.Leave("a")

	over, winner, npcWinner := ms.Over()
	if !over || winner != "" || !npcWinner {
		t.Fatalf("quer vitória dos NPCs, veio over=%v winner=%q npc=%v", over, winner, npcWinner)
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() []message.Snapshot {
		cfg := testConfig()
		ms, out := newTestState(t, cfg, rpsOnlyRegistry(t), "replay-seed",
			message.Spawn{PlayerID: "a", X: 100, Y: 100},
			message.Spawn{PlayerID: "npc-1", X: 700, Y: 400, NPC: true},
			message.Spawn{PlayerID: "npc-2", X: 200, Y: 450, NPC: true},
		)
		ms.ApplyInput("a", 0.5, 0.25)
		for i := 0; i < 60; i++ {
			if i == 30 {
				ms.ApplyInput("a", -1, 0)
			}
			ms.Step(cfg.dt())
		}
		return out.snaps
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("mesma seed e mesmos inputs deveriam reproduzir os mesmos snapshots")
	}
}

// decodePayload desembrulha o payload de uma network.Message num struct.
func decodePayload(t *testing.T, msg network.Message, dst any) {
	t.Helper()
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		t.Fatalf("payload de %s não decodificou: %v", msg.Type, err)
	}
}
