package lobby

import (
	"fmt"
	"log"

	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
)

// DuelSession é um duelo em andamento entre dois atores. Há no máximo um
// duelo ativo por partida; o restante da arena segue se movendo enquanto
// os duelistas ficam congelados no lugar.
type DuelSession struct {
	ID       string
	A, B     string
	Seed     uint64
	Wheel    []string
	Selected string

	// Estado das rodadas melhor-de-3 (apenas quando Selected é o RPS).
	Round   int
	Choices map[string]string
	Scores  map[string]int
	Entries []string

	// Reports de desfecho (duelos resolvidos em minigame pelo cliente).
	reports map[string]message.DuelResultPayload

	sessionID string
	age       float64
	resolved  bool
}

func (d *DuelSession) has(pid string) bool { return pid == d.A || pid == d.B }

func (d *DuelSession) opponent(pid string) string {
	if pid == d.A {
		return d.B
	}
	return d.A
}

// handleRequestDuel processa um desafio explícito. Alvos NPC aceitam na
// hora; um desafio recíproco (o alvo desafiando de volta) vale como aceite.
func (ms *MatchState) handleRequestDuel(initiator, target string) error {
	if ms.over {
		return fmt.Errorf("%w: partida encerrada", ErrProtocol)
	}
	if initiator == target {
		return fmt.Errorf("%w: auto-desafio", ErrProtocol)
	}
	if !ms.alive(initiator) || !ms.alive(target) {
		return fmt.Errorf("%w: participante fora da disputa", ErrProtocol)
	}
	if ms.duel != nil {
		return fmt.Errorf("%w: já existe um duelo ativo", ErrProtocol)
	}
	if ms.duelCooldown > 0 {
		return nil // desafio durante cooldown é simplesmente ignorado
	}
	if ms.actors[target].npc || !ms.actors[target].connected {
		ms.startDuel(initiator, target)
		return nil
	}
	key := pairKey(initiator, target)
	if req, ok := ms.requests[key]; ok && req.initiator == target {
		// O alvo original desafiou de volta: aceite.
		delete(ms.requests, key)
		ms.startDuel(req.initiator, req.target)
		return nil
	}
	ms.requests[key] = &duelRequest{initiator: initiator, target: target}
	ms.out.SendTo(target, message.CreateDuelRequest(initiator, target))
	return nil
}

// startDuel congela o par, gira a roleta e anuncia o duelo. Tudo que é
// aleatório aqui sai de um seed derivado de (seed da partida, tick, par),
// então o mesmo encontro no mesmo tick produz o mesmo duelo em qualquer
// execução.
func (ms *MatchState) startDuel(a, b string) {
	seed := minigame.SeedFrom(ms.seed, fmt.Sprintf("t%d", ms.tick), pairKey(a, b))
	rng := minigame.NewRand(seed)
	wheel, selected := ms.registry.PickWheel(rng)

	d := &DuelSession{
		ID:       fmt.Sprintf("duel-%d-%s-%s", ms.tick, a, b),
		A:        a,
		B:        b,
		Seed:     seed,
		Wheel:    wheel,
		Selected: selected,
		Round:    1,
		Choices:  make(map[string]string),
		Scores:   map[string]int{a: 0, b: 0},
		reports:  make(map[string]message.DuelResultPayload),
	}
	ms.duel = d

	// Desafios pendentes envolvendo os duelistas perdem o sentido.
	for key, req := range ms.requests {
		if d.has(req.initiator) || d.has(req.target) {
			delete(ms.requests, key)
		}
	}

	log.Printf("[Match %s] duelo %s: %s x %s (roleta: %s)", ms.lobbyID, d.ID, a, b, selected)
	ms.out.Broadcast(message.CreateDuelStart(message.DuelStartPayload{
		DuelID:        d.ID,
		Participants:  []string{a, b},
		Seed:          seed,
		WheelEntries:  wheel,
		WheelSpinSeed: seed,
		SelectedEntry: selected,
	}))
	ms.sink.DuelStarted(ms.lobbyID, d.ID, a, b)

	if selected == minigame.RPSDuelID {
		ms.autoplayRPS()
		return
	}
	// Qualquer outro minigame roda como sessão própria amarrada ao duelo.
	if err := ms.launchMinigame(selected, []string{a, b}, d.ID); err != nil {
		// Registry mal configurado: o fallback clássico resolve no servidor.
		log.Printf("[Match %s] ERRO: lançamento de %q falhou (%v); caindo para %s",
			ms.lobbyID, selected, err, minigame.RPSDuelID)
		d.Selected = minigame.RPSDuelID
		ms.autoplayRPS()
	}
}

// autoplayRPS preenche as jogadas dos slots que não vão jogar sozinhos
// (NPCs e desconectados) com o hook de autoplay, semeado pelo duelo e pelo
// próprio slot, para dois autômatos no mesmo duelo nunca jogarem espelhado.
// Um duelo SEM nenhum humano presente não roda rodadas: resolve na hora
// com um sorteio semeado, como os pseudo-duelos de NPC do modo torneio.
func (ms *MatchState) autoplayRPS() {
	d := ms.duel
	if d == nil || d.resolved {
		return
	}
	if ms.automated(d.A) && ms.automated(d.B) {
		rng := minigame.NewRand(minigame.SeedFrom(d.ID, "auto"))
		winner := []string{d.A, d.B}[rng.IntN(2)]
		ms.resolveDuel(winner, d.opponent(winner), false)
		return
	}
	for _, pid := range []string{d.A, d.B} {
		if _, done := d.Choices[pid]; done {
			continue
		}
		if ms.automated(pid) {
			d.Choices[pid] = minigame.RPSAIChoice(
				fmt.Sprintf("%d-%s", d.Seed, pid), d.Round, []string{d.A, d.B})
		}
	}
	ms.maybeResolveRound()
}

// automated diz se um slot joga sozinho: NPCs e humanos desconectados.
func (ms *MatchState) automated(pid string) bool {
	a, ok := ms.actors[pid]
	return ok && (a.npc || !a.connected)
}

// handleDuelChoice registra a jogada de uma rodada do duelo clássico.
func (ms *MatchState) handleDuelChoice(pid, duelID, entry string) error {
	d := ms.duel
	if d == nil || d.resolved || d.ID != duelID {
		return fmt.Errorf("%w: duelo %s não está ativo", ErrProtocol, duelID)
	}
	if !d.has(pid) {
		return fmt.Errorf("%w: %s não participa do duelo", ErrProtocol, pid)
	}
	if d.Selected != minigame.RPSDuelID {
		return fmt.Errorf("%w: duelo %s não é resolvido por rodadas", ErrProtocol, duelID)
	}
	if !minigame.ValidChoice(entry) {
		return fmt.Errorf("%w: jogada %q inválida", ErrProtocol, entry)
	}
	if _, done := d.Choices[pid]; done {
		return nil // jogada repetida na mesma rodada é ignorada
	}
	d.Choices[pid] = entry
	ms.autoplayRPS()
	return nil
}

// maybeResolveRound fecha a rodada quando as duas jogadas estão na mesa.
// Empate não pontua e a rodada repete; dois pontos fecham o duelo.
func (ms *MatchState) maybeResolveRound() {
	d := ms.duel
	if d == nil || d.resolved {
		return
	}
	ca, okA := d.Choices[d.A]
	cb, okB := d.Choices[d.B]
	if !okA || !okB {
		return
	}
	winner := minigame.ResolveRPSRound(d.A, d.B, ca, cb)
	if winner != "" {
		d.Scores[winner]++
	}
	d.Entries = append(d.Entries, fmt.Sprintf("r%d:%s/%s", d.Round, ca, cb))

	ms.out.Broadcast(message.CreateDuelRoundResult(message.DuelRoundResultPayload{
		DuelID:  d.ID,
		Round:   d.Round,
		Choices: map[string]string{d.A: ca, d.B: cb},
		Winner:  winner,
		Scores:  map[string]int{d.A: d.Scores[d.A], d.B: d.Scores[d.B]},
	}))

	d.Round++
	d.Choices = make(map[string]string)

	for _, pid := range []string{d.A, d.B} {
		if d.Scores[pid] >= 2 {
			ms.resolveDuel(pid, d.opponent(pid), false)
			return
		}
	}
	// Próxima rodada: slots automáticos jogam de novo.
	ms.autoplayRPS()
}

// handleDuelResult cruza os reports de desfecho de um duelo resolvido em
// minigame no cliente. Dois reports concordantes (ou um report decisivo
// contra NPC/desconectado) fecham o duelo; divergência derruba pro empate
// semeado, igual ao caminho de duelo encalhado.
func (ms *MatchState) handleDuelResult(pid string, p message.DuelResultPayload) error {
	d := ms.duel
	if d == nil || d.resolved || d.ID != p.DuelID {
		return fmt.Errorf("%w: duelo %s não está ativo", ErrProtocol, p.DuelID)
	}
	if !d.has(pid) {
		return fmt.Errorf("%w: %s não participa do duelo", ErrProtocol, pid)
	}
	if d.Selected == minigame.RPSDuelID {
		return fmt.Errorf("%w: duelo %s é resolvido no servidor", ErrProtocol, p.DuelID)
	}
	winner, loser, ok := normalizeReport(pid, d, p)
	if !ok {
		return fmt.Errorf("%w: report de duelo malformado", ErrProtocol)
	}
	d.reports[pid] = message.DuelResultPayload{DuelID: d.ID, Winner: winner, Loser: loser}

	if ms.automated(d.opponent(pid)) {
		ms.resolveDuel(winner, loser, false)
		return nil
	}
	other, reported := d.reports[d.opponent(pid)]
	if !reported {
		return nil // aguarda o segundo report até o prazo de encalhe
	}
	if other.Winner == winner {
		ms.resolveDuel(winner, loser, false)
		return nil
	}
	log.Printf("[Match %s] AVISO: reports divergentes no duelo %s; resolução semeada",
		ms.lobbyID, d.ID)
	ms.resolveStale()
	return nil
}

// normalizeReport converte o report de um participante em (vencedor,
// perdedor) absolutos. Aceita tanto o par winner/loser explícito quanto o
// outcome relativo ("win"/"lose") do ponto de vista de quem reporta.
func normalizeReport(pid string, d *DuelSession, p message.DuelResultPayload) (winner, loser string, ok bool) {
	if p.Winner != "" && d.has(p.Winner) {
		return p.Winner, d.opponent(p.Winner), true
	}
	switch p.Outcome {
	case "win":
		return pid, d.opponent(pid), true
	case "lose", "forfeit":
		return d.opponent(pid), pid, true
	}
	return "", "", false
}

// forfeitDuelOf fecha um duelo por desistência quando um dos duelistas cai.
func (ms *MatchState) forfeitDuelOf(pid string) {
	d := ms.duel
	if d == nil || d.resolved || !d.has(pid) {
		return
	}
	ms.resolveDuel(d.opponent(pid), pid, true)
}

// stepDuel envelhece o duelo ativo e força o desfecho de duelos encalhados,
// para a partida nunca travar num par que parou de responder.
func (ms *MatchState) stepDuel(dt float64) {
	d := ms.duel
	if d == nil || d.resolved {
		return
	}
	d.age += dt
	if d.age >= ms.cfg.DuelStaleAfter {
		log.Printf("[Match %s] AVISO: duelo %s encalhado após %.0fs; resolução semeada",
			ms.lobbyID, d.ID, ms.cfg.DuelStaleAfter)
		ms.resolveStale()
	}
}

// resolveStale decide um duelo travado com um sorteio semeado pelo próprio
// duelo. Um participante ainda conectado vence um desconectado; entre dois
// iguais, o seed decide — o mesmo em qualquer réplica.
func (ms *MatchState) resolveStale() {
	d := ms.duel
	if d == nil || d.resolved {
		return
	}
	aConn := ms.actors[d.A].connected && !ms.actors[d.A].npc
	bConn := ms.actors[d.B].connected && !ms.actors[d.B].npc
	var winner string
	switch {
	case aConn && !bConn:
		winner = d.A
	case bConn && !aConn:
		winner = d.B
	default:
		rng := minigame.NewRand(minigame.SeedFrom(d.ID, "stale"))
		winner = []string{d.A, d.B}[rng.IntN(2)]
	}
	ms.resolveDuel(winner, d.opponent(winner), true)
}

// resolveDuel fecha o duelo: anuncia, elimina o perdedor e abre o cooldown
// antes do próximo gatilho. O vencedor volta pro círculo com o timer de
// fora-da-zona zerado.
func (ms *MatchState) resolveDuel(winner, loser string, forfeit bool) {
	d := ms.duel
	if d == nil || d.resolved {
		return
	}
	d.resolved = true
	ms.duel = nil
	ms.duelCooldown = ms.cfg.DuelCooldown

	if d.sessionID != "" {
		delete(ms.sessions, d.sessionID)
	}
	if a, ok := ms.actors[winner]; ok {
		a.outsideTimer = 0
	}
	if a, ok := ms.actors[loser]; ok {
		a.outsideTimer = 0
	}

	log.Printf("[Match %s] duelo %s resolvido: vencedor %s (forfeit=%v)",
		ms.lobbyID, d.ID, winner, forfeit)
	ms.out.Broadcast(message.CreateDuelResolved(message.DuelResolvedPayload{
		DuelID:  d.ID,
		Winner:  winner,
		Loser:   loser,
		Entries: d.Entries,
		Forfeit: forfeit,
	}))
	ms.sink.DuelResolved(ms.lobbyID, d.ID, winner, loser, forfeit)
	ms.eliminate(loser)
}
