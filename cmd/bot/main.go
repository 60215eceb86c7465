// cmd/bot/main.go
//
// Bot de carga e de preenchimento: conecta como um jogador comum, fica
// pronto, anda à toa pela arena e joga os duelos com o autoplay semeado.
// Útil para testar um lobby com gente de verdade faltando.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"retroroyale/internal/client"
	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
)

type botState struct {
	cli      *client.LobbyClient
	name     string
	rng      *rand.Rand
	inMatch  bool
	heading  float64
	duelID   string
	round    int
	duelists []string
}

func main() {
	addr := flag.String("addr", "localhost:8080", "endereço do lobby")
	name := flag.String("name", "", "nome do bot (vazio gera um)")
	flag.Parse()

	botName := *name
	if botName == "" {
		botName = fmt.Sprintf("Bot-%d", os.Getpid())
	}

	cli := client.New(client.Config{MaxReconnects: 3})
	u := url.URL{Scheme: "ws", Host: strings.TrimSpace(*addr), Path: "/ws"}
	if err := cli.Connect(u.String()); err != nil {
		log.Fatalf("Falha ao conectar: %v", err)
	}
	if err := cli.SendJoin(botName, "robot"); err != nil {
		log.Fatalf("Falha no JOIN: %v", err)
	}
	cli.SendReady(true)

	b := &botState{
		cli:  cli,
		name: botName,
		rng:  minigame.NewRand(minigame.SeedFrom("bot", botName)),
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	ticker := time.NewTicker(66 * time.Millisecond) // ~15 Hz, o tick do servidor
	defer ticker.Stop()

	for {
		select {
		case <-interrupt:
			cli.Disconnect()
			return
		case <-ticker.C:
			if !b.step() {
				return
			}
		}
	}
}

// step processa eventos pendentes e manda o input do frame.
// Retorna false quando a conexão morreu de vez.
func (b *botState) step() bool {
	for {
		ev, ok := b.cli.PollEvent()
		if !ok {
			break
		}
		if !b.handleEvent(ev) {
			return false
		}
	}
	b.cli.LatestSnapshot() // drena; o bot não desenha nada

	if b.inMatch && b.duelID == "" {
		// Perambulação: mantém o rumo por um tempo e vira de vez em quando.
		if b.rng.Float64() < 0.05 {
			b.heading += b.rng.Float64()*1.6 - 0.8
		}
		b.cli.SendInput(math.Cos(b.heading), math.Sin(b.heading))
	}
	return true
}

func (b *botState) handleEvent(ev client.Event) bool {
	switch ev.Type {
	case message.TypeMatchStart:
		b.inMatch = true
		b.heading = b.rng.Float64() * 2 * math.Pi
		log.Printf("[%s] partida iniciada", b.name)

	case message.TypeDuelRequest:
		var p message.DuelRequestPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.To == b.cli.PlayerID() {
			b.cli.RequestDuel(p.From) // aceita todo desafio
		}

	case message.TypeDuelStart:
		var p message.DuelStartPayload
		if json.Unmarshal(ev.Payload, &p) != nil {
			return true
		}
		for _, pid := range p.Participants {
			if pid == b.cli.PlayerID() {
				b.duelID = p.DuelID
				b.round = 1
				b.duelists = p.Participants
				b.playRound()
			}
		}

	case message.TypeDuelRoundResult:
		var p message.DuelRoundResultPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.DuelID == b.duelID {
			b.round = p.Round + 1
			b.playRound()
		}

	case message.TypeDuelResult:
		var p message.DuelResolvedPayload
		if json.Unmarshal(ev.Payload, &p) == nil && p.DuelID == b.duelID {
			b.duelID = ""
			log.Printf("[%s] duelo encerrado: vencedor %s", b.name, p.Winner)
		}

	case message.TypeMatchOver:
		b.inMatch = false
		b.duelID = ""
		b.cli.SendReady(true) // pronto pra próxima

	case client.EventDisconnected:
		log.Printf("[%s] conexão perdida de vez; encerrando", b.name)
		return false
	}
	return true
}

// playRound joga a rodada atual com o mesmo autoplay que o servidor usa
// para NPCs, semeado pelo duelo.
func (b *botState) playRound() {
	if b.duelID == "" {
		return
	}
	entry := minigame.RPSAIChoice(fmt.Sprintf("%s-%s", b.duelID, b.name), b.round, b.duelists)
	b.cli.SendDuelChoice(b.duelID, entry)
}
