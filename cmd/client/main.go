// cmd/client/main.go
//
// Cliente de terminal para jogar (ou depurar) uma partida. Conecta num
// lobby remoto, descobre um pelo Consul, ou sobe o próprio lobby e joga
// nele pelo loopback em memória (modo host).
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"retroroyale/internal/client"
	"retroroyale/internal/lobby"
	"retroroyale/internal/lobby/message"
	"retroroyale/internal/minigame"
	"retroroyale/internal/services/cluster"
)

func main() {
	addr := flag.String("addr", "", "endereço do lobby (host:porta); vazio com -host sobe um local")
	consulAddrs := flag.String("consul", "", "descobre um lobby pelo Consul em vez de -addr")
	name := flag.String("name", "Player", "nome do jogador")
	char := flag.String("char", "", "skin escolhida")
	host := flag.Bool("host", false, "modo host: roda o lobby neste processo")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	cli := client.New(client.Config{MaxReconnects: 3})

	var ls *lobby.LobbyServer
	switch {
	case *host:
		ls = lobby.NewLobbyServer(lobby.DefaultConfig(), minigame.DefaultRegistry(), nil)
		go func() {
			if *addr != "" {
				if err := ls.Start(*addr); err != nil {
					log.Fatalf("Não foi possível iniciar o lobby local: %v", err)
				}
			}
		}()
		cli.ConnectLocal(ls.AttachLocal())
		log.Printf("Lobby local %s no ar; jogando pelo loopback.", ls.LobbyID())

	case *consulAddrs != "":
		found, ok := cluster.PickLobby(*consulAddrs)
		if !ok {
			log.Fatalf("Nenhum lobby disponível no Consul.")
		}
		log.Printf("Lobby descoberto: %s (%s)", found.LobbyID, found.Addr)
		dial(cli, found.Addr)

	case *addr != "":
		dial(cli, *addr)

	default:
		log.Fatalf("Use -addr, -consul ou -host.")
	}

	if err := cli.SendJoin(*name, *char); err != nil {
		log.Fatalf("Falha no JOIN: %v", err)
	}

	go printEvents(cli)

	fmt.Println("Comandos: ready | start | move x y | duel <id> | rock/paper/scissors <duelo> | quit")
	go readCommands(cli)

	<-interrupt
	fmt.Println("\nEncerrando...")
	cli.Disconnect()
	if ls != nil {
		ls.Stop()
	}
}

func dial(cli *client.LobbyClient, addr string) {
	u := url.URL{Scheme: "ws", Host: strings.TrimSpace(addr), Path: "/ws"}
	log.Printf("Conectando em %s", u.String())
	if err := cli.Connect(u.String()); err != nil {
		log.Fatalf("AVISO: Falha ao conectar: %v", err)
	}
}

// printEvents despeja eventos e snapshots no terminal, num ritmo legível.
func printEvents(cli *client.LobbyClient) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		for {
			ev, ok := cli.PollEvent()
			if !ok {
				break
			}
			printEvent(ev)
			if ev.Type == client.EventDisconnected {
				fmt.Println("Conexão perdida de vez. Ctrl+C para sair.")
				return
			}
		}
		if snap, ok := cli.LatestSnapshot(); ok {
			fmt.Printf("[tick %d] %d vivos (%d humanos), zona r=%.0f\n",
				snap.Tick, snap.Remaining, snap.RemainingHumans, snap.Safe.Radius)
		}
	}
}

func printEvent(ev client.Event) {
	switch ev.Type {
	case message.TypeWelcome:
		var p message.WelcomePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> Bem-vindo! Seu ID: %s\n", p.PlayerID)
		}
	case message.TypeLobbyState:
		var p message.LobbyStatePayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> Lobby [%s]: %d jogador(es)\n", p.State.MapName, len(p.State.Players))
			for _, pl := range p.State.Players {
				marker := " "
				if pl.Ready {
					marker = "*"
				}
				fmt.Printf("   %s %s (%s)\n", marker, pl.Name, pl.PlayerID)
			}
		}
	case message.TypeMatchStart:
		fmt.Println(">> PARTIDA INICIADA! Use 'move x y' para andar.")
	case message.TypeDuelRequest:
		var p message.DuelRequestPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> DESAFIO de %s! Responda com 'duel %s' para aceitar.\n", p.From, p.From)
		}
	case message.TypeDuelStart:
		var p message.DuelStartPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> DUELO %s: %v — roleta parou em %q\n", p.DuelID, p.Participants, p.SelectedEntry)
		}
	case message.TypeDuelRoundResult:
		var p message.DuelRoundResultPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> Rodada %d: %v — vencedor %q, placar %v\n", p.Round, p.Choices, p.Winner, p.Scores)
		}
	case message.TypeDuelResult:
		var p message.DuelResolvedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> Duelo %s: %s venceu %s (forfeit=%v)\n", p.DuelID, p.Winner, p.Loser, p.Forfeit)
		}
	case message.TypeEliminated:
		var p message.EliminatedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> %s foi eliminado.\n", p.PlayerID)
		}
	case message.TypeMatchOver:
		var p message.MatchOverPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			if p.NPCWinner {
				fmt.Println(">> FIM DE JOGO: os NPCs venceram.")
			} else {
				fmt.Printf(">> FIM DE JOGO: vencedor %s\n", p.Winner)
			}
		}
	case message.TypeError:
		var p message.ErrorClientPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			fmt.Printf(">> ERRO do servidor: %s\n", p.Error)
		}
	default:
		fmt.Printf(">> %s\n", ev.Type)
	}
}

// readCommands traduz linhas do stdin em mensagens do protocolo.
func readCommands(cli *client.LobbyClient) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "ready":
			err = cli.SendReady(true)
		case "unready":
			err = cli.SendReady(false)
		case "start":
			err = cli.SendStartMatch("")
		case "move":
			var x, y float64
			if len(fields) == 3 {
				fmt.Sscanf(fields[1], "%f", &x)
				fmt.Sscanf(fields[2], "%f", &y)
			}
			err = cli.SendInput(x, y)
		case "duel":
			if len(fields) == 2 {
				err = cli.RequestDuel(fields[1])
			}
		case "rock", "paper", "scissors":
			if len(fields) == 2 {
				err = cli.SendDuelChoice(fields[1], fields[0])
			} else {
				fmt.Println("Uso: rock <id-do-duelo>")
			}
		case "quit":
			cli.Disconnect()
			os.Exit(0)
		default:
			fmt.Printf("Comando desconhecido: %s\n", fields[0])
		}
		if err != nil {
			fmt.Printf("ERRO: %v\n", err)
		}
	}
}
