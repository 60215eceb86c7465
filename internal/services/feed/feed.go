// Package feed publica os eventos de ciclo de vida das partidas em NATS,
// para consumo por painéis, espectadores e ferramentas de torneio. O lobby
// não sabe que o NATS existe: ele só enxerga a interface lobby.EventSink.
package feed

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// event é o envelope comum de todos os eventos publicados.
type event struct {
	LobbyID   string `json:"lobby_id"`
	Kind      string `json:"kind"`
	Seed      string `json:"seed,omitempty"`
	Players   int    `json:"players,omitempty"`
	DuelID    string `json:"duel_id,omitempty"`
	A         string `json:"a,omitempty"`
	B         string `json:"b,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Loser     string `json:"loser,omitempty"`
	Forfeit   bool   `json:"forfeit,omitempty"`
	PlayerID  string `json:"player_id,omitempty"`
	NPCWinner bool   `json:"npc_winner,omitempty"`
}

// Publisher implementa lobby.EventSink sobre uma conexão NATS. Um Publisher
// nil é válido e descarta tudo, então quem compõe o processo não precisa de
// caminho condicional quando o feed está desligado.
type Publisher struct {
	nc *nats.Conn
}

// Connect abre a conexão com o servidor NATS. url vazia usa o default local.
func Connect(url string) (*Publisher, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("retroroyale-feed"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("feed: conexão NATS: %w", err)
	}
	log.Printf("[Feed] conectado ao NATS em %s", url)
	return &Publisher{nc: nc}, nil
}

// Close despeja o que falta e fecha a conexão. Seguro em Publisher nil.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Flush()
	p.nc.Close()
}

// publish serializa e publica sem nunca propagar erro pro lobby: o feed é
// melhor-esforço, a partida não pode depender dele.
func (p *Publisher) publish(subject string, ev event) {
	if p == nil || p.nc == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Feed] ERRO: serialização de evento: %v", err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		log.Printf("[Feed] AVISO: publicação em %s falhou: %v", subject, err)
	}
}

func subject(lobbyID, kind string) string {
	return fmt.Sprintf("retroroyale.lobby.%s.%s", lobbyID, kind)
}

// --- lobby.EventSink ---

func (p *Publisher) MatchStarted(lobbyID, seed string, players int) {
	p.publish(subject(lobbyID, "match_started"),
		event{LobbyID: lobbyID, Kind: "match_started", Seed: seed, Players: players})
}

func (p *Publisher) DuelStarted(lobbyID, duelID, a, b string) {
	p.publish(subject(lobbyID, "duel_started"),
		event{LobbyID: lobbyID, Kind: "duel_started", DuelID: duelID, A: a, B: b})
}

func (p *Publisher) DuelResolved(lobbyID, duelID, winner, loser string, forfeit bool) {
	p.publish(subject(lobbyID, "duel_resolved"),
		event{LobbyID: lobbyID, Kind: "duel_resolved", DuelID: duelID,
			Winner: winner, Loser: loser, Forfeit: forfeit})
}

func (p *Publisher) Eliminated(lobbyID, playerID string) {
	p.publish(subject(lobbyID, "eliminated"),
		event{LobbyID: lobbyID, Kind: "eliminated", PlayerID: playerID})
}

func (p *Publisher) MatchOver(lobbyID, winner string, npcWinner bool) {
	p.publish(subject(lobbyID, "match_over"),
		event{LobbyID: lobbyID, Kind: "match_over", Winner: winner, NPCWinner: npcWinner})
}
