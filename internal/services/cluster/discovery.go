package cluster

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	consul "github.com/hashicorp/consul/api"
)

// Lobby é um lobby descoberto no cluster, pronto para o cliente discar.
type Lobby struct {
	Addr    string // host:porta do WebSocket
	LobbyID string
	MapName string
	Mode    string
}

// DiscoverLobbies lista os lobbies saudáveis registrados no Consul.
func DiscoverLobbies(consulAddrs string) []Lobby {
	client, err := NewConsulClient(consulAddrs)
	if err != nil {
		log.Printf("ERRO: Erro ao criar cliente Consul para descoberta: %v", err)
		return nil
	}
	return discoverWithClient(client)
}

func discoverWithClient(client *consul.Client) []Lobby {
	services, _, err := client.Health().Service("retroroyale-lobby", "", true, nil)
	if err != nil {
		log.Printf("ERRO: Falha ao buscar lobbies no Consul: %v", err)
		return nil
	}
	var out []Lobby
	for _, service := range services {
		addr := service.Service.Address
		if addr == "" {
			addr = service.Node.Address
		}
		out = append(out, Lobby{
			Addr:    fmt.Sprintf("%s:%d", addr, service.Service.Port),
			LobbyID: service.Service.Meta["lobby_id"],
			MapName: service.Service.Meta["map"],
			Mode:    service.Service.Meta["mode"],
		})
	}
	return out
}

// PickLobby escolhe um lobby saudável ao acaso (balanceamento ingênuo, mas
// suficiente para partidas caseiras).
func PickLobby(consulAddrs string) (Lobby, bool) {
	lobbies := DiscoverLobbies(consulAddrs)
	if len(lobbies) == 0 {
		log.Printf("AVISO: Nenhum lobby saudável encontrado no Consul.")
		return Lobby{}, false
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return lobbies[r.Intn(len(lobbies))], true
}
