package cluster

import (
	"fmt"
	"log"
	"os"

	consul "github.com/hashicorp/consul/api"
)

// LobbyInfo é o que um processo de lobby anuncia ao cluster: jogadores de
// fora descobrem lobbies abertos pelo Consul em vez de digitar IP na mão.
type LobbyInfo struct {
	LobbyID    string
	MapName    string
	Mode       string
	MaxPlayers int
	Port       int
	HealthPort int
}

// RegisterLobby registra o lobby no Consul com as metas de descoberta.
// O agente desregistra sozinho se o processo sumir por mais de um minuto.
func RegisterLobby(client *consul.Client, info LobbyInfo) (string, error) {
	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		// Fallback caso a variável de ambiente não esteja setada
		hostname, _ = os.Hostname()
	}
	serviceID := fmt.Sprintf("retroroyale-lobby-%s", info.LobbyID)

	registration := &consul.AgentServiceRegistration{
		ID:   serviceID,
		Name: "retroroyale-lobby",
		Port: info.Port,
		Meta: map[string]string{
			"lobby_id":    info.LobbyID,
			"map":         info.MapName,
			"mode":        info.Mode,
			"max_players": fmt.Sprintf("%d", info.MaxPlayers),
		},
		Check: &consul.AgentServiceCheck{
			// O agente resolve o hostname do contêiner por DNS dentro da
			// rede; a URL do check precisa de um host, então usamos ele.
			HTTP:                           fmt.Sprintf("http://%s:%d/health", hostname, info.HealthPort),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := client.Agent().ServiceRegister(registration); err != nil {
		return "", fmt.Errorf("falha ao registrar lobby no Consul: %w", err)
	}

	log.Printf("[Cluster] Lobby '%s' registrado no Consul com ID: %s", info.LobbyID, serviceID)
	return serviceID, nil
}

// DeregisterLobby remove o registro no encerramento gracioso.
func DeregisterLobby(client *consul.Client, serviceID string) {
	if err := client.Agent().ServiceDeregister(serviceID); err != nil {
		log.Printf("[Cluster] AVISO: falha ao desregistrar %s: %v", serviceID, err)
	}
}
