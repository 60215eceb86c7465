// cmd/server/main.go
//
// Servidor de lobby dedicado (headless): sobe um lobby, opcionalmente se
// registra no Consul para descoberta e publica o feed de eventos em NATS.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retroroyale/internal/lobby"
	"retroroyale/internal/minigame"
	"retroroyale/internal/services/cluster"
	"retroroyale/internal/services/feed"
)

const (
	defaultListenAddr = ":8080"
	defaultHealthPort = 8081
)

type serverConfig struct {
	ListenAddr  string
	HealthPort  int
	ConsulAddrs string
	NATSAddr    string

	MapName    string
	Mode       string
	MaxPlayers int
	MinPlayers int
	NPCFill    int
	AutoStart  bool
	StartDelay time.Duration
}

// loadConfig combina flags com variáveis de ambiente (flag vence, env cobre
// o deploy em contêiner onde ninguém passa argumento).
func loadConfig() serverConfig {
	cfg := serverConfig{}
	flag.StringVar(&cfg.ListenAddr, "listen", envOr("LOBBY_LISTEN_ADDR", defaultListenAddr), "endereço do WebSocket")
	flag.IntVar(&cfg.HealthPort, "health-port", defaultHealthPort, "porta do health check")
	flag.StringVar(&cfg.ConsulAddrs, "consul", os.Getenv("CONSUL_HTTP_ADDR"), "endereços Consul (vazio desliga o registro)")
	flag.StringVar(&cfg.NATSAddr, "nats", os.Getenv("NATS_URL"), "endereço NATS do feed de eventos (vazio desliga)")
	flag.StringVar(&cfg.MapName, "map", envOr("LOBBY_MAP", "test_arena"), "mapa da partida")
	flag.StringVar(&cfg.Mode, "mode", "tournament", "modo de jogo")
	flag.IntVar(&cfg.MaxPlayers, "max-players", 8, "capacidade do lobby")
	flag.IntVar(&cfg.MinPlayers, "min-players", 2, "quórum mínimo de início")
	flag.IntVar(&cfg.NPCFill, "npc-fill", 0, "NPCs que completam a partida")
	flag.BoolVar(&cfg.AutoStart, "auto-start", true, "inicia sozinho ao atingir o quórum")
	flag.DurationVar(&cfg.StartDelay, "start-delay", 30*time.Second, "espera após o quórum")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := loadConfig()

	lobbyCfg := lobby.DefaultConfig()
	lobbyCfg.MapName = cfg.MapName
	lobbyCfg.Mode = cfg.Mode
	lobbyCfg.MaxPlayers = cfg.MaxPlayers
	lobbyCfg.MinPlayers = cfg.MinPlayers
	lobbyCfg.NPCFill = cfg.NPCFill
	lobbyCfg.AutoStart = cfg.AutoStart
	lobbyCfg.StartDelay = cfg.StartDelay

	// Feed de eventos (opcional). Falha aqui não impede o lobby de subir:
	// partida caseira funciona sem NATS nenhum.
	var sink lobby.EventSink
	if cfg.NATSAddr != "" {
		pub, err := feed.Connect(cfg.NATSAddr)
		if err != nil {
			log.Printf("AVISO: feed de eventos desligado: %v", err)
		} else {
			defer pub.Close()
			sink = pub
		}
	}

	ls := lobby.NewLobbyServer(lobbyCfg, minigame.DefaultRegistry(), sink)

	// Registro no cluster (opcional).
	if cfg.ConsulAddrs != "" {
		cluster.ServeHealth(cfg.HealthPort)
		consulClient, err := cluster.NewConsulClient(cfg.ConsulAddrs)
		if err != nil {
			log.Printf("AVISO: registro no Consul desligado: %v", err)
		} else {
			serviceID, err := cluster.RegisterLobby(consulClient, cluster.LobbyInfo{
				LobbyID:    ls.LobbyID(),
				MapName:    cfg.MapName,
				Mode:       cfg.Mode,
				MaxPlayers: cfg.MaxPlayers,
				Port:       portOf(cfg.ListenAddr),
				HealthPort: cfg.HealthPort,
			})
			if err != nil {
				log.Printf("AVISO: %v", err)
			} else {
				defer cluster.DeregisterLobby(consulClient, serviceID)
			}
		}
	}

	// Encerramento gracioso por sinal.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		log.Printf("Sinal recebido; encerrando o lobby...")
		ls.Stop()
	}()

	if err := ls.Start(cfg.ListenAddr); err != nil {
		log.Fatalf("Não foi possível iniciar o servidor: %v", err)
	}
}

// portOf extrai a porta numérica de um endereço tipo ":8080" ou "host:8080".
func portOf(addr string) int {
	port := 0
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			for _, c := range addr[i+1:] {
				if c < '0' || c > '9' {
					return 0
				}
				port = port*10 + int(c-'0')
			}
			return port
		}
	}
	return 0
}
