package lobby

import "time"

// Config reúne os parâmetros do lobby e da partida. Os defaults replicam o
// comportamento do servidor headless: auto-start com dois jogadores prontos,
// arena de teste, tick de 15 Hz.
type Config struct {
	MapName string
	Mode    string

	MaxPlayers int
	MinPlayers int

	// Política de início automático do host.
	AutoStart     bool
	ReadyRequired bool
	StartDelay    time.Duration // espera após atingir o quórum
	ResetDelay    time.Duration // volta ao lobby após o fim da partida

	// Política de entrada.
	AllowJoinInLobby     bool
	AllowJoinDuringMatch bool

	// Quantos NPCs completam a partida além dos humanos.
	NPCFill int

	// Simulação.
	TickRate    int     // ticks por segundo
	MapW, MapH  float64 // limites da arena em pixels
	PlayerSpeed float64 // velocidade base de corrida

	// Duelo.
	DuelRadius      float64 // distância de gatilho por proximidade
	DuelCooldown    float64 // segundos entre duelos
	DuelRequestTTL  float64 // validade de um desafio pendente
	DuelStaleAfter  float64 // idade máxima de um duelo sem desfecho
	MinigameTimeout float64 // idade máxima de uma sessão de minigame

	// Círculo seguro.
	SafeShrinkDelay float64 // segundos antes de começar a encolher
	SafeShrinkRate  float64 // pixels por segundo
	OutsideGrace    float64 // segundos fora do círculo antes da eliminação

	// Predicado de gatilho de duelo, avaliado pelo servidor a cada tick.
	// Trocável por modo de jogo; nil usa ProximityTrigger(DuelRadius).
	Trigger TriggerFunc
}

// DefaultConfig retorna a configuração padrão do servidor de lobby.
func DefaultConfig() Config {
	return Config{
		MapName:              "test_arena",
		Mode:                 "tournament",
		MaxPlayers:           8,
		MinPlayers:           2,
		AutoStart:            true,
		ReadyRequired:        true,
		StartDelay:           30 * time.Second,
		ResetDelay:           4 * time.Second,
		AllowJoinInLobby:     true,
		AllowJoinDuringMatch: false,
		NPCFill:              0,
		TickRate:             15,
		MapW:                 960,
		MapH:                 540,
		PlayerSpeed:          110,
		DuelRadius:           44,
		DuelCooldown:         2.5,
		DuelRequestTTL:       10,
		DuelStaleAfter:       25,
		MinigameTimeout:      60,
		SafeShrinkDelay:      8,
		SafeShrinkRate:       8,
		OutsideGrace:         5,
	}
}

func (c Config) tickInterval() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = 15
	}
	return time.Second / time.Duration(rate)
}

func (c Config) dt() float64 {
	rate := c.TickRate
	if rate <= 0 {
		rate = 15
	}
	return 1.0 / float64(rate)
}
