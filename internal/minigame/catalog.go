package minigame

import (
	"encoding/json"
	"fmt"
)

// genericResult é o formato de resultado que os minigames de duelo reportam.
// Espelha o contrato do template de hooks: o minigame decide quem ganhou e o
// lobby só normaliza.
type genericResult struct {
	SessionID string          `json:"session_id"`
	Winner    string          `json:"winner"`
	Loser     string          `json:"loser"`
	Outcome   string          `json:"outcome"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func resolveGenericResult(result json.RawMessage) (Outcome, error) {
	var r genericResult
	if err := json.Unmarshal(result, &r); err != nil {
		return Outcome{}, fmt.Errorf("minigame: resultado malformado: %w", err)
	}
	return Outcome{Winner: r.Winner, Loser: r.Loser, Outcome: r.Outcome, Data: r.Data}, nil
}

type arenaPayload struct {
	Minigame     string   `json:"minigame"`
	Participants []string `json:"participants"`
	Seed         string   `json:"seed"`
	ArenaW       int      `json:"arena_w"`
	ArenaH       int      `json:"arena_h"`
}

// TrailDuelCapability: corrida de rastros estilo snake, dois jogadores.
// Sem AIChoice: trail_duel não tem autoplay, um slot vazio vira forfeit.
func TrailDuelCapability() Capability {
	return Capability{
		ID:      "trail_duel",
		Enabled: true,
		BuildMatchPayload: func(host HostState, participants []string) (json.RawMessage, error) {
			return json.Marshal(arenaPayload{
				Minigame:     "trail_duel",
				Participants: participants,
				Seed:         host.MatchSeed,
				ArenaW:       40,
				ArenaH:       24,
			})
		},
		ResolveResult: resolveGenericResult,
	}
}

// BlockDuelCapability: empurra-blocos em grade, dois jogadores.
func BlockDuelCapability() Capability {
	return Capability{
		ID:      "block_duel",
		Enabled: true,
		BuildMatchPayload: func(host HostState, participants []string) (json.RawMessage, error) {
			return json.Marshal(arenaPayload{
				Minigame:     "block_duel",
				Participants: participants,
				Seed:         host.MatchSeed,
				ArenaW:       9,
				ArenaH:       9,
			})
		},
		ResolveResult: resolveGenericResult,
	}
}

// BrickDropperCapability existe no catálogo mas NÃO declara multiplayer:
// é o caso normal de um minigame single-player. Lookup nele devolve
// ErrNotMultiplayerCapable, nunca uma sessão parcial.
func BrickDropperCapability() Capability {
	return Capability{
		ID:      "brick_dropper",
		Enabled: false,
	}
}

// DefaultRegistry monta o registry com o catálogo embutido. É chamado uma
// única vez na composição do processo; o handle resultante é passado
// explicitamente a quem precisa (nada de lookup ambiente).
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, cap := range []Capability{
		RPSDuelCapability(),
		TrailDuelCapability(),
		BlockDuelCapability(),
		BrickDropperCapability(),
	} {
		if err := r.Register(cap); err != nil {
			// Catálogo embutido inválido é bug de compilação do catálogo.
			panic(err)
		}
	}
	return r
}
