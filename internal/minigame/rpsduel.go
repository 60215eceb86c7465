package minigame

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RPSDuelID é o duelo clássico de pedra-papel-tesoura, melhor de 3.
// É também o fallback da roleta quando nenhum outro minigame está habilitado.
const RPSDuelID = "rps_duel"

// Escolhas válidas de uma rodada.
const (
	ChoiceRock     = "rock"
	ChoicePaper    = "paper"
	ChoiceScissors = "scissors"
)

// beats mapeia cada escolha para a escolha que ela vence.
var beats = map[string]string{
	ChoiceRock:     ChoiceScissors,
	ChoiceScissors: ChoicePaper,
	ChoicePaper:    ChoiceRock,
}

var rpsChoices = []string{ChoiceRock, ChoicePaper, ChoiceScissors}

// ValidChoice diz se a entrada é uma jogada reconhecida.
func ValidChoice(entry string) bool {
	_, ok := beats[strings.ToLower(strings.TrimSpace(entry))]
	return ok
}

// ResolveRPSRound decide uma rodada entre os participantes a e b.
// Retorna o vencedor ou "" em empate (empate não pontua, a rodada repete).
func ResolveRPSRound(a, b, choiceA, choiceB string) string {
	ca := strings.ToLower(strings.TrimSpace(choiceA))
	cb := strings.ToLower(strings.TrimSpace(choiceB))
	if ca == cb {
		return ""
	}
	if beats[ca] == cb {
		return a
	}
	return b
}

// RPSAIChoice é o hook de autoplay: semeado identicamente à resolução humana,
// de forma que o resultado de um slot automatizado seja reproduzível.
func RPSAIChoice(seed string, round int, participants []string) string {
	parts := append([]string{seed, fmt.Sprintf("r%d", round)}, participants...)
	rng := NewRand(SeedFrom(parts...))
	return rpsChoices[rng.IntN(len(rpsChoices))]
}

type rpsPayload struct {
	Minigame     string   `json:"minigame"`
	Participants []string `json:"participants"`
	BestOf       int      `json:"best_of"`
	Seed         string   `json:"seed"`
}

// RPSDuelCapability monta o registro de capacidades do duelo clássico.
func RPSDuelCapability() Capability {
	return Capability{
		ID:      RPSDuelID,
		Enabled: true,
		BuildMatchPayload: func(host HostState, participants []string) (json.RawMessage, error) {
			return json.Marshal(rpsPayload{
				Minigame:     RPSDuelID,
				Participants: participants,
				BestOf:       3,
				Seed:         host.MatchSeed,
			})
		},
		ResolveResult: resolveGenericResult,
		AIChoice:      RPSAIChoice,
	}
}
