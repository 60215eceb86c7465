package minigame

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

// ErrUnknown indica um minigame que nunca foi registrado.
var ErrUnknown = errors.New("minigame: unknown minigame")

// ErrNotMultiplayerCapable indica um minigame registrado que não declarou
// suporte a multiplayer. É uma condição normal e esperada, não um bug:
// nem todo minigame do jogo participa de duelos online.
var ErrNotMultiplayerCapable = errors.New("minigame: not multiplayer capable")

// HostState é a visão do estado da partida que o host entrega ao hook de
// construção de payload. Só carrega o que os minigames realmente usam.
type HostState struct {
	MatchSeed string `json:"match_seed"`
	Tick      uint64 `json:"tick"`
	MapName   string `json:"map_name"`
}

// Outcome é o resultado normalizado que um hook devolve ao lobby.
type Outcome struct {
	Winner  string          `json:"winner"`
	Loser   string          `json:"loser"`
	Outcome string          `json:"outcome"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BuildPayloadFunc constrói o payload de lançamento de uma sessão.
type BuildPayloadFunc func(host HostState, participants []string) (json.RawMessage, error)

// ResolveResultFunc normaliza o payload de resultado reportado pelos clientes.
type ResolveResultFunc func(result json.RawMessage) (Outcome, error)

// AIChoiceFunc devolve a jogada automática para slots desconectados ou NPCs.
// Deve ser determinística para (seed, round, participants) fixos, para que
// qualquer réplica do host chegue ao mesmo resultado.
type AIChoiceFunc func(seed string, round int, participants []string) string

// Capability é o registro explícito de capacidades de um minigame.
// A ausência de hooks opcionais é representada por campos nil, nunca por
// verificação dinâmica de atributos.
type Capability struct {
	ID                string
	Enabled           bool
	BuildMatchPayload BuildPayloadFunc
	ResolveResult     ResolveResultFunc
	AIChoice          AIChoiceFunc // opcional; nil quando o minigame não joga sozinho
}

// Registry faz a busca de capacidades por identificador de minigame.
// É populado na composição do processo e depois só lido, então não precisa
// de lock: quem registra termina antes do lobby começar a consultar.
type Registry struct {
	entries map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Capability)}
}

// Register adiciona (ou substitui) uma capacidade. Capacidades sem ID ou sem
// os hooks obrigatórios são um erro de programação do módulo chamador.
func (r *Registry) Register(cap Capability) error {
	if cap.ID == "" {
		return fmt.Errorf("minigame: capability sem ID")
	}
	if cap.Enabled && (cap.BuildMatchPayload == nil || cap.ResolveResult == nil) {
		return fmt.Errorf("minigame: %q habilitado sem hooks obrigatórios", cap.ID)
	}
	r.entries[cap.ID] = cap
	return nil
}

// Lookup retorna a capacidade de um minigame. ErrUnknown quando o ID nunca
// foi registrado; ErrNotMultiplayerCapable quando existe mas não opera em
// multiplayer. O chamador não precisa de mais nenhum caso especial.
func (r *Registry) Lookup(id string) (Capability, error) {
	cap, ok := r.entries[id]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	if !cap.Enabled {
		return Capability{}, fmt.Errorf("%w: %s", ErrNotMultiplayerCapable, id)
	}
	return cap, nil
}

// EnabledIDs lista os minigames aptos a multiplayer em ordem estável.
// A lista alimenta a roleta de duelo; se nada estiver habilitado, o duelo
// clássico de pedra-papel-tesoura serve de fallback garantido.
func (r *Registry) EnabledIDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id, cap := range r.entries {
		if cap.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		ids = append(ids, RPSDuelID)
	}
	return ids
}

// PickWheel monta a roleta de um duelo: embaralha os habilitados com o rng
// do duelo e escolhe a entrada vencedora. Mesmo seed, mesma roleta, mesmo
// selecionado — em qualquer máquina.
func (r *Registry) PickWheel(rng *rand.Rand) (wheel []string, selected string) {
	wheel = r.EnabledIDs()
	rng.Shuffle(len(wheel), func(i, j int) {
		wheel[i], wheel[j] = wheel[j], wheel[i]
	})
	selected = wheel[rng.IntN(len(wheel))]
	return wheel, selected
}
