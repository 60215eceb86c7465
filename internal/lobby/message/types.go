package message

// Tipos de mensagem no sentido cliente -> servidor.
const (
	TypeJoin           = "JOIN"
	TypeSetReady       = "SET_READY"
	TypeSetChar        = "SET_CHAR"
	TypeMatchInput     = "MATCH_INPUT"
	TypeStartMatch     = "START_MATCH"
	TypeRequestDuel    = "REQUEST_DUEL"
	TypeDuelChoice     = "DUEL_CHOICE"
	TypeDuelResult     = "DUEL_RESULT"
	TypeStartMinigame  = "START_MINIGAME"
	TypeMinigameResult = "MINIGAME_RESULT"
)

// Tipos de mensagem no sentido servidor -> cliente.
const (
	TypeWelcome         = "WELCOME"
	TypeReject          = "REJECT"
	TypeLobbyState      = "LOBBY_STATE"
	TypeMatchStart      = "MATCH_START"
	TypeMatchState      = "MATCH_STATE"
	TypeDuelRequest     = "DUEL_REQUEST"
	TypeDuelStart       = "DUEL_START"
	TypeDuelRoundResult = "DUEL_ROUND_RESULT"
	TypeMinigameStart   = "MINIGAME_START"
	TypeEliminated      = "ELIMINATED"
	TypePlayerLeft      = "PLAYER_LEFT"
	TypeMatchOver       = "MATCH_OVER"
	TypeError           = "RESPONSE_ERROR"
)

// Motivos de rejeição de conexão (payload de REJECT).
const (
	RejectLobbyFull   = "lobby_full"
	RejectLobbyClosed = "lobby_closed"
	RejectMatchActive = "match_active"
	RejectLobbyLocked = "lobby_locked"
)

// LobbyPlayer é a projeção pública de um participante do lobby.
type LobbyPlayer struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Ready    bool   `json:"ready"`
	CharName string `json:"char_name"`
}

// LobbyState é o estado do lobby difundido a cada mudança de roster.
type LobbyState struct {
	MapName string        `json:"map_name"`
	Mode    string        `json:"mode"`
	HostID  string        `json:"host_id"`
	Players []LobbyPlayer `json:"players"` // Ordem estável de entrada.
}

// Spawn posiciona um participante no início da partida.
type Spawn struct {
	PlayerID string  `json:"player_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	NPC      bool    `json:"npc,omitempty"`
}

// MatchPlan é o pacote de início de partida: tudo que um cliente precisa
// para montar a arena antes do primeiro snapshot chegar.
type MatchPlan struct {
	MapName string        `json:"map"`
	Mode    string        `json:"mode"`
	Seed    string        `json:"seed"`
	Players []LobbyPlayer `json:"players"`
	Spawns  []Spawn       `json:"spawns"`
}

// EntityState é a posição/velocidade autoritativa de um ator no snapshot.
type EntityState struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VX   float64 `json:"vx"`
	VY   float64 `json:"vy"`
	Char string  `json:"char,omitempty"`
	NPC  bool    `json:"npc,omitempty"`
	Name string  `json:"name,omitempty"`
}

// SafeZone é o círculo de jogo que encolhe ao longo da partida.
type SafeZone struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Snapshot é a projeção imutável do MatchState difundida a cada tick.
// Seq é estritamente crescente por lobby e nunca reutilizado; clientes
// usam isso para descartar snapshots atrasados.
type Snapshot struct {
	Seq             uint64        `json:"seq"`
	Tick            uint64        `json:"tick"`
	Entities        []EntityState `json:"entities"`
	Remaining       int           `json:"remaining"`
	RemainingHumans int           `json:"remaining_humans"`
	Safe            SafeZone      `json:"safe"`
	Winner          string        `json:"winner,omitempty"`
	NPCWinner       bool          `json:"npc_winner,omitempty"`
}
