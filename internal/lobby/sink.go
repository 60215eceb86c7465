package lobby

// EventSink recebe os eventos de ciclo de vida da partida para consumo
// externo (painel de controle, espectadores). A implementação real publica
// em NATS; NopSink é usado quando o feed está desligado. Os callbacks são
// chamados da goroutine da partida e não podem bloquear por muito tempo.
type EventSink interface {
	MatchStarted(lobbyID, seed string, players int)
	DuelStarted(lobbyID, duelID, a, b string)
	DuelResolved(lobbyID, duelID, winner, loser string, forfeit bool)
	Eliminated(lobbyID, playerID string)
	MatchOver(lobbyID, winner string, npcWinner bool)
}

// NopSink descarta todos os eventos.
type NopSink struct{}

func (NopSink) MatchStarted(string, string, int)                {}
func (NopSink) DuelStarted(string, string, string, string)     {}
func (NopSink) DuelResolved(string, string, string, string, bool) {}
func (NopSink) Eliminated(string, string)                      {}
func (NopSink) MatchOver(string, string, bool)                 {}
