package lobby

import "errors"

// Erros de entrada no lobby. São rejeições imediatas, nunca retentadas
// pelo servidor: o cliente recebe um REJECT com o motivo e a conexão fecha.
var (
	ErrLobbyFull   = errors.New("lobby: lobby full")
	ErrLobbyClosed = errors.New("lobby: lobby closed")
)

// ErrProtocol marca mensagens malformadas ou fora de esquema. Elas são
// logadas e descartadas; a conexão continua viva e o loop nunca cai.
var ErrProtocol = errors.New("lobby: protocol error")
