package lobby

import (
	"retroroyale/internal/lobby/message"
	"retroroyale/internal/network"
)

// Participant representa um jogador único conectado ao lobby.
// Criado no join, destruído na desconexão ou no fechamento do lobby.
// Os campos são mutados apenas pela goroutine do Hub; a partida enxerga
// os participantes através do seu próprio estado de atores.
type Participant struct {
	Client *network.Client

	ID       string
	Name     string
	CharName string
	Ready    bool

	// Active vira false na desconexão durante a partida: o participante sai
	// dos broadcasts mas o loop da partida segue intacto.
	Active bool

	// LastSeq é o último número de sequência de snapshot entregue com
	// sucesso a este participante (best-effort; clientes lentos pulam).
	LastSeq uint64
}

// Send implementa message.MessageSender.
func (p *Participant) Send() chan<- network.Message {
	return p.Client.Send()
}

// trySend enfileira sem bloquear e registra a sequência entregue.
func (p *Participant) trySendSnapshot(msg network.Message, seq uint64) bool {
	if !p.Active {
		return false
	}
	if p.Client.TrySend(msg) {
		p.LastSeq = seq
		return true
	}
	return false
}

func (p *Participant) lobbyView() message.LobbyPlayer {
	return message.LobbyPlayer{
		PlayerID: p.ID,
		Name:     p.Name,
		Ready:    p.Ready,
		CharName: p.CharName,
	}
}
