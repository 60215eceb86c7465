package message

import (
	"retroroyale/internal/network"
)

// MessageSender define a interface para qualquer tipo que pode receber uma
// mensagem. Isso desacopla o pacote `message` de implementações concretas
// como o Participant do lobby ou o network.Client.
type MessageSender interface {
	Send() chan<- network.Message
}

// SendError envia apenas uma mensagem de erro para o cliente.
func SendError(sender MessageSender, format string, args ...interface{}) {
	sender.Send() <- CreateErrorResponse(format, args...)
}
