package network

import (
	"encoding/json"
)

// Message é o envelope padrão para toda a comunicação.
// Ele contém um tipo para roteamento e um payload com os dados.
// As structs tags como json:"type" servem para manter a convenção entre cliente e servidor.
type Message struct {
	Type    string          `json:"type"`    // Ex: "MATCH_INPUT", "MATCH_STATE"
	Payload json.RawMessage `json:"payload"` // Dados específicos, mantidos em JSON bruto para decodificação posterior.
}

// MaxMessageSize limita o tamanho de uma mensagem aceita pela conexão.
// Se o cliente anuncia algo maior que isso, é comportamento suspeito
// e a conexão é encerrada.
const MaxMessageSize = 64 * 1024

// NewMessage monta um envelope serializando o payload em JSON.
// Um erro de marshal aqui indica bug nosso (as structs são nossas),
// então o payload vira nulo em vez de derrubar o chamador.
func NewMessage(msgType string, payload any) Message {
	if payload == nil {
		return Message{Type: msgType}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{Type: msgType}
	}
	return Message{Type: msgType, Payload: raw}
}
