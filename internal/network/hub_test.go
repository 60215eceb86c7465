package network

import (
	"testing"
	"time"
)

// nopHandler ignora todos os eventos; os testes do Hub só olham as closures.
type nopHandler struct{}

func (nopHandler) OnConnect(*Client)          {}
func (nopHandler) OnDisconnect(*Client)       {}
func (nopHandler) OnMessage(*Client, Message) {}

// Uma closure agendada antes do encerramento precisa rodar: o select do Run
// pode sortear o quit com closures ainda na fila, então o ramo de saída
// drena o que sobrou. Repete para varrer a escolha aleatória do runtime.
func TestScheduledClosureSurvivesStop(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := NewHub(nopHandler{})
		go h.Run()

		ran := make(chan struct{})
		h.Do(func() { close(ran) })
		close(h.quit)

		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatalf("iteração %d: closure agendada antes do encerramento foi descartada", i)
		}
	}
}
