package cluster

import (
	"fmt"
	"log"
	"net/http"
)

// NewBasicHealthHandler retorna um http.HandlerFunc genérico de "liveness":
// apenas confirma que o processo está rodando e respondendo HTTP.
func NewBasicHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Service is alive.")
	}
}

// ServeHealth sobe o endpoint /health que o check do Consul consulta.
// Roda em goroutine própria; erros de bind derrubam só o health, nunca o lobby.
func ServeHealth(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", NewBasicHealthHandler())
	addr := fmt.Sprintf(":%d", port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[Cluster] AVISO: health endpoint caiu: %v", err)
		}
	}()
}
