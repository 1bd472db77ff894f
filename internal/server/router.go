package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the HTTP surface of the relay: a health endpoint and
// the WebSocket upgrade route.
func NewRouter(hub *Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.Get("/ws", WebSocketHandler(hub))

	return r
}
