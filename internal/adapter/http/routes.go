package http

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// MountRoutes registers the feed's HTTP surface on the given chi router.
// The WebSocket endpoint lives alongside the REST mirrors so one listener
// serves both. The request timeout applies to the REST subtree only;
// /ws holds its connection open for the life of the observer.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Healthz)
	r.Get("/ws", h.hub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Get("/events", h.ListEvents)
		r.Get("/events/{id}", h.GetEventBulletins)
		r.Get("/status", h.Status)
	})
}
