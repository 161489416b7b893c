package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agenda/internal/eventservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /stream inside the auth group.
func NewRouter(svc *eventservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Event list and detail.
	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/categories", h.Categories)

	// Saved events.
	r.Post("/events/{id}/saved", h.ToggleSaved)
	r.Get("/saved", h.Saved)

	// Calendar and booking.
	r.Post("/events/{id}/calendar", h.AddToCalendar)
	r.Get("/events/{id}/calendar.ics", h.CalendarICS)
	r.Get("/events/{id}/booking", h.BookingURL)

	// Date range selection.
	r.Post("/selection", h.Select)
	r.Get("/marks", h.Marks)

	r.Post("/refresh", h.Refresh)

	if sseHandler != nil {
		r.Get("/stream", sseHandler.ServeHTTP)
	}

	return r
}
