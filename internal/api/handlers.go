package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/eventfilter"
	"github.com/starford/agenda/internal/eventservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *eventservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *eventservice.Service) *Handler {
	return &Handler{svc: svc}
}

// intervalParam reads the start/end query parameters. Both absent is the
// empty selection; start alone is an open one.
func intervalParam(r *http.Request) (daterange.Interval, error) {
	var iv daterange.Interval
	q := r.URL.Query()
	for name, dst := range map[string]*daterange.Day{"start": &iv.Start, "end": &iv.End} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		d, err := daterange.ParseDay(raw)
		if err != nil {
			return daterange.Interval{}, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidInput, name, err)
		}
		*dst = d
	}
	return iv, nil
}

// categoriesParam accepts repeated and comma-separated category values.
func categoriesParam(r *http.Request) eventfilter.Categories {
	var cats []string
	for _, v := range r.URL.Query()["category"] {
		for _, c := range strings.Split(v, ",") {
			cats = append(cats, strings.TrimSpace(c))
		}
	}
	return eventfilter.NewCategories(cats...)
}

// ListEvents handles GET /api/events.
//
//	@Summary		List events filtered by category and date range
//	@Tags			events
//	@Produce		json
//	@Param			category	query		[]string	false	"Selected categories (repeatable or comma-separated)"
//	@Param			start		query		string		false	"Range start (YYYY-MM-DD)"
//	@Param			end			query		string		false	"Range end (YYYY-MM-DD)"
//	@Success		200			{object}	EventListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	iv, err := intervalParam(r)
	if err != nil {
		writeError(w, "list events", err)
		return
	}
	listing, err := h.svc.ListEvents(r.Context(), categoriesParam(r), iv)
	if err != nil {
		writeError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// GetEvent handles GET /api/events/{id}.
//
//	@Summary		Get a single event
//	@Tags			events
//	@Produce		json
//	@Param			id	path		string	true	"Event ID"
//	@Success		200	{object}	EventDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get event", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Categories handles GET /api/categories.
//
//	@Summary		List the distinct event categories
//	@Tags			events
//	@Produce		json
//	@Success		200	{object}	CategoriesResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		writeError(w, "categories", err)
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: cats})
}

// ToggleSaved handles POST /api/events/{id}/saved.
//
//	@Summary		Toggle the saved flag of an event
//	@Tags			saved
//	@Produce		json
//	@Param			id	path		string	true	"Event ID"
//	@Success		200	{object}	SavedResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/saved [post]
func (h *Handler) ToggleSaved(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	saved, err := h.svc.ToggleSaved(r.Context(), id)
	if err != nil {
		writeError(w, "toggle saved", err)
		return
	}
	writeJSON(w, http.StatusOK, SavedResponse{ID: id, Saved: saved})
}

// Saved handles GET /api/saved.
//
//	@Summary		List saved events
//	@Tags			saved
//	@Produce		json
//	@Success		200	{object}	SavedListResponse
//	@Security		BearerAuth
//	@Router			/saved [get]
func (h *Handler) Saved(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Saved(r.Context())
	if err != nil {
		writeError(w, "saved", err)
		return
	}
	writeJSON(w, http.StatusOK, SavedListResponse{Events: events})
}

// AddToCalendar handles POST /api/events/{id}/calendar.
//
//	@Summary		Add an event to the configured calendar
//	@Tags			calendar
//	@Produce		json
//	@Param			id	path		string	true	"Event ID"
//	@Success		201	{object}	CalendarResponse
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		501	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/calendar [post]
func (h *Handler) AddToCalendar(w http.ResponseWriter, r *http.Request) {
	uid, err := h.svc.AddToCalendar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "add to calendar", err)
		return
	}
	writeJSON(w, http.StatusCreated, CalendarResponse{UID: uid})
}

// CalendarICS handles GET /api/events/{id}/calendar.ics.
//
//	@Summary		Download the event as an iCalendar file
//	@Tags			calendar
//	@Produce		text/calendar
//	@Param			id	path	string	true	"Event ID"
//	@Success		200	"iCalendar document"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/calendar.ics [get]
func (h *Handler) CalendarICS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.svc.CalendarICS(r.Context(), id)
	if err != nil {
		writeError(w, "calendar ics", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "event-"+id+".ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// BookingURL handles GET /api/events/{id}/booking.
//
//	@Summary		Accommodation search link for an event
//	@Tags			booking
//	@Produce		json
//	@Param			id		path		string	true	"Event ID"
//	@Param			start	query		string	false	"Selected range start (YYYY-MM-DD)"
//	@Param			end		query		string	false	"Selected range end (YYYY-MM-DD)"
//	@Success		200		{object}	BookingResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/events/{id}/booking [get]
func (h *Handler) BookingURL(w http.ResponseWriter, r *http.Request) {
	iv, err := intervalParam(r)
	if err != nil {
		writeError(w, "booking url", err)
		return
	}
	u, err := h.svc.BookingURL(r.Context(), chi.URLParam(r, "id"), iv)
	if err != nil {
		writeError(w, "booking url", err)
		return
	}
	writeJSON(w, http.StatusOK, BookingResponse{URL: u})
}

// Select handles POST /api/selection.
//
//	@Summary		Apply a calendar day tap to the current selection
//	@Tags			selection
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectionRequest	true	"Tapped day and current selection"
//	@Success		200		{object}	SelectionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/selection [post]
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	sel, err := h.svc.Select(req.Day, req.Current())
	if err != nil {
		writeError(w, "select", err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// Marks handles GET /api/marks.
//
//	@Summary		Calendar marks for a selection
//	@Tags			selection
//	@Produce		json
//	@Param			start	query		string	false	"Selection start (YYYY-MM-DD)"
//	@Param			end		query		string	false	"Selection end (YYYY-MM-DD)"
//	@Success		200		{object}	MarksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/marks [get]
func (h *Handler) Marks(w http.ResponseWriter, r *http.Request) {
	iv, err := intervalParam(r)
	if err != nil {
		writeError(w, "marks", err)
		return
	}
	marks, err := h.svc.Marks(iv)
	if err != nil {
		writeError(w, "marks", err)
		return
	}
	writeJSON(w, http.StatusOK, MarksResponse{Marks: marks})
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Re-sync the event cache from the source
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	RefreshResponse
//	@Failure		409	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
