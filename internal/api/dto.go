package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/eventservice"
	"github.com/starford/agenda/internal/index"
	"github.com/starford/agenda/internal/models"
)

// EventListResponse is the list screen payload (aliased from the domain layer).
type EventListResponse = eventservice.Listing

// EventDetail is the detail screen payload (aliased from the domain layer).
type EventDetail = eventservice.EventDetail

// SelectionResponse is the result of a calendar tap (aliased from the domain layer).
type SelectionResponse = eventservice.Selection

// SelectionRequest is one calendar tap applied to the current selection.
type SelectionRequest struct {
	Day   daterange.Day `json:"day" example:"2024-07-12" validate:"required"`
	Start daterange.Day `json:"start" example:"2024-07-10"`
	End   daterange.Day `json:"end" example:""`
}

// Validate implements ozzo-validation's Validatable.
func (r SelectionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Day, validation.By(requiredDay)),
		validation.Field(&r.End, validation.When(!r.End.IsZero(), validation.By(func(any) error {
			if r.Start.IsZero() {
				return errors.New("requires start")
			}
			return nil
		}))),
	)
}

// Current returns the selection the tap applies to.
func (r SelectionRequest) Current() daterange.Interval {
	return daterange.Interval{Start: r.Start, End: r.End}
}

func requiredDay(v any) error {
	if d, ok := v.(daterange.Day); ok && d.IsZero() {
		return errors.New("cannot be blank")
	}
	return nil
}

// SavedResponse reports the saved flag after a toggle.
type SavedResponse struct {
	ID    string `json:"id" example:"42" validate:"required"`
	Saved bool   `json:"saved" example:"true"`
}

// SavedListResponse wraps the saved events.
type SavedListResponse struct {
	Events []models.Event `json:"events" validate:"required"`
}

// CategoriesResponse wraps the category list.
type CategoriesResponse struct {
	Categories []string `json:"categories" example:"music,art" validate:"required"`
}

// CalendarResponse is returned after adding an event to the calendar.
type CalendarResponse struct {
	UID string `json:"uid" example:"2f1c...@agenda" validate:"required"`
}

// BookingResponse carries the accommodation search link.
type BookingResponse struct {
	URL string `json:"url" example:"https://www.booking.com/searchresults.es.html?ss=..." validate:"required"`
}

// MarksResponse wraps the calendar marks keyed by day.
type MarksResponse struct {
	Marks map[string]daterange.Mark `json:"marks" validate:"required"`
}

// RefreshResponse reports the counters of a refresh.
type RefreshResponse = index.Stats
