// Package models defines the domain types for agenda.
package models

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agenda/internal/daterange"
)

// Event is one cultural or tourism event as published by the event source.
// The service only ever holds read-only snapshots of it.
type Event struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	StartDay    daterange.Day `json:"start_date" yaml:"start_date"`
	EndDay      daterange.Day `json:"end_date" yaml:"end_date"`
	Category    string        `json:"event_type" yaml:"event_type"`
	Address     string        `json:"address,omitempty" yaml:"address,omitempty"`
	City        string        `json:"city,omitempty" yaml:"city,omitempty"`
	Country     string        `json:"country,omitempty" yaml:"country,omitempty"`
	Latitude    float64       `json:"latitude" yaml:"latitude"`
	Longitude   float64       `json:"longitude" yaml:"longitude"`
	Rating      float64       `json:"rating" yaml:"rating"`
	MainImage   string        `json:"mainimage,omitempty" yaml:"mainimage,omitempty"`
	Gallery     []string      `json:"gallery,omitempty" yaml:"gallery,omitempty"`
}

// Span returns the closed interval the event runs over.
func (e Event) Span() daterange.Interval {
	return daterange.Closed(e.StartDay, e.EndDay)
}

// Location is the "city, country" line used for calendar entries.
func (e Event) Location() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{e.City, e.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Validate checks the fields every consumer relies on.
func (e *Event) Validate() error {
	if err := validation.ValidateStruct(e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.StartDay, validation.By(requiredDay)),
		validation.Field(&e.EndDay, validation.By(requiredDay)),
		validation.Field(&e.Rating, validation.Min(0.0), validation.Max(5.0)),
		validation.Field(&e.Latitude, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&e.Longitude, validation.Min(-180.0), validation.Max(180.0)),
	); err != nil {
		return err
	}
	return e.Span().Validate()
}

func requiredDay(v any) error {
	if d, ok := v.(daterange.Day); ok && d.IsZero() {
		return errors.New("cannot be blank")
	}
	return nil
}
