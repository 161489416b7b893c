// Package calendar adds events to the user's personal calendar: as a
// downloadable iCalendar file, or directly through CalDAV or Google
// Calendar.
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
)

const productID = "-//agenda//EN"

// Backends accepted in configuration.
const (
	BackendNone   = "none"
	BackendCalDAV = "caldav"
	BackendGoogle = "google"
)

// Entry is an all-day calendar entry spanning StartDay..EndDay inclusive.
type Entry struct {
	Title    string
	StartDay daterange.Day
	EndDay   daterange.Day
	Location string
	Notes    string
}

// EntryFor builds the calendar entry for ev.
func EntryFor(ev models.Event) Entry {
	return Entry{
		Title:    ev.Name,
		StartDay: ev.StartDay,
		EndDay:   ev.EndDay,
		Location: ev.Location(),
		Notes:    ev.Description,
	}
}

// Calendar is a destination for new entries. Add returns the UID of the
// created entry.
type Calendar interface {
	Name() string
	Add(ctx context.Context, e Entry) (string, error)
}

// NewUID returns a fresh entry UID.
func NewUID() string {
	return uuid.NewString() + "@agenda"
}

// VEvent returns the all-day VEVENT for e. DTEND is exclusive, so it is the
// day after EndDay.
func VEvent(e Entry, uid string, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetText(ical.PropSummary, e.Title)

	start := ical.NewProp(ical.PropDateTimeStart)
	start.SetDate(e.StartDay.Time())
	ve.Props.Set(start)

	end := e.EndDay
	if end.IsZero() || end.Before(e.StartDay) {
		end = e.StartDay
	}
	dtend := ical.NewProp(ical.PropDateTimeEnd)
	dtend.SetDate(end.AddDays(1).Time())
	ve.Props.Set(dtend)

	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.Notes != "" {
		ve.Props.SetText(ical.PropDescription, e.Notes)
	}
	return ve
}

// NewCalendar wraps VEVENTs into a VCALENDAR.
func NewCalendar(events ...*ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, events...)
	return cal
}

// EncodeICS renders e as a standalone .ics document.
func EncodeICS(e Entry, uid string, stamp time.Time) ([]byte, error) {
	if e.StartDay.IsZero() {
		return nil, fmt.Errorf("calendar: %w: entry has no start day", apperr.ErrInvalidInput)
	}
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(NewCalendar(VEvent(e, uid, stamp))); err != nil {
		return nil, fmt.Errorf("calendar: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Disabled is the backend used when no calendar is configured.
type Disabled struct{}

// Name implements Calendar.
func (Disabled) Name() string { return BackendNone }

// Add always fails with apperr.ErrNotConfigured.
func (Disabled) Add(context.Context, Entry) (string, error) {
	return "", fmt.Errorf("calendar: %w", apperr.ErrNotConfigured)
}
