// Package eventservice implements the operations behind the discovery
// screens: the filtered list, the calendar selection, event detail, saved
// events, calendar export and the booking link.
package eventservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/booking"
	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/checksum"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/eventfilter"
	"github.com/starford/agenda/internal/index"
	"github.com/starford/agenda/internal/models"
	"github.com/starford/agenda/internal/source"
)

// EventDetail is the detail-screen representation of an event.
type EventDetail struct {
	models.Event
	Stars models.Stars `json:"stars"`
	Saved bool         `json:"saved"`
}

// Listing is the filtered list plus what the list screen shows around it.
type Listing struct {
	Events []models.Event `json:"events"`
	// Categories is the tag bar: every category in the catalogue, in
	// first-seen order, independent of the current filters.
	Categories []string           `json:"categories"`
	Selected   []string           `json:"selected"`
	Interval   daterange.Interval `json:"interval"`
	Label      string             `json:"label"`
	Total      int                `json:"total"`
}

// Selection is the result of one calendar tap.
type Selection struct {
	Interval daterange.Interval        `json:"interval"`
	State    daterange.State           `json:"state"`
	Marks    map[string]daterange.Mark `json:"marks"`
	Label    string                    `json:"label"`
}

// Refresher re-syncs the cache on demand.
type Refresher interface {
	RunOnce(ctx context.Context) (index.Stats, error)
}

// Service coordinates the index with filtering, calendar and booking.
type Service struct {
	db        index.EventIndex
	cal       calendar.Calendar
	links     *booking.Linker
	refresher Refresher
	writer    source.Writer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCalendar sets the calendar backend. The default is calendar.Disabled.
func WithCalendar(c calendar.Calendar) Option {
	return func(s *Service) { s.cal = c }
}

// WithBooking sets the booking link builder.
func WithBooking(l *booking.Linker) Option {
	return func(s *Service) { s.links = l }
}

// WithRefresher enables Refresh.
func WithRefresher(r Refresher) Option {
	return func(s *Service) { s.refresher = r }
}

// WithWriter enables CreateEvent for sources that accept new events.
func WithWriter(w source.Writer) Option {
	return func(s *Service) { s.writer = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New returns a Service over db.
func New(db index.EventIndex, opts ...Option) *Service {
	s := &Service{db: db, cal: calendar.Disabled{}, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.links == nil {
		s.links, _ = booking.NewLinker("", "")
	}
	return s
}

// ListEvents applies the category and date stages to the cached catalogue.
// An interval that is not closed does not filter by date; an inverted one
// is rejected.
func (s *Service) ListEvents(ctx context.Context, cats eventfilter.Categories, iv daterange.Interval) (*Listing, error) {
	if err := iv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	narrowed, err := s.db.ListEvents(ctx, index.Query{Categories: cats.Slice(), Span: iv})
	if err != nil {
		return nil, err
	}
	bar, err := s.db.TagBar(ctx)
	if err != nil {
		return nil, err
	}
	events := eventfilter.Filter(narrowed, cats, iv)
	return &Listing{
		Events:     events,
		Categories: bar,
		Selected:   cats.Slice(),
		Interval:   iv,
		Label:      daterange.Label(iv),
		Total:      len(events),
	}, nil
}

// Search matches text against the cache, then applies the usual filters.
// Empty text lists everything.
func (s *Service) Search(ctx context.Context, text string, cats eventfilter.Categories, iv daterange.Interval, limit int) ([]models.Event, error) {
	if err := iv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	var (
		hits []models.Event
		err  error
	)
	if text == "" {
		hits, err = s.db.ListEvents(ctx, index.Query{Categories: cats.Slice(), Span: iv, Limit: limit})
	} else {
		hits, err = s.db.Search(ctx, text, 0)
	}
	if err != nil {
		return nil, err
	}
	out := eventfilter.Filter(hits, cats, iv)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetEvent returns the detail view of one event.
func (s *Service) GetEvent(ctx context.Context, id string) (*EventDetail, error) {
	ev, err := s.db.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	saved, err := s.db.IsSaved(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EventDetail{Event: *ev, Stars: models.StarsFor(ev.Rating), Saved: saved}, nil
}

// Categories returns the sorted distinct categories of the catalogue.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.db.Categories(ctx)
}

// Select applies a day tap to current and returns the new selection with
// its calendar marks.
func (s *Service) Select(day daterange.Day, current daterange.Interval) (*Selection, error) {
	if day.IsZero() {
		return nil, fmt.Errorf("%w: day required", apperr.ErrInvalidInput)
	}
	if err := current.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	iv := daterange.Select(day, current)
	if err := checkMarkSpan(iv); err != nil {
		return nil, err
	}
	marks, err := daterange.MarksFor(iv)
	if err != nil {
		return nil, err
	}
	return &Selection{Interval: iv, State: iv.State(), Marks: marks, Label: daterange.Label(iv)}, nil
}

// MaxMarkSpanDays bounds the intervals Select and Marks will mark. One
// mark is produced per day; MarksFor itself has no limit.
const MaxMarkSpanDays = 3660

func checkMarkSpan(iv daterange.Interval) error {
	if n := iv.Len(); n > MaxMarkSpanDays {
		return fmt.Errorf("%w: selection spans %d days, at most %d can be marked", apperr.ErrInvalidInput, n, MaxMarkSpanDays)
	}
	return nil
}

// Marks returns the calendar marks for iv.
func (s *Service) Marks(iv daterange.Interval) (map[string]daterange.Mark, error) {
	if err := iv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	if err := checkMarkSpan(iv); err != nil {
		return nil, err
	}
	marks, err := daterange.MarksFor(iv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return marks, nil
}

// ToggleSaved flips the saved flag of an existing event and returns the new
// state.
func (s *Service) ToggleSaved(ctx context.Context, id string) (bool, error) {
	if _, err := s.db.GetEvent(ctx, id); err != nil {
		return false, err
	}
	saved, err := s.db.IsSaved(ctx, id)
	if err != nil {
		return false, err
	}
	if err := s.db.SetSaved(ctx, id, !saved); err != nil {
		return false, err
	}
	return !saved, nil
}

// Saved returns the saved events still present in the catalogue.
func (s *Service) Saved(ctx context.Context) ([]models.Event, error) {
	ids, err := s.db.SavedIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(ids))
	for _, id := range ids {
		ev, err := s.db.GetEvent(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, nil
}

// AddToCalendar creates an all-day entry for the event in the configured
// calendar and returns its UID.
func (s *Service) AddToCalendar(ctx context.Context, id string) (string, error) {
	ev, err := s.db.GetEvent(ctx, id)
	if err != nil {
		return "", err
	}
	uid, err := s.cal.Add(ctx, calendar.EntryFor(*ev))
	if err != nil {
		s.logger.Warn("calendar: add failed",
			slog.String("id", id),
			slog.String("backend", s.cal.Name()),
			slog.String("error", err.Error()))
		return "", err
	}
	return uid, nil
}

// CalendarICS renders the event as an .ics document. The UID is stable per
// event so re-importing updates the same entry.
func (s *Service) CalendarICS(ctx context.Context, id string) ([]byte, error) {
	ev, err := s.db.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return calendar.EncodeICS(calendar.EntryFor(*ev), ev.ID+"@agenda", s.now())
}

// BookingURL returns the accommodation link for the event. A closed
// selection overrides the event dates.
func (s *Service) BookingURL(ctx context.Context, id string, selection daterange.Interval) (string, error) {
	ev, err := s.db.GetEvent(ctx, id)
	if err != nil {
		return "", err
	}
	u, err := s.links.URL(*ev, selection)
	if errors.Is(err, daterange.ErrInvalidInterval) {
		return "", fmt.Errorf("%w: %w", apperr.ErrInvalidInput, err)
	}
	return u, err
}

// Refresh re-syncs the cache from the source.
func (s *Service) Refresh(ctx context.Context) (index.Stats, error) {
	if s.refresher == nil {
		return index.Stats{}, fmt.Errorf("refresh: %w", apperr.ErrNotConfigured)
	}
	return s.refresher.RunOnce(ctx)
}

// CreateEvent publishes a new event through the source and caches it
// right away.
func (s *Service) CreateEvent(ctx context.Context, ev models.Event) (*models.Event, error) {
	if s.writer == nil {
		return nil, fmt.Errorf("create event: %w: source is read-only", apperr.ErrNotConfigured)
	}
	if ev.EndDay.IsZero() {
		ev.EndDay = ev.StartDay
	}
	// The writer assigns an ID when none is given.
	check := ev
	if check.ID == "" {
		check.ID = "pending"
	}
	if err := check.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	created, err := s.writer.Insert(ctx, ev)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpsertEvent(ctx, created, checksum.Event(created), "local"); err != nil {
		return nil, err
	}
	return &created, nil
}
