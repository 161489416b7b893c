package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/models"
	"github.com/starford/agenda/internal/parser"
	"github.com/starford/agenda/internal/storage"
)

// Directory serves the YAML event documents of a seed directory.
type Directory struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewDirectory returns a source over store.
func NewDirectory(store storage.Provider, logger *slog.Logger) *Directory {
	return &Directory{store: store, logger: logger}
}

// Name implements Source.
func (d *Directory) Name() string { return KindDirectory }

// Fetch parses every document. Invalid documents are logged and skipped so
// that one bad file does not empty the catalogue. Events are ordered by start
// date, then ID, like the hosted backend orders them.
func (d *Directory) Fetch(ctx context.Context) ([]models.Event, error) {
	metas, err := d.store.List("")
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	events := make([]models.Event, 0, len(metas))
	seen := make(map[string]string, len(metas))
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := d.store.Read(m.Path)
		if err != nil {
			d.logger.Warn("directory: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		ev, err := parser.ParseFile(m.Path, data)
		if err != nil {
			d.logger.Warn("directory: invalid document", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if prev, dup := seen[ev.ID]; dup {
			d.logger.Warn("directory: duplicate event id", slog.String("id", ev.ID),
				slog.String("path", m.Path), slog.String("first", prev))
			continue
		}
		seen[ev.ID] = m.Path
		events = append(events, *ev)
	}
	SortByStart(events)
	return events, nil
}

// Insert writes ev as a new document named after its ID. An event without
// an ID gets a random one.
func (d *Directory) Insert(_ context.Context, ev models.Event) (models.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if err := ev.Validate(); err != nil {
		return models.Event{}, fmt.Errorf("directory: %w", err)
	}
	data, err := parser.Marshal(ev)
	if err != nil {
		return models.Event{}, err
	}
	if err := d.store.Create(parser.PathForID(ev.ID), data); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return models.Event{}, fmt.Errorf("directory: %w: event %q already exists", apperr.ErrInvalidInput, ev.ID)
		}
		return models.Event{}, fmt.Errorf("directory: %w", err)
	}
	return ev, nil
}

// SortByStart orders events by start day, then ID.
func SortByStart(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if c := events[i].StartDay.Compare(events[j].StartDay); c != 0 {
			return c < 0
		}
		return events[i].ID < events[j].ID
	})
}
