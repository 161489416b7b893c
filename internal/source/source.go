// Package source fetches event snapshots from the configured event source:
// the hosted backend (Supabase/PostgREST), a directory of YAML documents or
// an iCalendar feed.
package source

import (
	"context"

	"github.com/starford/agenda/internal/models"
)

// Source returns a read-only snapshot of every published event.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Event, error)
}

// Writer is implemented by sources that accept new events.
type Writer interface {
	Insert(ctx context.Context, ev models.Event) (models.Event, error)
}

// Kinds accepted in configuration.
const (
	KindSupabase  = "supabase"
	KindDirectory = "directory"
	KindICS       = "ics"
)
