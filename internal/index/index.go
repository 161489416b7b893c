package index

import (
	"context"

	"github.com/starford/agenda/internal/models"
)

// EventIndex is what the service layer needs from the cache. Depend on it
// rather than on *DB so tests can swap in a fake.
type EventIndex interface {
	UpsertEvent(ctx context.Context, ev models.Event, sum, source string) error
	DeleteEvent(ctx context.Context, id string) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, q Query) ([]models.Event, error)
	Categories(ctx context.Context) ([]string, error)
	TagBar(ctx context.Context) ([]string, error)
	Search(ctx context.Context, text string, limit int) ([]models.Event, error)
	AllChecksums(ctx context.Context) (map[string]string, error)
	SetSaved(ctx context.Context, id string, saved bool) error
	IsSaved(ctx context.Context, id string) (bool, error)
	SavedIDs(ctx context.Context) ([]string, error)
	Close() error
}

// Verify *DB satisfies EventIndex at compile time.
var _ EventIndex = (*DB)(nil)
