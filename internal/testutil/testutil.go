// Package testutil provides shared test helpers for setting up seed
// directories, databases and event fixtures.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/agenda/internal/checksum"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/index"
	"github.com/starford/agenda/internal/models"
	"github.com/starford/agenda/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "agenda-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSeedDir creates a temporary seed directory with a storage.Provider.
func TestSeedDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Event builds a minimal valid event; dates are YYYY-MM-DD.
func Event(id, name, category, start, end string) models.Event {
	return models.Event{
		ID:       id,
		Name:     name,
		Category: category,
		StartDay: daterange.MustParseDay(start),
		EndDay:   daterange.MustParseDay(end),
	}
}

// SeedEvents writes events straight into the cache.
func SeedEvents(t *testing.T, db index.EventIndex, events ...models.Event) {
	t.Helper()
	for _, ev := range events {
		if err := db.UpsertEvent(context.Background(), ev, checksum.Event(ev), "test"); err != nil {
			t.Fatalf("seed %s: %v", ev.ID, err)
		}
	}
}

// Catalogue is the fixture used by service, API and MCP tests.
func Catalogue() []models.Event {
	jazz := Event("1", "Jazz en la plaza", "music", "2024-07-01", "2024-07-05")
	jazz.City, jazz.Country, jazz.Address = "Sevilla", "España", "Plaza Nueva"
	jazz.Rating = 4.5
	jazz.Description = "Conciertos al aire libre"

	return []models.Event{
		jazz,
		Event("2", "Bienal de arte", "art", "2024-07-10", "2024-07-20"),
		Event("3", "Rock fest", "music", "2024-07-12", "2024-07-12"),
		Event("4", "Feria del libro", "books", "2024-08-01", "2024-08-10"),
	}
}
