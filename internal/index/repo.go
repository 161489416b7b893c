package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
)

// Query narrows ListEvents. Zero fields do not filter. Span only filters
// when closed, using the same overlap rule as the event filter.
type Query struct {
	Categories []string
	Span       daterange.Interval
	Limit      int
}

// UpsertEvent inserts or replaces the cached copy of ev.
func (db *DB) UpsertEvent(ctx context.Context, ev models.Event, sum, source string) error {
	doc, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("index: encode event %s: %w", ev.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO events (id, name, description, category, city, start_date, end_date, doc, checksum, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			description = excluded.description,
			category    = excluded.category,
			city        = excluded.city,
			start_date  = excluded.start_date,
			end_date    = excluded.end_date,
			doc         = excluded.doc,
			checksum    = excluded.checksum,
			source      = excluded.source,
			updated_at  = excluded.updated_at
	`, ev.ID, ev.Name, ev.Description, ev.Category, ev.City,
		ev.StartDay.String(), ev.EndDay.String(), string(doc), sum, source, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert event %s: %w", ev.ID, err)
	}
	return nil
}

// DeleteEvent removes an event from the cache. Its saved flag is kept so
// that it comes back if the event reappears upstream.
func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete event %s: %w", id, err)
	}
	return nil
}

// GetEvent returns the cached event or apperr.ErrNotFound.
func (db *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var doc string
	err := db.conn.QueryRowContext(ctx, `SELECT doc FROM events WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get event: %w", err)
	}
	var ev models.Event
	if err := json.Unmarshal([]byte(doc), &ev); err != nil {
		return nil, fmt.Errorf("index: decode event %s: %w", id, err)
	}
	return &ev, nil
}

// ListEvents returns cached events ordered by start date, then ID.
func (db *DB) ListEvents(ctx context.Context, q Query) ([]models.Event, error) {
	var (
		where []string
		args  []any
	)
	if len(q.Categories) > 0 {
		where = append(where, "category IN (?"+strings.Repeat(", ?", len(q.Categories)-1)+")")
		for _, c := range q.Categories {
			args = append(args, c)
		}
	}
	if q.Span.IsClosed() {
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, q.Span.End.String(), q.Span.Start.String())
	}

	stmt := `SELECT doc FROM events`
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY start_date, id"
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list events: %w", err)
	}
	return scanEvents(rows)
}

// Categories returns the distinct non-empty categories, sorted.
func (db *DB) Categories(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT category FROM events WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("index: categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TagBar returns the distinct non-empty categories in the order their
// first event appears in ListEvents.
func (db *DB) TagBar(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT category FROM (
			SELECT category, ROW_NUMBER() OVER (ORDER BY start_date, id) AS pos
			FROM events WHERE category != ''
		)
		GROUP BY category
		ORDER BY MIN(pos)
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tag bar: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Search matches text against name, description and city. A limit <= 0
// returns every match.
func (db *DB) Search(ctx context.Context, text string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	like := "%" + escapeLike(text) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT doc FROM events
		WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR city LIKE ? ESCAPE '\'
		ORDER BY start_date, id
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanEvents(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// AllChecksums maps every cached event ID to its checksum.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, checksum FROM events`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// SetSaved marks or unmarks an event as saved.
func (db *DB) SetSaved(ctx context.Context, id string, saved bool) error {
	var err error
	if saved {
		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO saved (event_id, saved_at) VALUES (?, ?) ON CONFLICT(event_id) DO NOTHING`,
			id, time.Now().UTC())
	} else {
		_, err = db.conn.ExecContext(ctx, `DELETE FROM saved WHERE event_id = ?`, id)
	}
	if err != nil {
		return fmt.Errorf("index: set saved %s: %w", id, err)
	}
	return nil
}

// IsSaved reports whether id is saved.
func (db *DB) IsSaved(ctx context.Context, id string) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM saved WHERE event_id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("index: is saved: %w", err)
	}
	return n > 0, nil
}

// SavedIDs returns saved event IDs, most recently saved first.
func (db *DB) SavedIDs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT event_id FROM saved ORDER BY saved_at DESC, event_id`)
	if err != nil {
		return nil, fmt.Errorf("index: saved ids: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	defer rows.Close()
	out := []models.Event{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var ev models.Event
		if err := json.Unmarshal([]byte(doc), &ev); err != nil {
			return nil, fmt.Errorf("index: decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
