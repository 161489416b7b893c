package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
	"github.com/starford/agenda/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const supabaseRows = `[
 {"id": 1, "name": "Jazz en la plaza", "start_date": "2024-07-01", "end_date": "2024-07-05",
  "event_type": "music", "city": "Sevilla", "country": "España", "latitude": "37.38",
  "longitude": -5.99, "rating": 4.5, "gallery": "[\"a.jpg\",\"b.jpg\"]"},
 {"id": "b6d1", "name": "Bienal de arte", "start_date": "2024-08-01T10:00:00+00:00",
  "end_date": "2024-08-03T18:00:00+00:00", "event_type": "art", "rating": null, "gallery": ["c.jpg"]},
 {"id": 3, "name": "", "start_date": "2024-09-01", "end_date": "2024-09-01", "event_type": "x"}
]`

func TestSupabase_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("order") != "start_date.asc" {
			t.Errorf("order = %q", r.URL.Query().Get("order"))
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("apikey header = %q", r.Header.Get("apikey"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, supabaseRows)
	}))
	defer srv.Close()

	src := NewSupabase(SupabaseConfig{URL: srv.URL + "/", APIKey: "anon-key"}, srv.Client(), quietLogger())
	events, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (invalid row skipped)", len(events))
	}
	jazz := events[0]
	if jazz.ID != "1" || jazz.Latitude != 37.38 || len(jazz.Gallery) != 2 {
		t.Errorf("jazz = %+v", jazz)
	}
	if events[1].StartDay.String() != "2024-08-01" || events[1].EndDay.String() != "2024-08-03" {
		t.Errorf("timestamp columns not truncated: %s..%s", events[1].StartDay, events[1].EndDay)
	}
}

func TestSupabase_FetchUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewSupabase(SupabaseConfig{URL: srv.URL, APIKey: "k"}, srv.Client(), quietLogger())
	_, err := src.Fetch(context.Background())
	if !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSupabase_Insert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"start_date":"2024-07-01"`) {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `[{"id": 42, "name": "Nuevo", "start_date": "2024-07-01", "end_date": "2024-07-02", "event_type": "music"}]`)
	}))
	defer srv.Close()

	src := NewSupabase(SupabaseConfig{URL: srv.URL, APIKey: "k"}, srv.Client(), quietLogger())
	created, err := src.Insert(context.Background(), models.Event{
		Name:     "Nuevo",
		StartDay: daterange.MustParseDay("2024-07-01"),
		EndDay:   daterange.MustParseDay("2024-07-02"),
		Category: "music",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if created.ID != "42" {
		t.Errorf("id = %q, want 42", created.ID)
	}
}

func TestSupabase_InsertWithoutRepresentation(t *testing.T) {
	for name, body := range map[string]string{
		"empty":   ``,
		"no rows": `[]`,
		"no id":   `[{"name": "Nuevo", "start_date": "2024-07-01"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			src := NewSupabase(SupabaseConfig{URL: srv.URL, APIKey: "k"}, srv.Client(), quietLogger())
			created, err := src.Insert(context.Background(), models.Event{
				Name:     "Nuevo",
				StartDay: daterange.MustParseDay("2024-07-01"),
				EndDay:   daterange.MustParseDay("2024-07-01"),
			})
			if err == nil {
				t.Fatalf("Insert succeeded with %+v", created)
			}
		})
	}
}

func TestSupabase_InsertForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewSupabase(SupabaseConfig{URL: srv.URL, APIKey: "k"}, srv.Client(), quietLogger())
	_, err := src.Insert(context.Background(), models.Event{Name: "x"})
	if !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestDirectory_FetchSkipsInvalid(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Write("b.yaml", []byte("name: B\nevent_type: art\nstart_date: 2024-08-01\n"))
	_ = store.Write("a.yaml", []byte("name: A\nevent_type: music\nstart_date: 2024-07-01\nend_date: 2024-07-03\n"))
	_ = store.Write("broken.yaml", []byte("name: [unterminated\n"))

	src := NewDirectory(store, quietLogger())
	events, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].ID != "a" || events[1].ID != "b" {
		t.Errorf("order = %s, %s", events[0].ID, events[1].ID)
	}
}

func TestDirectory_Insert(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	src := NewDirectory(store, quietLogger())
	ev := models.Event{
		ID:       "feria",
		Name:     "Feria",
		StartDay: daterange.MustParseDay("2024-04-14"),
		EndDay:   daterange.MustParseDay("2024-04-20"),
		Category: "fiesta",
	}
	if _, err := src.Insert(context.Background(), ev); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := src.Insert(context.Background(), ev); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("second insert err = %v, want ErrInvalidInput", err)
	}
	events, _ := src.Fetch(context.Background())
	if len(events) != 1 || events[0].EndDay != ev.EndDay {
		t.Errorf("events = %+v", events)
	}
}

func icsFeed(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

var sampleFeed = icsFeed(
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//test//EN",
	"BEGIN:VEVENT",
	"UID:jazz@example.com",
	"DTSTAMP:20240601T000000Z",
	"SUMMARY:Jazz en la plaza",
	"CATEGORIES:Music,Jazz",
	"GEO:37.38;-5.99",
	"LOCATION:Plaza Nueva",
	"DTSTART;VALUE=DATE:20240701",
	"DTEND;VALUE=DATE:20240706",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:mercado@example.com",
	"DTSTAMP:20240601T000000Z",
	"SUMMARY:Mercadillo",
	"CATEGORIES:market",
	"DTSTART;VALUE=DATE:20240703",
	"DTEND;VALUE=DATE:20240704",
	"RRULE:FREQ=WEEKLY;COUNT=4",
	"EXDATE;VALUE=DATE:20240710",
	"END:VEVENT",
	"END:VCALENDAR",
)

func TestDecodeICS(t *testing.T) {
	from, to := daterange.MustParseDay("2024-07-01"), daterange.MustParseDay("2024-08-31")
	events, err := DecodeICS(strings.NewReader(sampleFeed), from, to, time.UTC, quietLogger())
	if err != nil {
		t.Fatalf("DecodeICS: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}
	jazz := events[0]
	if jazz.StartDay.String() != "2024-07-01" || jazz.EndDay.String() != "2024-07-05" {
		t.Errorf("jazz span = %s..%s", jazz.StartDay, jazz.EndDay)
	}
	if jazz.Category != "music" || jazz.Latitude != 37.38 {
		t.Errorf("jazz = %+v", jazz)
	}
	var days []string
	for _, ev := range events[1:] {
		days = append(days, ev.StartDay.String())
		if ev.StartDay != ev.EndDay {
			t.Errorf("occurrence %s spans %s..%s", ev.ID, ev.StartDay, ev.EndDay)
		}
	}
	if strings.Join(days, ",") != "2024-07-03,2024-07-17,2024-07-24" {
		t.Errorf("occurrences = %v", days)
	}
	if events[1].ID != "mercado@example.com#2024-07-03" {
		t.Errorf("occurrence id = %q", events[1].ID)
	}
}

func TestDecodeICS_SkipsInvalidEvents(t *testing.T) {
	feed := icsFeed(
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"DTSTAMP:20240601T000000Z",
		"SUMMARY:Sin UID",
		"DTSTART;VALUE=DATE:20240702",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:roto@example.com",
		"DTSTAMP:20240601T000000Z",
		"SUMMARY:Regla rota",
		"DTSTART;VALUE=DATE:20240702",
		"RRULE:FREQ=NEVER",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:teatro@example.com",
		"DTSTAMP:20240601T000000Z",
		"SUMMARY:Teatro",
		"DTSTART;VALUE=DATE:20240708",
		"END:VEVENT",
		"END:VCALENDAR",
	)
	from, to := daterange.MustParseDay("2024-07-01"), daterange.MustParseDay("2024-08-31")
	events, err := DecodeICS(strings.NewReader(feed), from, to, time.UTC, quietLogger())
	if err != nil {
		t.Fatalf("DecodeICS: %v", err)
	}
	if len(events) != 1 || events[0].ID != "teatro@example.com" {
		t.Fatalf("events = %+v", events)
	}
	if events[0].StartDay.String() != "2024-07-08" {
		t.Errorf("start = %s", events[0].StartDay)
	}
}

func TestICSFeed_ETag(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, sampleFeed)
	}))
	defer srv.Close()

	feed := NewICSFeed(ICSConfig{URL: srv.URL, HorizonDays: 90}, srv.Client(), quietLogger())
	feed.now = func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }

	first, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	second, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if calls != 2 || len(first) != len(second) {
		t.Errorf("calls = %d, first = %d, second = %d", calls, len(first), len(second))
	}
}
