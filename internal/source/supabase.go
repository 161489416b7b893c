package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
)

const defaultTable = "events"

// SupabaseConfig configures the hosted backend client.
type SupabaseConfig struct {
	URL    string
	APIKey string
	Table  string
}

// Supabase reads and inserts event rows through the PostgREST interface of a
// Supabase project.
type Supabase struct {
	cfg    SupabaseConfig
	client *http.Client
	logger *slog.Logger
}

// NewSupabase returns a client for cfg. A nil httpClient gets a 15s timeout
// client.
func NewSupabase(cfg SupabaseConfig, httpClient *http.Client, logger *slog.Logger) *Supabase {
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Supabase{cfg: cfg, client: httpClient, logger: logger}
}

// Name implements Source.
func (s *Supabase) Name() string { return KindSupabase }

func (s *Supabase) tableURL(query url.Values) string {
	u := strings.TrimSuffix(s.cfg.URL, "/") + "/rest/v1/" + url.PathEscape(s.cfg.Table)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (s *Supabase) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("apikey", s.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Fetch selects every row ordered by start date.
func (s *Supabase) Fetch(ctx context.Context) ([]models.Event, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "start_date.asc")

	req, err := s.newRequest(ctx, http.MethodGet, s.tableURL(q), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase: fetch: %w: %v", apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("supabase: fetch: %w: status %d: %s", apperr.ErrUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var rows []row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("supabase: decode rows: %w", err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := r.event()
		if err != nil {
			s.logger.Warn("supabase: skipping row", slog.String("id", string(r.ID)), slog.String("error", err.Error()))
			continue
		}
		events = append(events, ev)
	}
	s.logger.Debug("supabase: fetched events", slog.Int("rows", len(rows)), slog.Int("events", len(events)))
	return events, nil
}

// Insert creates a row and returns it as stored by the backend.
func (s *Supabase) Insert(ctx context.Context, ev models.Event) (models.Event, error) {
	body, err := json.Marshal([]row{rowFrom(ev)})
	if err != nil {
		return models.Event{}, fmt.Errorf("supabase: encode row: %w", err)
	}
	req, err := s.newRequest(ctx, http.MethodPost, s.tableURL(nil), bytes.NewReader(body))
	if err != nil {
		return models.Event{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Event{}, fmt.Errorf("supabase: insert: %w: %v", apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.Event{}, fmt.Errorf("supabase: insert: %w", apperr.ErrPermissionDenied)
	case resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Event{}, fmt.Errorf("supabase: insert: %w: status %d: %s", apperr.ErrUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var created []row
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return models.Event{}, fmt.Errorf("supabase: insert: decode response: %w", err)
	}
	if len(created) == 0 || created[0].ID == "" {
		return models.Event{}, fmt.Errorf("supabase: insert: %w: response carries no event id", apperr.ErrUnavailable)
	}
	return created[0].event()
}

// row is the events table shape.
type row struct {
	ID          flexString `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	EventType   string     `json:"event_type"`
	Address     string     `json:"address,omitempty"`
	City        string     `json:"city,omitempty"`
	Country     string     `json:"country,omitempty"`
	Latitude    flexFloat  `json:"latitude"`
	Longitude   flexFloat  `json:"longitude"`
	Rating      flexFloat  `json:"rating"`
	MainImage   string     `json:"mainimage,omitempty"`
	Gallery     gallery    `json:"gallery,omitempty"`
}

func (r row) event() (models.Event, error) {
	start, err := daterange.ParseDay(r.StartDate)
	if err != nil {
		return models.Event{}, err
	}
	end := start
	if r.EndDate != "" {
		if end, err = daterange.ParseDay(r.EndDate); err != nil {
			return models.Event{}, err
		}
	}
	ev := models.Event{
		ID:          string(r.ID),
		Name:        r.Name,
		Description: r.Description,
		StartDay:    start,
		EndDay:      end,
		Category:    r.EventType,
		Address:     r.Address,
		City:        r.City,
		Country:     r.Country,
		Latitude:    float64(r.Latitude),
		Longitude:   float64(r.Longitude),
		Rating:      float64(r.Rating),
		MainImage:   r.MainImage,
		Gallery:     []string(r.Gallery),
	}
	if err := ev.Validate(); err != nil {
		return models.Event{}, err
	}
	return ev, nil
}

func rowFrom(ev models.Event) row {
	return row{
		ID:          flexString(ev.ID),
		Name:        ev.Name,
		Description: ev.Description,
		StartDate:   ev.StartDay.String(),
		EndDate:     ev.EndDay.String(),
		EventType:   ev.Category,
		Address:     ev.Address,
		City:        ev.City,
		Country:     ev.Country,
		Latitude:    flexFloat(ev.Latitude),
		Longitude:   flexFloat(ev.Longitude),
		Rating:      flexFloat(ev.Rating),
		MainImage:   ev.MainImage,
		Gallery:     gallery(ev.Gallery),
	}
}

// flexString accepts a JSON string or number (serial and uuid ids).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// gallery accepts a JSON array of URLs or a string holding one.
type gallery []string

func (g *gallery) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*g = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*g = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*g = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return fmt.Errorf("gallery: %w", err)
	}
	*g = list
	return nil
}
