package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"github.com/starford/agenda/internal/apperr"
)

// CalDAVConfig configures the CalDAV backend. When CalendarPath is empty the
// calendar is discovered by display name on first use.
type CalDAVConfig struct {
	Endpoint     string
	Username     string
	Password     string
	Calendar     string
	CalendarPath string
}

// CalDAV writes entries as calendar objects on a CalDAV server.
type CalDAV struct {
	cfg    CalDAVConfig
	client *caldav.Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	calPath string
}

// basicAuthTransport adds credentials to each request and records the
// response status for the request's statusRecorder, if any.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

type statusKey struct{}

type statusRecorder struct {
	mu     sync.Mutex
	status int
}

func (r *statusRecorder) set(code int) {
	r.mu.Lock()
	r.status = code
	r.mu.Unlock()
}

func (r *statusRecorder) get() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "agenda/1.0")
	resp, err := t.transport.RoundTrip(req)
	if err == nil {
		if rec, ok := req.Context().Value(statusKey{}).(*statusRecorder); ok {
			rec.set(resp.StatusCode)
		}
	}
	return resp, err
}

// NewCalDAV returns a CalDAV backend. A nil base transport means
// http.DefaultTransport.
func NewCalDAV(cfg CalDAVConfig, base http.RoundTripper, logger *slog.Logger) (*CalDAV, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("caldav: %w: endpoint required", apperr.ErrNotConfigured)
	}
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &basicAuthTransport{username: cfg.Username, password: cfg.Password, transport: base},
	}
	client, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("caldav: create client: %w", err)
	}
	return &CalDAV{cfg: cfg, client: client, logger: logger, now: time.Now, calPath: cfg.CalendarPath}, nil
}

// Name implements Calendar.
func (c *CalDAV) Name() string { return BackendCalDAV }

// Add PUTs e as {uid}.ics into the configured calendar.
func (c *CalDAV) Add(ctx context.Context, e Entry) (string, error) {
	rec := &statusRecorder{}
	ctx = context.WithValue(ctx, statusKey{}, rec)

	calPath, err := c.calendarPath(ctx)
	if err != nil {
		return "", c.mapError(rec, err)
	}

	uid := NewUID()
	objPath := path.Join(calPath, uid+".ics")
	if _, err := c.client.PutCalendarObject(ctx, objPath, NewCalendar(VEvent(e, uid, c.now()))); err != nil {
		return "", c.mapError(rec, err)
	}
	c.logger.Info("caldav: entry created", slog.String("uid", uid), slog.String("title", e.Title))
	return uid, nil
}

func (c *CalDAV) mapError(rec *statusRecorder, err error) error {
	switch rec.get() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("caldav: %w: %v", apperr.ErrPermissionDenied, err)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return fmt.Errorf("caldav: save failed: %w", err)
}

// calendarPath discovers principal -> home set -> calendar by name once.
func (c *CalDAV) calendarPath(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calPath != "" {
		return c.calPath, nil
	}

	principal, err := c.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := c.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("find calendar home set: %w", err)
	}
	calendars, err := c.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("find calendars: %w", err)
	}
	for _, cal := range calendars {
		if c.cfg.Calendar == "" || strings.EqualFold(cal.Name, c.cfg.Calendar) {
			c.calPath = cal.Path
			c.logger.Info("caldav: calendar found", slog.String("name", cal.Name), slog.String("path", cal.Path))
			return c.calPath, nil
		}
	}
	return "", fmt.Errorf("calendar %q: %w", c.cfg.Calendar, apperr.ErrNotFound)
}
