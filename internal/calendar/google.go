package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/starford/agenda/internal/apperr"
)

// GoogleConfig configures the Google Calendar backend.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
	CalendarID   string
}

// Google inserts entries through the Google Calendar API.
type Google struct {
	service    *gcal.Service
	calendarID string
	logger     *slog.Logger
}

// OAuthConfig returns the installed-app OAuth config for cfg, scoped to
// event writes only.
func OAuthConfig(cfg GoogleConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google: %w: client_id and client_secret required", apperr.ErrNotConfigured)
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{gcal.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// NewGoogle loads the saved token and builds the API client.
func NewGoogle(ctx context.Context, cfg GoogleConfig, logger *slog.Logger) (*Google, error) {
	oc, err := OAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	token, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("google: load token (run google-auth first): %w", err)
	}
	return NewGoogleWithClient(ctx, oc.Client(ctx, token), cfg.CalendarID, logger)
}

// NewGoogleWithClient builds the backend on an already authenticated HTTP
// client. Extra options are passed to the API client.
func NewGoogleWithClient(ctx context.Context, httpClient *http.Client, calendarID string, logger *slog.Logger, opts ...option.ClientOption) (*Google, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create calendar service: %w", err)
	}
	return &Google{service: svc, calendarID: calendarID, logger: logger}, nil
}

// Name implements Calendar.
func (g *Google) Name() string { return BackendGoogle }

// Add inserts e as an all-day event and returns its iCalendar UID.
func (g *Google) Add(ctx context.Context, e Entry) (string, error) {
	end := e.EndDay
	if end.IsZero() || end.Before(e.StartDay) {
		end = e.StartDay
	}
	ev := &gcal.Event{
		Summary:     e.Title,
		Location:    e.Location,
		Description: e.Notes,
		ICalUID:     NewUID(),
		Start:       &gcal.EventDateTime{Date: e.StartDay.String()},
		End:         &gcal.EventDateTime{Date: end.AddDays(1).String()},
	}
	created, err := g.service.Events.Insert(g.calendarID, ev).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
			return "", fmt.Errorf("google: %w: %v", apperr.ErrPermissionDenied, err)
		}
		return "", fmt.Errorf("google: save failed: %w", err)
	}
	uid := created.ICalUID
	if uid == "" {
		uid = ev.ICalUID
	}
	g.logger.Info("google: entry created", slog.String("id", created.Id), slog.String("title", e.Title))
	return uid, nil
}

// AuthCodeURL returns the consent URL for the google-auth flow.
func AuthCodeURL(oc *oauth2.Config) string {
	return oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, oc *oauth2.Config, code string) (*oauth2.Token, error) {
	return oc.Exchange(ctx, code)
}

// SaveToken writes token to path, readable by the owner only.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("google: create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}
