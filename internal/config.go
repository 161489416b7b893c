package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agenda/internal/booking"
	"github.com/starford/agenda/internal/calendar"
	"github.com/starford/agenda/internal/refresh"
	"github.com/starford/agenda/internal/source"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Source   SourceConfig      `yaml:"source"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Calendar CalendarConfig    `yaml:"calendar"`
	Booking  BookingConfig     `yaml:"booking"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, section := range []interface{ Validate() error }{
		&c.App, &c.Source, &c.SQLite, &c.Auth, &c.Calendar, &c.Booking,
	} {
		if err := section.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig selects where events come from and how often the cache is
// refreshed. Refresh is a cron spec; empty disables scheduled refreshes.
type SourceConfig struct {
	Kind      string                `yaml:"kind"`
	Refresh   string                `yaml:"refresh"`
	Supabase  SupabaseSourceConfig  `yaml:"supabase"`
	Directory DirectorySourceConfig `yaml:"directory"`
	ICS       ICSSourceConfig       `yaml:"ics"`
}

// Validate validates the source configuration. Only the selected kind's
// section is checked.
func (c *SourceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required,
			validation.In(source.KindSupabase, source.KindDirectory, source.KindICS)),
		validation.Field(&c.Refresh, validation.By(func(any) error {
			return refresh.ValidateSpec(c.Refresh)
		})),
	); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	var err error
	switch c.Kind {
	case source.KindSupabase:
		err = c.Supabase.Validate()
	case source.KindDirectory:
		err = c.Directory.Validate()
	case source.KindICS:
		err = c.ICS.Validate()
	}
	if err != nil {
		return fmt.Errorf("source.%s: %w", c.Kind, err)
	}
	return nil
}

// SupabaseSourceConfig points at the event table of a Supabase project.
type SupabaseSourceConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Table  string `yaml:"table"`
}

// Validate validates the Supabase configuration.
func (c *SupabaseSourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Table, validation.Required),
	)
}

// Source returns the source package configuration.
func (c *SupabaseSourceConfig) Source() source.SupabaseConfig {
	return source.SupabaseConfig{URL: c.URL, APIKey: c.APIKey, Table: c.Table}
}

// DirectorySourceConfig holds the seed directory of YAML event documents.
type DirectorySourceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the directory configuration.
func (c *DirectorySourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ICSSourceConfig is an iCalendar subscription. Recurring events are
// expanded HorizonDays ahead.
type ICSSourceConfig struct {
	URL         string `yaml:"url"`
	HorizonDays int    `yaml:"horizon_days"`
}

// Validate validates the feed configuration.
func (c *ICSSourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.HorizonDays, validation.Min(0), validation.Max(3660)),
	)
}

func httpURL(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CalendarConfig selects the backend "add to calendar" writes to.
// Timezone is used for floating times in iCalendar feeds.
type CalendarConfig struct {
	Backend  string       `yaml:"backend"`
	CalDAV   CalDAVConfig `yaml:"caldav"`
	Google   GoogleConfig `yaml:"google"`
	Timezone string       `yaml:"timezone"`
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = calendar.BackendNone
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(calendar.BackendNone, calendar.BackendCalDAV, calendar.BackendGoogle)),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	); err != nil {
		return fmt.Errorf("calendar: %w", err)
	}

	var err error
	switch c.Backend {
	case calendar.BackendCalDAV:
		err = c.CalDAV.Validate()
	case calendar.BackendGoogle:
		err = c.Google.Validate()
	}
	if err != nil {
		return fmt.Errorf("calendar.%s: %w", c.Backend, err)
	}
	return nil
}

// Location returns the configured time zone, UTC when unset.
func (c *CalendarConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// CalDAVConfig holds the CalDAV server account.
type CalDAVConfig struct {
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
}

// Validate validates the CalDAV configuration.
func (c *CalDAVConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Username, validation.Required),
	)
}

// Calendar returns the calendar package configuration.
func (c *CalDAVConfig) Calendar() calendar.CalDAVConfig {
	return calendar.CalDAVConfig{
		Endpoint: c.Endpoint,
		Username: c.Username,
		Password: c.Password,
		Calendar: c.Calendar,
	}
}

// GoogleConfig holds the OAuth client and the calendar to write to.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenFile    string `yaml:"token_file"`
	CalendarID   string `yaml:"calendar_id"`
}

// Validate validates the Google configuration.
func (c *GoogleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ClientSecret, validation.Required),
		validation.Field(&c.TokenFile, validation.Required),
	)
}

// Calendar returns the calendar package configuration.
func (c *GoogleConfig) Calendar() calendar.GoogleConfig {
	return calendar.GoogleConfig{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenFile:    c.TokenFile,
		CalendarID:   c.CalendarID,
	}
}

// BookingConfig holds the accommodation search link settings.
type BookingConfig struct {
	BaseURL     string `yaml:"base_url"`
	AffiliateID string `yaml:"affiliate_id"`
}

// Validate validates the booking configuration.
func (c *BookingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			Kind:    source.KindDirectory,
			Refresh: "@every 15m",
			Supabase: SupabaseSourceConfig{
				Table: "events",
			},
			Directory: DirectorySourceConfig{
				Path: "./events",
			},
			ICS: ICSSourceConfig{
				HorizonDays: 365,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./agenda.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Calendar: CalendarConfig{
			Backend: calendar.BackendNone,
			Google: GoogleConfig{
				TokenFile:  "./google-token.json",
				CalendarID: "primary",
			},
		},
		Booking: BookingConfig{
			BaseURL: booking.DefaultBaseURL,
		},
	}
}
