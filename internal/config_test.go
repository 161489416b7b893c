package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestSourceConfig_UnknownKind(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Kind = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown source kind should fail")
	}
}

func TestSourceConfig_InvalidRefresh(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Refresh = "every now and then"
	err := cfg.Validate()
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "refresh") {
		t.Fatalf("bad cron spec should fail on refresh, got %v", err)
	}

	cfg.Source.Refresh = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty refresh disables scheduling: %v", err)
	}
}

func TestSourceConfig_OnlySelectedKindChecked(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Kind = "supabase"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "source.supabase") {
		t.Fatalf("supabase without url/key should fail, got %v", err)
	}

	cfg.Source.Supabase.URL = "https://xyz.supabase.co"
	cfg.Source.Supabase.APIKey = "anon"
	if err := cfg.Validate(); err != nil {
		t.Errorf("supabase config should pass: %v", err)
	}
}

func TestSourceConfig_ICSURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Kind = "ics"
	cfg.Source.ICS.URL = "webcal:feed"
	if err := cfg.Validate(); err == nil {
		t.Fatal("non-http feed URL should fail")
	}
	cfg.Source.ICS.URL = "https://example.org/agenda.ics"
	if err := cfg.Validate(); err != nil {
		t.Errorf("ics config should pass: %v", err)
	}
}

func TestCalendarConfig_Backends(t *testing.T) {
	cfg := CalendarConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default to none: %v", err)
	}
	if cfg.Backend != "none" {
		t.Errorf("backend = %q, want none", cfg.Backend)
	}

	cfg = CalendarConfig{Backend: "caldav"}
	if err := cfg.Validate(); err == nil {
		t.Error("caldav without endpoint should fail")
	}
	cfg.CalDAV = CalDAVConfig{Endpoint: "https://dav.example.org/", Username: "ana"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("caldav config should pass: %v", err)
	}

	cfg = CalendarConfig{Backend: "google", Google: GoogleConfig{ClientID: "id"}}
	if err := cfg.Validate(); err == nil {
		t.Error("google without secret should fail")
	}

	cfg = CalendarConfig{Backend: "outlook"}
	if err := cfg.Validate(); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestCalendarConfig_Timezone(t *testing.T) {
	cfg := CalendarConfig{Timezone: "Europe/Madrid"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid zone: %v", err)
	}
	loc, _ := cfg.Location()
	if loc.String() != "Europe/Madrid" {
		t.Errorf("location = %s", loc)
	}

	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown zone should fail")
	}
}

func TestBookingConfig(t *testing.T) {
	cfg := BookingConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty base url should fail")
	}
	cfg.BaseURL = "https://www.booking.com/searchresults.html"
	if err := cfg.Validate(); err != nil {
		t.Errorf("base url should pass: %v", err)
	}
}
