package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("AGENDA_TEST_NAME", "sevilla")
	p := writeFile(t, "c.yaml", "name: ${AGENDA_TEST_NAME}\nport: ${AGENDA_TEST_PORT:-8081}\n")

	cfg := sample{Mode: "keep"}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "sevilla" || cfg.Port != 8081 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Mode != "keep" {
		t.Errorf("absent key overwrote default: %q", cfg.Mode)
	}
}

func TestParse_DefaultOnEmptyVar(t *testing.T) {
	t.Setenv("AGENDA_TEST_EMPTY", "")
	var cfg sample
	if err := Parse([]byte("mode: ${AGENDA_TEST_EMPTY:-token}\nport: 1\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "token" {
		t.Errorf("mode = %q, want token", cfg.Mode)
	}
}

func TestParse_ValidationError(t *testing.T) {
	var cfg sample
	err := Parse([]byte("name: x\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadWithDefaults_Fallback(t *testing.T) {
	def := writeFile(t, "default.yaml", "port: 9000\n")
	var cfg sample
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), def, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Errorf("port = %d", cfg.Port)
	}
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "absent.yaml"), "", &cfg); err == nil {
		t.Error("expected not found error without default")
	}
}
