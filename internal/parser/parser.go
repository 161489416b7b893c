// Package parser reads and writes the YAML event documents kept in the seed
// directory.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/agenda/internal/models"
)

// ErrEmptyDocument is returned for a document with no YAML content.
var ErrEmptyDocument = errors.New("parser: empty document")

// Parse decodes one event document and validates it. Unknown keys are
// rejected so that a misspelt field does not silently drop data.
func Parse(data []byte) (*models.Event, error) {
	ev, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := finish(ev); err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	return ev, nil
}

// ParseFile is Parse with the document's relative path as the fallback ID
// (its file name without extension).
func ParseFile(rel string, data []byte) (*models.Event, error) {
	ev, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	if strings.TrimSpace(ev.ID) == "" {
		ev.ID = IDFromPath(rel)
	}
	if err := finish(ev); err != nil {
		return nil, fmt.Errorf("parser: %s: %w", rel, err)
	}
	return ev, nil
}

func decode(data []byte) (*models.Event, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var ev models.Event
	if err := dec.Decode(&ev); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("parser: decode: %w", err)
	}
	return &ev, nil
}

// Marshal renders ev as a canonical event document.
func Marshal(ev models.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ev); err != nil {
		return nil, fmt.Errorf("parser: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// IDFromPath derives an event ID from a document path: "2024/jazz.yaml"
// becomes "jazz".
func IDFromPath(rel string) string {
	base := path.Base(strings.ReplaceAll(rel, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// PathForID is the document path the MCP server writes new events to.
func PathForID(id string) string {
	return id + ".yaml"
}

func finish(ev *models.Event) error {
	ev.ID = strings.TrimSpace(ev.ID)
	ev.Name = strings.TrimSpace(ev.Name)
	ev.Category = strings.TrimSpace(ev.Category)
	// A one-day event may omit its end date.
	if ev.EndDay.IsZero() {
		ev.EndDay = ev.StartDay
	}
	return ev.Validate()
}
