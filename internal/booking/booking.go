// Package booking builds the accommodation search link shown on the event
// detail screen.
package booking

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
)

// DefaultBaseURL is the search page links point to when none is configured.
const DefaultBaseURL = "https://www.booking.com/searchresults.es.html"

// Linker builds search URLs for one base URL and affiliate ID.
type Linker struct {
	base      string
	affiliate string
}

// NewLinker returns a Linker. An empty base means DefaultBaseURL.
func NewLinker(base, affiliate string) (*Linker, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("booking: %w: bad base url %q", apperr.ErrInvalidInput, base)
	}
	return &Linker{base: base, affiliate: affiliate}, nil
}

// URL returns the search link for ev. A closed selection overrides the
// event's own dates, so the stay matches what the user is browsing.
// Checkout is at least one night after checkin.
func (l *Linker) URL(ev models.Event, selection daterange.Interval) (string, error) {
	stay := ev.Span()
	if selection.IsClosed() {
		if err := selection.Validate(); err != nil {
			return "", err
		}
		stay = selection
	}
	if stay.Start.IsZero() {
		return "", fmt.Errorf("booking: %w: event %s has no dates", apperr.ErrInvalidInput, ev.ID)
	}
	checkout := stay.End
	if checkout.IsZero() || !checkout.After(stay.Start) {
		checkout = stay.Start.AddDays(1)
	}

	u, err := url.Parse(l.base)
	if err != nil {
		return "", fmt.Errorf("booking: %w", err)
	}
	q := u.Query()
	q.Set("ss", destination(ev))
	if l.affiliate != "" {
		q.Set("aid", l.affiliate)
	}
	q.Set("checkin", stay.Start.String())
	q.Set("checkout", checkout.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// destination is "address, city" with blank parts dropped.
func destination(ev models.Event) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{ev.Address, ev.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
