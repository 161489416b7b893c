package booking

import (
	"errors"
	"net/url"
	"testing"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
)

func jazz() models.Event {
	return models.Event{
		ID:       "1",
		Name:     "Jazz",
		Address:  "Plaza Nueva 1",
		City:     "Sevilla",
		StartDay: daterange.MustParseDay("2024-07-01"),
		EndDay:   daterange.MustParseDay("2024-07-05"),
	}
}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query()
}

func TestURL_EventDates(t *testing.T) {
	l, err := NewLinker("", "12345")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := l.URL(jazz(), daterange.Interval{})
	if err != nil {
		t.Fatalf("URL: %v", err)
	}
	q := query(t, raw)
	if q.Get("ss") != "Plaza Nueva 1, Sevilla" || q.Get("aid") != "12345" {
		t.Errorf("query = %v", q)
	}
	if q.Get("checkin") != "2024-07-01" || q.Get("checkout") != "2024-07-05" {
		t.Errorf("dates = %s..%s", q.Get("checkin"), q.Get("checkout"))
	}
}

func TestURL_SelectionWins(t *testing.T) {
	l, _ := NewLinker("", "")
	sel := daterange.Closed(daterange.MustParseDay("2024-07-02"), daterange.MustParseDay("2024-07-03"))
	raw, err := l.URL(jazz(), sel)
	if err != nil {
		t.Fatal(err)
	}
	q := query(t, raw)
	if q.Get("checkin") != "2024-07-02" || q.Get("checkout") != "2024-07-03" {
		t.Errorf("dates = %s..%s", q.Get("checkin"), q.Get("checkout"))
	}
	if q.Has("aid") {
		t.Error("aid should be omitted when no affiliate is configured")
	}
}

func TestURL_OpenSelectionIgnored(t *testing.T) {
	l, _ := NewLinker("", "")
	raw, _ := l.URL(jazz(), daterange.Single(daterange.MustParseDay("2024-08-01")))
	if q := query(t, raw); q.Get("checkin") != "2024-07-01" {
		t.Errorf("checkin = %s", q.Get("checkin"))
	}
}

func TestURL_OneDayEventGetsOneNight(t *testing.T) {
	ev := jazz()
	ev.EndDay = ev.StartDay
	l, _ := NewLinker("", "")
	raw, _ := l.URL(ev, daterange.Interval{})
	if q := query(t, raw); q.Get("checkout") != "2024-07-02" {
		t.Errorf("checkout = %s", q.Get("checkout"))
	}
}

func TestURL_InvalidSelection(t *testing.T) {
	l, _ := NewLinker("", "")
	sel := daterange.Closed(daterange.MustParseDay("2024-07-05"), daterange.MustParseDay("2024-07-01"))
	if _, err := l.URL(jazz(), sel); !errors.Is(err, daterange.ErrInvalidInterval) {
		t.Errorf("err = %v, want ErrInvalidInterval", err)
	}
}

func TestNewLinker_BadBase(t *testing.T) {
	if _, err := NewLinker("not a url", ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
