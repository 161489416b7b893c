package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/starford/agenda/internal/apperr"
	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
)

// maxOccurrences caps the expansion of a single recurring VEVENT.
const maxOccurrences = 366

// ICSConfig configures an iCalendar feed source.
type ICSConfig struct {
	URL         string
	HorizonDays int
	// Location interprets floating times; nil means UTC.
	Location *time.Location
}

// ICSFeed turns the VEVENTs of an iCalendar subscription into events.
// Recurring events are expanded into one event per occurrence inside
// [today, today+HorizonDays].
type ICSFeed struct {
	cfg    ICSConfig
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	etag string
	body []byte
}

// NewICSFeed returns a feed source for cfg.
func NewICSFeed(cfg ICSConfig, httpClient *http.Client, logger *slog.Logger) *ICSFeed {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 180
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ICSFeed{cfg: cfg, client: httpClient, logger: logger, now: time.Now}
}

// Name implements Source.
func (f *ICSFeed) Name() string { return KindICS }

// Fetch downloads (honouring ETag) and decodes the feed.
func (f *ICSFeed) Fetch(ctx context.Context) ([]models.Event, error) {
	body, err := f.download(ctx)
	if err != nil {
		return nil, err
	}
	today := daterange.DayOf(f.now().In(f.cfg.Location))
	events, err := DecodeICS(bytes.NewReader(body), today, today.AddDays(f.cfg.HorizonDays), f.cfg.Location, f.logger)
	if err != nil {
		return nil, err
	}
	SortByStart(events)
	return events, nil
}

func (f *ICSFeed) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ics: build request: %w", err)
	}
	f.mu.Lock()
	etag, cached := f.etag, f.body
	f.mu.Unlock()
	if etag != "" && cached != nil {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if cached != nil {
			f.logger.Warn("ics: fetch failed, using cached feed", slog.String("error", err.Error()))
			return cached, nil
		}
		return nil, fmt.Errorf("ics: fetch: %w: %v", apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("ics: read body: %w", err)
		}
		f.mu.Lock()
		f.etag, f.body = resp.Header.Get("ETag"), body
		f.mu.Unlock()
		return body, nil
	case http.StatusNotModified:
		if cached == nil {
			return nil, fmt.Errorf("ics: %w: 304 without cached feed", apperr.ErrUnavailable)
		}
		f.logger.Debug("ics: feed not modified")
		return cached, nil
	default:
		if cached != nil {
			f.logger.Warn("ics: unexpected status, using cached feed", slog.Int("status", resp.StatusCode))
			return cached, nil
		}
		return nil, fmt.Errorf("ics: fetch: %w: status %d", apperr.ErrUnavailable, resp.StatusCode)
	}
}

// DecodeICS maps the VEVENTs of an iCalendar stream to events, expanding
// recurrences that start within [from, to]. A VEVENT that cannot be mapped
// is logged and skipped; only an undecodable stream is an error.
func DecodeICS(r io.Reader, from, to daterange.Day, loc *time.Location, logger *slog.Logger) ([]models.Event, error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return nil, fmt.Errorf("ics: decode: %w", err)
	}
	var out []models.Event
	for _, ve := range cal.Events() {
		evs, err := fromVEvent(ve, from, to, loc)
		if err != nil {
			uid, _ := ve.Props.Text(ical.PropUID)
			logger.Warn("ics: skipping invalid event", slog.String("uid", uid), slog.String("error", err.Error()))
			continue
		}
		out = append(out, evs...)
	}
	return out, nil
}

func fromVEvent(ve ical.Event, from, to daterange.Day, loc *time.Location) ([]models.Event, error) {
	uid, _ := ve.Props.Text(ical.PropUID)
	if uid == "" {
		return nil, errors.New("missing UID")
	}
	start, err := ve.DateTimeStart(loc)
	if err != nil {
		return nil, fmt.Errorf("DTSTART: %w", err)
	}
	end, allDay, err := eventEnd(ve, start, loc)
	if err != nil {
		return nil, err
	}

	base := models.Event{ID: uid}
	base.Name, _ = ve.Props.Text(ical.PropSummary)
	base.Description, _ = ve.Props.Text(ical.PropDescription)
	base.Address, _ = ve.Props.Text(ical.PropLocation)
	if p := ve.Props.Get(ical.PropCategories); p != nil {
		if cats := strings.Split(p.Value, ","); len(cats) > 0 {
			base.Category = strings.ToLower(strings.TrimSpace(cats[0]))
		}
	}
	if p := ve.Props.Get(ical.PropGeo); p != nil {
		base.Latitude, base.Longitude = parseGeo(p.Value)
	}

	span := func(s, e time.Time) (daterange.Day, daterange.Day) {
		sd, ed := daterange.DayOf(s.In(loc)), daterange.DayOf(e.In(loc))
		if allDay && ed.After(sd) {
			// DTEND of an all-day event is exclusive.
			ed = ed.AddDays(-1)
		}
		if ed.Before(sd) {
			ed = sd
		}
		return sd, ed
	}

	rule := ve.Props.Get(ical.PropRecurrenceRule)
	if rule == nil {
		ev := base
		ev.StartDay, ev.EndDay = span(start, end)
		return []models.Event{ev}, nil
	}

	r, err := rrule.StrToRRule(rule.Value)
	if err != nil {
		return nil, fmt.Errorf("RRULE: %w", err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exceptionDates(ve, loc) {
		set.ExDate(ex)
	}

	dur := end.Sub(start)
	occ := set.Between(from.In(start.Location()), to.AddDays(1).In(start.Location()), true)
	if len(occ) > maxOccurrences {
		occ = occ[:maxOccurrences]
	}
	out := make([]models.Event, 0, len(occ))
	for _, at := range occ {
		ev := base
		ev.StartDay, ev.EndDay = span(at, at.Add(dur))
		ev.ID = uid + "#" + ev.StartDay.String()
		out = append(out, ev)
	}
	return out, nil
}

// eventEnd returns DTEND, or DTSTART+DURATION, or the start itself.
func eventEnd(ve ical.Event, start time.Time, loc *time.Location) (time.Time, bool, error) {
	allDay := false
	if p := ve.Props.Get(ical.PropDateTimeStart); p != nil {
		allDay = p.ValueType() == ical.ValueDate || len(p.Value) == len("20060102")
	}
	if ve.Props.Get(ical.PropDateTimeEnd) != nil {
		end, err := ve.DateTimeEnd(loc)
		if err != nil {
			return time.Time{}, allDay, fmt.Errorf("DTEND: %w", err)
		}
		return end, allDay, nil
	}
	if p := ve.Props.Get(ical.PropDuration); p != nil {
		d, err := p.Duration()
		if err != nil {
			return time.Time{}, allDay, fmt.Errorf("DURATION: %w", err)
		}
		return start.Add(d), allDay, nil
	}
	return start, false, nil
}

func exceptionDates(ve ical.Event, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range ve.Props[ical.PropExceptionDates] {
		for _, v := range strings.Split(p.Value, ",") {
			single := ical.Prop{Name: p.Name, Params: p.Params, Value: strings.TrimSpace(v)}
			t, err := single.DateTime(loc)
			if err != nil {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func parseGeo(v string) (float64, float64) {
	parts := strings.SplitN(v, ";", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return lat, lon
}
