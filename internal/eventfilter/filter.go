// Package eventfilter selects the events shown on the list screen from a
// category selection and a date interval.
package eventfilter

import (
	"sort"

	"github.com/starford/agenda/internal/daterange"
	"github.com/starford/agenda/internal/models"
)

// Categories is a set of chosen category tags. The empty set means no
// category filter.
type Categories map[string]struct{}

// NewCategories returns a set holding cats. Empty strings are ignored.
func NewCategories(cats ...string) Categories {
	c := make(Categories, len(cats))
	for _, v := range cats {
		if v != "" {
			c[v] = struct{}{}
		}
	}
	return c
}

// Toggle adds cat when absent and removes it when present, the way a tag
// press does.
func (c Categories) Toggle(cat string) Categories {
	if c == nil {
		c = Categories{}
	}
	if _, ok := c[cat]; ok {
		delete(c, cat)
	} else {
		c[cat] = struct{}{}
	}
	return c
}

// Has reports whether cat is selected.
func (c Categories) Has(cat string) bool {
	_, ok := c[cat]
	return ok
}

// Len returns the number of selected categories.
func (c Categories) Len() int { return len(c) }

// Slice returns the selected categories sorted.
func (c Categories) Slice() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Overlaps reports whether ev's [start, end] span overlaps the closed
// interval iv: the event starts inside it, ends inside it, or contains it.
func Overlaps(ev models.Event, iv daterange.Interval) bool {
	if !iv.IsClosed() {
		return false
	}
	return iv.Contains(ev.StartDay) ||
		iv.Contains(ev.EndDay) ||
		(!ev.StartDay.After(iv.Start) && !ev.EndDay.Before(iv.End))
}

// Filter keeps the events that pass both the category and the date stage,
// preserving input order. An empty category set keeps every category and an
// interval that is not closed keeps every date.
func Filter(events []models.Event, cats Categories, iv daterange.Interval) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if cats.Len() > 0 && !cats.Has(ev.Category) {
			continue
		}
		if iv.IsClosed() && !Overlaps(ev, iv) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
