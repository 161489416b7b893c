package daterange

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidInterval is returned when a closed interval ends before it starts.
var ErrInvalidInterval = errors.New("invalid interval: end before start")

// State is the position of an interval in the selection flow
// Idle -> Open -> Closed -> (next tap) Open.
type State string

const (
	StateIdle   State = "idle"
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Interval is a selection of days. The zero value is the empty selection.
// A zero End means the interval is open: one day picked, awaiting the
// second tap.
type Interval struct {
	Start Day
	End   Day
}

// Single returns the open interval anchored at d.
func Single(d Day) Interval {
	return Interval{Start: d}
}

// Closed returns the closed interval [start, end]. It does not reorder its
// arguments; call Validate to check the ordering.
func Closed(start, end Day) Interval {
	return Interval{Start: start, End: end}
}

// IsEmpty reports whether nothing is selected.
func (iv Interval) IsEmpty() bool { return iv.Start.IsZero() }

// IsOpen reports whether only the start day is selected.
func (iv Interval) IsOpen() bool { return !iv.Start.IsZero() && iv.End.IsZero() }

// IsClosed reports whether both endpoints are selected.
func (iv Interval) IsClosed() bool { return !iv.Start.IsZero() && !iv.End.IsZero() }

// State returns the selection-flow state of iv.
func (iv Interval) State() State {
	switch {
	case iv.IsClosed():
		return StateClosed
	case iv.IsOpen():
		return StateOpen
	}
	return StateIdle
}

// Validate returns ErrInvalidInterval for a closed interval whose end is
// before its start, and for an end without a start.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() && !iv.End.IsZero() {
		return fmt.Errorf("%w: end %s without start", ErrInvalidInterval, iv.End)
	}
	if iv.IsClosed() && iv.End.Before(iv.Start) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidInterval, iv.Start, iv.End)
	}
	return nil
}

// Len returns the number of days in a closed interval, 1 for an open one
// and 0 for the empty one.
func (iv Interval) Len() int {
	switch iv.State() {
	case StateClosed:
		return iv.Start.DaysUntil(iv.End) + 1
	case StateOpen:
		return 1
	}
	return 0
}

// Contains reports whether d lies inside a closed interval, endpoints
// included. Open and empty intervals contain nothing.
func (iv Interval) Contains(d Day) bool {
	if !iv.IsClosed() {
		return false
	}
	return !d.Before(iv.Start) && !d.After(iv.End)
}

// String renders the interval as "start..end", "start.." or "".
func (iv Interval) String() string {
	switch iv.State() {
	case StateClosed:
		return iv.Start.String() + ".." + iv.End.String()
	case StateOpen:
		return iv.Start.String() + ".."
	}
	return ""
}

type intervalJSON struct {
	Start *Day `json:"start"`
	End   *Day `json:"end"`
}

// MarshalJSON encodes absent endpoints as null.
func (iv Interval) MarshalJSON() ([]byte, error) {
	var out intervalJSON
	if !iv.Start.IsZero() {
		s := iv.Start
		out.Start = &s
	}
	if !iv.End.IsZero() {
		e := iv.End
		out.End = &e
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts null, missing or empty endpoints as absent.
func (iv *Interval) UnmarshalJSON(b []byte) error {
	var in intervalJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*iv = Interval{}
	if in.Start != nil {
		iv.Start = *in.Start
	}
	if in.End != nil {
		iv.End = *in.End
	}
	return nil
}

// Select applies a day tap to the current selection:
//
//   - empty or closed selection: start over at day;
//   - open selection: close it, swapping endpoints when day precedes the
//     start so that Start <= End always holds.
//
// Tapping the start day again closes a one-day interval.
func Select(day Day, current Interval) Interval {
	if current.IsEmpty() || current.IsClosed() {
		return Single(day)
	}
	if day.Before(current.Start) {
		return Closed(day, current.Start)
	}
	return Closed(current.Start, day)
}
