package daterange

// Role is how a day is highlighted on the calendar widget.
type Role string

const (
	RoleRangeStart     Role = "range_start"
	RoleRangeEnd       Role = "range_end"
	RoleRangeMiddle    Role = "range_middle"
	RoleSingleSelected Role = "single_selected"
)

// Display colours used by the period-marking calendar.
const (
	ColorEndpoint = "#ea266d"
	ColorMiddle   = "#f8a5c2"
	ColorText     = "white"
)

// Mark is the highlighting metadata for one calendar day.
type Mark struct {
	Day         Day    `json:"day"`
	Role        Role   `json:"role"`
	StartingDay bool   `json:"startingDay,omitempty"`
	EndingDay   bool   `json:"endingDay,omitempty"`
	Selected    bool   `json:"selected,omitempty"`
	Color       string `json:"color"`
	TextColor   string `json:"textColor"`
}

func newMark(d Day, role Role) Mark {
	m := Mark{Day: d, Role: role, Color: ColorEndpoint, TextColor: ColorText}
	switch role {
	case RoleRangeStart:
		m.StartingDay = true
	case RoleRangeEnd:
		m.EndingDay = true
	case RoleRangeMiddle:
		m.Color = ColorMiddle
	case RoleSingleSelected:
		m.Selected = true
		m.StartingDay = true
		m.EndingDay = true
	}
	return m
}

// MarksFor returns the calendar marks for iv keyed by calendar-day key.
//
// An empty interval has no marks and an open one marks its start as
// single-selected. A closed interval marks every day from start to end
// inclusive; when start == end the only day is a range start.
func MarksFor(iv Interval) (map[string]Mark, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	switch iv.State() {
	case StateIdle:
		return map[string]Mark{}, nil
	case StateOpen:
		return map[string]Mark{
			iv.Start.String(): newMark(iv.Start, RoleSingleSelected),
		}, nil
	}

	n := iv.Len()
	marks := make(map[string]Mark, n)
	for i, d := 0, iv.Start; i < n; i, d = i+1, d.AddDays(1) {
		role := RoleRangeMiddle
		switch {
		case i == 0:
			role = RoleRangeStart
		case i == n-1:
			role = RoleRangeEnd
		}
		marks[d.String()] = newMark(d, role)
	}
	return marks, nil
}
