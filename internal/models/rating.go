package models

import "math"

// MaxStars is the size of the rating scale.
const MaxStars = 5

// Stars is the star-widget breakdown of a rating.
type Stars struct {
	Full  int  `json:"full"`
	Half  bool `json:"half"`
	Empty int  `json:"empty"`
}

// StarsFor splits rating into full, half and empty stars. Any fractional
// part counts as a half star. Ratings outside 0..5 are clamped.
func StarsFor(rating float64) Stars {
	r := math.Max(0, math.Min(MaxStars, rating))
	full := int(math.Floor(r))
	half := r != math.Floor(r)
	empty := MaxStars - full
	if half {
		empty--
	}
	return Stars{Full: full, Half: half, Empty: empty}
}
