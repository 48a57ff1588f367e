package gesture

import "math"

// Gate accepts a classification when its distance is within threshold and
// returns Unknown otherwise. The boundary is inclusive.
func Gate(r Result, threshold float64) Label {
	if math.IsNaN(r.Distance) || r.Distance > threshold {
		return Unknown
	}
	return r.Label
}
