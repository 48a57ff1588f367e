package detector

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WireHand is the JSON shape of one hand as emitted by the landmark service
// and stored in replay files.
type WireHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

// ToHandLandmarks validates the point count and converts to HandLandmarks.
func (h WireHand) ToHandLandmarks() (HandLandmarks, error) {
	lm, err := FromPoints(h.Points, h.Handedness, h.Score)
	if err != nil {
		return lm, fmt.Errorf("%w: got %d points, want %d", err, len(h.Points), NumLandmarks)
	}
	return lm, nil
}

// NewWireHand converts landmarks back to their JSON shape.
func NewWireHand(h HandLandmarks) WireHand {
	return WireHand{
		Points:     append([]Point3D(nil), h.Points[:]...),
		Handedness: h.Handedness,
		Score:      h.Score,
	}
}

// DecodeHands parses a service response line of the form {"hands": [...]}.
// Hands with the wrong number of points are dropped and reported through
// the returned error alongside the valid ones.
func DecodeHands(line []byte) ([]HandLandmarks, error) {
	var response struct {
		Hands []WireHand `json:"hands"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := make([]HandLandmarks, 0, len(response.Hands))
	var firstErr error
	for _, h := range response.Hands {
		lm, err := h.ToHandLandmarks()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result = append(result, lm)
	}
	return result, firstErr
}
