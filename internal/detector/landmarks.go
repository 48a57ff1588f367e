// Package detector provides hand landmark types, the landmark normalizer and
// the hand detector interface.
package detector

import (
	"errors"
	"math"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// VectorLen is the length of a flattened feature vector.
const VectorLen = NumLandmarks * 3

// ErrMalformedHand is returned when decoded hand data does not carry exactly
// NumLandmarks points.
var ErrMalformedHand = errors.New("malformed hand landmarks")

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Norm returns the Euclidean length of p without intermediate overflow or
// underflow.
func (p Point3D) Norm() float64 {
	return math.Hypot(math.Hypot(p.X, p.Y), p.Z)
}

// HandLandmarks represents the 21 world landmarks of one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Vector is a flattened, normalized hand: x0, y0, z0, x1, ... in joint order.
type Vector [VectorLen]float64

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	for _, c := range v {
		if c != 0 {
			return false
		}
	}
	return true
}

// Normalize returns a copy of the hand translated so the centroid of its
// points is the origin and scaled so the farthest point lies at distance 1.
// When every point coincides the translated points are all zero and no
// scaling is applied.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	if h.coincident() {
		return normalized
	}

	// Summing pre-divided terms keeps the centroid finite near MaxFloat64.
	n := float64(NumLandmarks)
	var cx, cy, cz float64
	for i := 0; i < NumLandmarks; i++ {
		cx += h.Points[i].X / n
		cy += h.Points[i].Y / n
		cz += h.Points[i].Z / n
	}

	var maxDist float64
	for i := 0; i < NumLandmarks; i++ {
		p := Point3D{
			X: h.Points[i].X - cx,
			Y: h.Points[i].Y - cy,
			Z: h.Points[i].Z - cz,
		}
		normalized.Points[i] = p
		if d := p.Norm(); d > maxDist {
			maxDist = d
		}
	}

	if maxDist > 0 {
		for i := 0; i < NumLandmarks; i++ {
			normalized.Points[i].X /= maxDist
			normalized.Points[i].Y /= maxDist
			normalized.Points[i].Z /= maxDist
		}
	}

	return normalized
}

// coincident reports whether every point equals the first. The centroid of
// such a hand is not computed exactly in floating point.
func (h *HandLandmarks) coincident() bool {
	for i := 1; i < NumLandmarks; i++ {
		if h.Points[i] != h.Points[0] {
			return false
		}
	}
	return true
}

// Flatten writes the points in joint order into a Vector without normalizing.
func (h *HandLandmarks) Flatten() Vector {
	var v Vector
	for i, p := range h.Points {
		v[i*3] = p.X
		v[i*3+1] = p.Y
		v[i*3+2] = p.Z
	}
	return v
}

// Features normalizes the hand and returns its feature vector.
func (h *HandLandmarks) Features() Vector {
	return h.Normalize().Flatten()
}

// FromPoints builds HandLandmarks from a decoded point list, which must hold
// exactly NumLandmarks points.
func FromPoints(points []Point3D, handedness string, score float64) (HandLandmarks, error) {
	lm := HandLandmarks{Handedness: handedness, Score: score}
	if len(points) != NumLandmarks {
		return lm, ErrMalformedHand
	}
	copy(lm.Points[:], points)
	return lm, nil
}
