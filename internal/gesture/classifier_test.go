package gesture

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/wave/internal/detector"
)

func axis(i int, scale float64) detector.Vector {
	var v detector.Vector
	v[i] = scale
	return v
}

func fixtureClassifier(t *testing.T, k int) *Classifier {
	t.Helper()
	thumbsUp := detector.ThumbsUpLandmarks()
	openPalm := detector.OpenPalmLandmarks()
	fist := detector.FistLandmarks()

	c, err := NewClassifier([]Exemplar{
		{LabelID: 0, Vector: openPalm.Features()},
		{LabelID: 1, Vector: fist.Features()},
		{LabelID: 2, Vector: thumbsUp.Features()},
	}, DefaultLabels(), k)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	return c
}

func TestClassifier_Classify(t *testing.T) {
	c := fixtureClassifier(t, 1)

	tests := []struct {
		name string
		hand detector.HandLandmarks
		want Label
	}{
		{"open palm", detector.OpenPalmLandmarks(), "open_hand"},
		{"fist", detector.FistLandmarks(), "fist"},
		{"thumbs up", detector.ThumbsUpLandmarks(), "thumbs_up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.hand.Features())
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got.Label != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.Label)
			}
			if got.Distance > 1e-9 {
				t.Errorf("expected zero distance for exemplar input, got %f", got.Distance)
			}
		})
	}

	t.Run("shifted and scaled input still matches", func(t *testing.T) {
		hand := detector.ThumbsUpLandmarks()
		for i := range hand.Points {
			hand.Points[i].X = hand.Points[i].X*3 + 10
			hand.Points[i].Y = hand.Points[i].Y*3 - 4
			hand.Points[i].Z = hand.Points[i].Z * 3
		}

		got, err := c.Classify(hand.Features())
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got.Label != "thumbs_up" {
			t.Errorf("expected thumbs_up, got %q", got.Label)
		}
	})
}

func TestClassifier_Distance(t *testing.T) {
	c, err := NewClassifier([]Exemplar{
		{LabelID: 0, Vector: axis(0, 1)},
		{LabelID: 1, Vector: axis(1, 1)},
		{LabelID: 2, Vector: axis(2, 1)},
	}, DefaultLabels(), 1)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	got, err := c.Classify(axis(1, 0.6))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.ID != 1 || got.Label != "fist" {
		t.Errorf("expected id 1 fist, got %d %q", got.ID, got.Label)
	}
	if math.Abs(got.Distance-0.4) > 1e-12 {
		t.Errorf("expected distance 0.4, got %f", got.Distance)
	}

	t.Run("zero vector is equidistant and takes first exemplar", func(t *testing.T) {
		var zero detector.Vector
		got, err := c.Classify(zero)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got.ID != 0 {
			t.Errorf("expected first exemplar on tie, got id %d", got.ID)
		}
		if math.Abs(got.Distance-1) > 1e-12 {
			t.Errorf("expected distance 1, got %f", got.Distance)
		}
	})
}

func TestClassifier_Vote(t *testing.T) {
	exemplars := []Exemplar{
		{LabelID: 0, Vector: axis(0, 0.9)},
		{LabelID: 1, Vector: axis(0, 0.8)},
		{LabelID: 1, Vector: axis(0, 0.7)},
		{LabelID: 2, Vector: axis(5, 1)},
	}

	t.Run("majority among k nearest", func(t *testing.T) {
		c, err := NewClassifier(exemplars, DefaultLabels(), 3)
		if err != nil {
			t.Fatalf("NewClassifier() error = %v", err)
		}

		got, err := c.Classify(axis(0, 1))
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got.Label != "fist" {
			t.Errorf("expected majority label fist, got %q", got.Label)
		}
		// Distance still comes from the single nearest exemplar (label 0).
		if math.Abs(got.Distance-0.1) > 1e-12 {
			t.Errorf("expected nearest distance 0.1, got %f", got.Distance)
		}
	})

	t.Run("tie goes to label with closest member", func(t *testing.T) {
		c, err := NewClassifier(exemplars, DefaultLabels(), 2)
		if err != nil {
			t.Fatalf("NewClassifier() error = %v", err)
		}

		got, err := c.Classify(axis(0, 1))
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got.Label != "open_hand" {
			t.Errorf("expected open_hand on tie, got %q", got.Label)
		}
	})

	t.Run("k larger than exemplar set is clamped", func(t *testing.T) {
		c, err := NewClassifier(exemplars, DefaultLabels(), 50)
		if err != nil {
			t.Fatalf("NewClassifier() error = %v", err)
		}
		if _, err := c.Classify(axis(0, 1)); err != nil {
			t.Errorf("Classify() error = %v", err)
		}
	})
}

func TestNewClassifier_Errors(t *testing.T) {
	t.Run("no exemplars", func(t *testing.T) {
		_, err := NewClassifier(nil, DefaultLabels(), 1)
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})

	t.Run("label id missing from table", func(t *testing.T) {
		_, err := NewClassifier([]Exemplar{{LabelID: 7}}, DefaultLabels(), 1)
		if !errors.Is(err, ErrUnmappedLabel) {
			t.Errorf("expected ErrUnmappedLabel, got %v", err)
		}
	})

	t.Run("nil classifier", func(t *testing.T) {
		var c *Classifier
		_, err := c.Classify(detector.Vector{})
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("expected ErrModelUnavailable, got %v", err)
		}
	})
}
