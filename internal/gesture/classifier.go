package gesture

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/wave/internal/detector"
)

// ErrModelUnavailable is returned when classification is attempted without a
// loaded exemplar set.
var ErrModelUnavailable = errors.New("model unavailable")

// Exemplar is one training vector with its integer label id.
type Exemplar struct {
	LabelID int
	Vector  detector.Vector
}

// Result is the outcome of classifying one vector.
type Result struct {
	ID       int
	Label    Label
	Distance float64 // Euclidean distance to the nearest exemplar
}

// Classifier is a nearest-neighbor classifier over a fixed exemplar set.
// It is read-only after construction and safe for concurrent use.
type Classifier struct {
	exemplars []Exemplar
	labels    LabelMap
	k         int
}

// NewClassifier builds a classifier. Every label id in exemplars must be
// present in labels. k below 1 is treated as 1.
func NewClassifier(exemplars []Exemplar, labels LabelMap, k int) (*Classifier, error) {
	if len(exemplars) == 0 {
		return nil, fmt.Errorf("%w: no exemplars", ErrModelUnavailable)
	}
	for i, ex := range exemplars {
		if _, err := labels.Lookup(ex.LabelID); err != nil {
			return nil, fmt.Errorf("exemplar %d: %w", i, err)
		}
	}
	if k < 1 {
		k = 1
	}
	if k > len(exemplars) {
		k = len(exemplars)
	}

	return &Classifier{
		exemplars: append([]Exemplar(nil), exemplars...),
		labels:    labels,
		k:         k,
	}, nil
}

// Labels returns the label table the classifier resolves names from.
func (c *Classifier) Labels() LabelMap {
	if c == nil {
		return nil
	}
	return c.labels
}

// Len returns the number of exemplars.
func (c *Classifier) Len() int {
	if c == nil {
		return 0
	}
	return len(c.exemplars)
}

type neighbor struct {
	index    int
	distance float64
}

// Classify returns the label of the nearest exemplar and its distance. With
// k > 1 the label is the majority among the k nearest; ties go to the label
// whose closest member is nearest. Distance is always the single nearest.
func (c *Classifier) Classify(v detector.Vector) (Result, error) {
	if c == nil || len(c.exemplars) == 0 {
		return Result{}, ErrModelUnavailable
	}

	neighbors := make([]neighbor, len(c.exemplars))
	for i := range c.exemplars {
		neighbors[i] = neighbor{
			index:    i,
			distance: floats.Distance(v[:], c.exemplars[i].Vector[:], 2),
		}
	}
	// Stable so equal distances keep exemplar order.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})

	id := c.exemplars[neighbors[0].index].LabelID
	if c.k > 1 {
		id = c.vote(neighbors[:c.k])
	}

	label, err := c.labels.Lookup(id)
	if err != nil {
		return Result{}, err
	}
	return Result{ID: id, Label: label, Distance: neighbors[0].distance}, nil
}

// vote expects nearest sorted by ascending distance.
func (c *Classifier) vote(nearest []neighbor) int {
	counts := make(map[int]int, len(nearest))
	var order []int
	for _, n := range nearest {
		id := c.exemplars[n.index].LabelID
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	best := order[0]
	for _, id := range order[1:] {
		if counts[id] > counts[best] {
			best = id
		}
	}
	return best
}
