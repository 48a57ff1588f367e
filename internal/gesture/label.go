// Package gesture classifies normalized hand vectors into a closed set of
// labels and turns the gated stream into debounced gesture events.
package gesture

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Label is a gesture name from the configured label table, or Unknown.
type Label string

// Unknown is the gated label for classifications that were not confident.
const Unknown Label = "unknown"

const (
	MinLabels = 3
	MaxLabels = 8
)

// ErrUnmappedLabel is returned when a label id has no entry in the table.
var ErrUnmappedLabel = errors.New("unmapped label id")

// LabelMap maps the integer ids stored in the model to gesture names.
type LabelMap map[int]Label

// DefaultLabels returns the label table used when neither the model nor the
// configuration provides one.
func DefaultLabels() LabelMap {
	return LabelMap{
		0: "open_hand",
		1: "fist",
		2: "thumbs_up",
	}
}

// ParseLabelMap parses "0:open_hand,1:fist,2:thumbs_up".
func ParseLabelMap(s string) (LabelMap, error) {
	m := make(LabelMap)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idStr, name, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("label entry %q: expected id:name", part)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idStr))
		if err != nil {
			return nil, fmt.Errorf("label entry %q: %w", part, err)
		}
		if _, dup := m[id]; dup {
			return nil, fmt.Errorf("label id %d listed twice", id)
		}
		m[id] = Label(strings.TrimSpace(name))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the size of the table and that names are usable and distinct.
func (m LabelMap) Validate() error {
	if len(m) < MinLabels || len(m) > MaxLabels {
		return fmt.Errorf("label table has %d entries, want %d-%d", len(m), MinLabels, MaxLabels)
	}
	seen := make(map[Label]int, len(m))
	for _, id := range m.IDs() {
		name := m[id]
		if name == "" {
			return fmt.Errorf("label id %d has an empty name", id)
		}
		if name == Unknown {
			return fmt.Errorf("label id %d uses reserved name %q", id, Unknown)
		}
		if other, dup := seen[name]; dup {
			return fmt.Errorf("label %q used by ids %d and %d", name, other, id)
		}
		seen[name] = id
	}
	return nil
}

// Lookup resolves an id to its name.
func (m LabelMap) Lookup(id int) (Label, error) {
	name, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnmappedLabel, id)
	}
	return name, nil
}

// IDs returns the label ids in ascending order.
func (m LabelMap) IDs() []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// String formats the table in the form accepted by ParseLabelMap.
func (m LabelMap) String() string {
	parts := make([]string, 0, len(m))
	for _, id := range m.IDs() {
		parts = append(parts, fmt.Sprintf("%d:%s", id, m[id]))
	}
	return strings.Join(parts, ",")
}
