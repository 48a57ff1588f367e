package gesture

import (
	"fmt"
	"time"
)

// Policy selects when the debouncer may fire.
type Policy string

const (
	// PolicyCooldown fires whenever the cooldown has elapsed since the last
	// emission, even for the same label.
	PolicyCooldown Policy = "cooldown"
	// PolicyLabelChange also requires the label to differ from the last one
	// emitted.
	PolicyLabelChange Policy = "label-change"
)

// DefaultCooldown is the minimum gap between two emissions from one hand.
const DefaultCooldown = 750 * time.Millisecond

// ParsePolicy converts a policy name. The empty string selects PolicyCooldown.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyCooldown:
		return PolicyCooldown, nil
	case PolicyLabelChange:
		return PolicyLabelChange, nil
	}
	return "", fmt.Errorf("unknown debounce policy %q", s)
}

// DebounceState is the last emission of one debouncer. Fired is false until
// the first emission, which stands in for a last time of minus infinity.
type DebounceState struct {
	Label Label
	Time  time.Time
	Fired bool
}

// Debouncer suppresses repeated events for one hand stream. It is not safe
// for concurrent use; each hand gets its own.
type Debouncer struct {
	hand     string
	cooldown time.Duration
	policy   Policy
	state    DebounceState
}

// NewDebouncer creates a debouncer for the given hand key.
func NewDebouncer(hand string, cooldown time.Duration, policy Policy) *Debouncer {
	if policy == "" {
		policy = PolicyCooldown
	}
	return &Debouncer{
		hand:     hand,
		cooldown: cooldown,
		policy:   policy,
	}
}

// Observe feeds one gated label observed at now. It returns the event and
// true when the observation fires; state changes only in that case.
func (d *Debouncer) Observe(label Label, now time.Time) (Event, bool) {
	if label == Unknown || label == "" {
		return Event{}, false
	}

	if d.state.Fired {
		if now.Sub(d.state.Time) <= d.cooldown {
			return Event{}, false
		}
		if d.policy == PolicyLabelChange && label == d.state.Label {
			return Event{}, false
		}
	}

	d.state = DebounceState{Label: label, Time: now, Fired: true}
	return Event{
		ID:    NewEventID(now),
		Label: label,
		Hand:  d.hand,
		Time:  now,
	}, true
}

// State returns a copy of the current state.
func (d *Debouncer) State() DebounceState {
	return d.state
}

// Hand returns the hand key the debouncer was created for.
func (d *Debouncer) Hand() string {
	return d.hand
}
