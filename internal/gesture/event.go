package gesture

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event is a confirmed, debounced gesture occurrence.
type Event struct {
	ID    string    `json:"id"`
	Label Label     `json:"label"`
	Hand  string    `json:"hand"`
	Time  time.Time `json:"time"`
}

// NewEventID returns a lexically sortable ID for an event fired at t.
func NewEventID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		// Times before the Unix epoch cannot be encoded.
		return ulid.Make().String()
	}
	return id.String()
}
