package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/wave/internal/gesture"
)

// EventRepository journals fired gesture events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Record inserts ev. Recording the same ID twice is a no-op.
func (r *EventRepository) Record(ev gesture.Event) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO events (id, label, hand, fired_at) VALUES (?, ?, ?, ?)`,
		ev.ID, string(ev.Label), ev.Hand, ev.Time.UTC(),
	)
	return err
}

// Recent returns up to limit events, newest first.
func (r *EventRepository) Recent(limit int) ([]gesture.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, label, hand, fired_at FROM events ORDER BY fired_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []gesture.Event
	for rows.Next() {
		var ev gesture.Event
		var label string
		var firedAt time.Time
		if err := rows.Scan(&ev.ID, &label, &ev.Hand, &firedAt); err != nil {
			return nil, err
		}
		ev.Label = gesture.Label(label)
		ev.Time = firedAt
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByLabel returns how many events each label has fired.
func (r *EventRepository) CountByLabel() (map[gesture.Label]int, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM events GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[gesture.Label]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[gesture.Label(label)] = n
	}
	return counts, rows.Err()
}
