package store

import (
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/ayusman/wave/internal/detector"
	"github.com/ayusman/wave/internal/gesture"
)

// ModelRepository reads and writes the label table and exemplar vectors.
type ModelRepository struct {
	db *sql.DB
}

// Model returns the model repository for this store.
func (s *Store) Model() *ModelRepository {
	return &ModelRepository{db: s.db}
}

// Labels returns the label table.
func (r *ModelRepository) Labels() (gesture.LabelMap, error) {
	rows, err := r.db.Query(`SELECT id, name FROM labels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make(gesture.LabelMap)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		labels[id] = gesture.Label(name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// Exemplars returns every stored vector in insertion order.
func (r *ModelRepository) Exemplars() ([]gesture.Exemplar, error) {
	rows, err := r.db.Query(`SELECT id, label_id, vector FROM exemplars ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exemplars []gesture.Exemplar
	for rows.Next() {
		var id int64
		var ex gesture.Exemplar
		var raw string
		if err := rows.Scan(&id, &ex.LabelID, &raw); err != nil {
			return nil, err
		}
		v, err := decodeVector([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("exemplar %d: %w", id, err)
		}
		ex.Vector = v
		exemplars = append(exemplars, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return exemplars, nil
}

// Counts returns the number of exemplars per label id.
func (r *ModelRepository) Counts() (map[int]int, error) {
	rows, err := r.db.Query(`SELECT label_id, COUNT(*) FROM exemplars GROUP BY label_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var id, n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Import replaces the label table and exemplars in one transaction.
// progress, when set, is called after each exemplar is written.
func (r *ModelRepository) Import(labels gesture.LabelMap, exemplars []gesture.Exemplar, progress func()) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exemplars`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM labels`); err != nil {
		return err
	}

	for _, id := range labels.IDs() {
		if _, err := tx.Exec(`INSERT INTO labels (id, name) VALUES (?, ?)`, id, string(labels[id])); err != nil {
			return fmt.Errorf("insert label %d: %w", id, err)
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO exemplars (label_id, vector) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ex := range exemplars {
		raw, err := jsoniter.Marshal(ex.Vector[:])
		if err != nil {
			return fmt.Errorf("encode exemplar %d: %w", i, err)
		}
		if _, err := stmt.Exec(ex.LabelID, string(raw)); err != nil {
			return fmt.Errorf("insert exemplar %d: %w", i, err)
		}
		if progress != nil {
			progress()
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		SettingModelImportedAt, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}

	return tx.Commit()
}

func decodeVector(raw []byte) (detector.Vector, error) {
	var v detector.Vector
	var values []float64
	if err := jsoniter.Unmarshal(raw, &values); err != nil {
		return v, fmt.Errorf("decode vector: %w", err)
	}
	if len(values) != detector.VectorLen {
		return v, fmt.Errorf("vector has %d components, want %d", len(values), detector.VectorLen)
	}
	copy(v[:], values)
	return v, nil
}

// LoadedModel is a classifier together with the label table it resolves.
type LoadedModel struct {
	Classifier *gesture.Classifier
	Labels     gesture.LabelMap
	Exemplars  int
}

// LoadModel opens the model artifact at path and builds a classifier. The
// file must already exist. A non-empty override replaces the stored label
// table and must cover every label id used by the exemplars. All failures
// wrap gesture.ErrModelUnavailable.
func LoadModel(path string, override gesture.LabelMap, k int) (*LoadedModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(gesture.ErrModelUnavailable, "model %s: %v", path, err)
	}

	s, err := New(path)
	if err != nil {
		return nil, errors.Wrapf(gesture.ErrModelUnavailable, "open model %s: %v", path, err)
	}
	defer s.Close()

	labels, err := s.Model().Labels()
	if err != nil {
		return nil, errors.Wrapf(gesture.ErrModelUnavailable, "read labels: %v", err)
	}
	if len(override) > 0 {
		labels = override
	}
	if err := labels.Validate(); err != nil {
		return nil, errors.Wrapf(gesture.ErrModelUnavailable, "label table: %v", err)
	}

	exemplars, err := s.Model().Exemplars()
	if err != nil {
		return nil, errors.Wrapf(gesture.ErrModelUnavailable, "read exemplars: %v", err)
	}

	classifier, err := gesture.NewClassifier(exemplars, labels, k)
	if err != nil {
		if errors.Is(err, gesture.ErrModelUnavailable) {
			return nil, errors.Wrapf(err, "model %s", path)
		}
		return nil, errors.Wrapf(gesture.ErrModelUnavailable, "model %s: %v", path, err)
	}

	return &LoadedModel{
		Classifier: classifier,
		Labels:     labels,
		Exemplars:  len(exemplars),
	}, nil
}

// ModelDump is the JSON exchange format accepted by model import:
// {"labels": {"0": "open_hand", ...}, "exemplars": [{"label": 0, "vector": [...]}]}.
type ModelDump struct {
	Labels    map[string]string `json:"labels"`
	Exemplars []struct {
		Label  int       `json:"label"`
		Vector []float64 `json:"vector"`
	} `json:"exemplars"`
}

// DecodeModelDump parses and validates a dump.
func DecodeModelDump(data []byte) (gesture.LabelMap, []gesture.Exemplar, error) {
	var dump ModelDump
	if err := jsoniter.Unmarshal(data, &dump); err != nil {
		return nil, nil, errors.Wrap(err, "parse model dump")
	}

	labels := make(gesture.LabelMap, len(dump.Labels))
	keys := make([]string, 0, len(dump.Labels))
	for k := range dump.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, nil, errors.Errorf("label id %q is not an integer", k)
		}
		labels[id] = gesture.Label(dump.Labels[k])
	}
	if err := labels.Validate(); err != nil {
		return nil, nil, err
	}

	exemplars := make([]gesture.Exemplar, 0, len(dump.Exemplars))
	for i, e := range dump.Exemplars {
		if len(e.Vector) != detector.VectorLen {
			return nil, nil, errors.Errorf("exemplar %d has %d components, want %d", i, len(e.Vector), detector.VectorLen)
		}
		if _, err := labels.Lookup(e.Label); err != nil {
			return nil, nil, errors.Wrapf(err, "exemplar %d", i)
		}
		var ex gesture.Exemplar
		ex.LabelID = e.Label
		copy(ex.Vector[:], e.Vector)
		exemplars = append(exemplars, ex)
	}
	if len(exemplars) == 0 {
		return nil, nil, errors.New("model dump has no exemplars")
	}

	return labels, exemplars, nil
}
