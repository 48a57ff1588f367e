package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Label table of the model artifact
		`CREATE TABLE IF NOT EXISTS labels (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,

		// Normalized training vectors, stored as a JSON array of 63 floats
		`CREATE TABLE IF NOT EXISTS exemplars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label_id INTEGER NOT NULL REFERENCES labels(id) ON DELETE CASCADE,
			vector TEXT NOT NULL
		)`,

		// Journal of fired gesture events
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			hand TEXT NOT NULL,
			fired_at DATETIME NOT NULL
		)`,

		// Plugin actions to run when a gesture fires
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Key-value metadata, e.g. where a model was imported from
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_exemplars_label_id ON exemplars(label_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_fired_at ON events(fired_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
