package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per counted gulp; id is the event ID so a retraction can
		// find the row it undoes.
		`CREATE TABLE IF NOT EXISTS drinks (
			id TEXT PRIMARY KEY,
			day TEXT NOT NULL,
			ml INTEGER NOT NULL CHECK(ml >= 0),
			source TEXT NOT NULL CHECK(source IN ('live', 'cached', 'manual', 'none')),
			criteria TEXT NOT NULL DEFAULT '{}',
			occurred_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_drinks_day ON drinks(day, occurred_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
