package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per periodic garden save
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			theme TEXT NOT NULL,
			species TEXT NOT NULL,
			flower_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS snapshot_flowers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			flower_id TEXT NOT NULL,
			rel_x REAL NOT NULL,
			max_height REAL NOT NULL,
			current_height REAL NOT NULL,
			bloom_progress REAL NOT NULL,
			species TEXT NOT NULL,
			color TEXT NOT NULL,
			secondary_color TEXT NOT NULL,
			stem TEXT NOT NULL DEFAULT '[]',
			planted_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS captions (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			flower_count INTEGER NOT NULL,
			locale TEXT NOT NULL DEFAULT 'en',
			theme TEXT NOT NULL DEFAULT '',
			fallback INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS keepsakes (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			flower_count INTEGER NOT NULL,
			theme TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Plugin actions bound to garden events
		`CREATE TABLE IF NOT EXISTS hooks (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL CHECK(event IN ('planted', 'bloomed', 'cleared', 'captioned', 'keepsake')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_snapshot_flowers_snapshot_id ON snapshot_flowers(snapshot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_captions_created_at ON captions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_hooks_event ON hooks(event)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
