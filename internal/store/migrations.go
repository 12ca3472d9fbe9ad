package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Intents table - stores declarative intent definitions. The
		// pattern column holds the expression's serialized wire form.
		`CREATE TABLE IF NOT EXISTS intents (
			id TEXT PRIMARY KEY,
			pattern TEXT NOT NULL,
			min_duration_ms INTEGER NOT NULL DEFAULT 100,
			max_gap_ms INTEGER NOT NULL DEFAULT 200,
			res_group TEXT NOT NULL DEFAULT 'default',
			priority INTEGER NOT NULL DEFAULT 0,
			concurrency_scope TEXT NOT NULL DEFAULT 'global' CHECK(concurrency_scope IN ('per-hand', 'global')),
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Bindings table - maps (intent, lifecycle phase) to a plugin action
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			intent_id TEXT NOT NULL REFERENCES intents(id) ON DELETE CASCADE,
			phase TEXT NOT NULL CHECK(phase IN ('start', 'update', 'end')),
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Events table - diagnostic log of emitted lifecycle events,
		// written by the recorder subscriber. No foreign key: the log
		// outlives intent deletion.
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			intent_id TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_bindings_intent_id ON bindings(intent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_intent_id ON events(intent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_instance_id ON events(instance_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
