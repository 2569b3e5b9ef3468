package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Scans table - one row per completed scan cycle
		`CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			change_ratio REAL NOT NULL DEFAULT 0,
			detections INTEGER NOT NULL DEFAULT 0
		)`,

		// Detections table - per-template results of a scan cycle
		`CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
			template TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			positions TEXT NOT NULL DEFAULT '[]',
			error TEXT NOT NULL DEFAULT ''
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_detections_scan_id ON detections(scan_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_started_at ON scans(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
