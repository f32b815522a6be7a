package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite export target for docdrift runs. It is write-mostly:
// analysis never reads earlier runs back.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              INTEGER PRIMARY KEY,
  started_at      TIMESTAMP NOT NULL,
  source_root     TEXT NOT NULL,
  documents       INTEGER NOT NULL DEFAULT 0,
  finding_count   INTEGER NOT NULL DEFAULT 0,
  drift_detected  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS modules (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  path            TEXT NOT NULL,
  file            TEXT NOT NULL,
  is_package      BOOLEAN NOT NULL DEFAULT FALSE,
  open            BOOLEAN NOT NULL DEFAULT FALSE,
  UNIQUE (run_id, path)
);

CREATE TABLE IF NOT EXISTS symbols (
  id              INTEGER PRIMARY KEY,
  module_id       INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
  name            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  doc_file        TEXT NOT NULL,
  line            INTEGER NOT NULL,
  module          TEXT NOT NULL,
  symbol          TEXT,
  classification  TEXT NOT NULL,
  suppressed      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS warnings (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  kind            TEXT NOT NULL,
  file            TEXT NOT NULL,
  line            INTEGER,
  message         TEXT
);

CREATE INDEX IF NOT EXISTS idx_modules_run ON modules(run_id);
CREATE INDEX IF NOT EXISTS idx_symbols_module ON symbols(module_id);
CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
CREATE INDEX IF NOT EXISTS idx_warnings_run ON warnings(run_id);
`

// Runs returns all recorded runs, newest first.
func (s *Store) Runs() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, source_root, documents, finding_count, drift_detected
		 FROM runs ORDER BY started_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.SourceRoot, &r.Documents, &r.FindingCount, &r.DriftDetected); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FindingsByRun returns a run's findings ordered by document and line.
func (s *Store) FindingsByRun(runID int64) ([]*FindingRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, doc_file, line, module, COALESCE(symbol, ''), classification, suppressed
		 FROM findings WHERE run_id = ? ORDER BY doc_file, line, module, symbol`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []*FindingRecord
	for rows.Next() {
		f := &FindingRecord{}
		if err := rows.Scan(&f.ID, &f.RunID, &f.DocFile, &f.Line, &f.Module, &f.Symbol, &f.Classification, &f.Suppressed); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// WarningsByRun returns a run's warnings ordered by file and line.
func (s *Store) WarningsByRun(runID int64) ([]*WarningRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, kind, file, COALESCE(line, 0), COALESCE(message, '')
		 FROM warnings WHERE run_id = ? ORDER BY file, line`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	defer rows.Close()

	var out []*WarningRecord
	for rows.Next() {
		w := &WarningRecord{}
		if err := rows.Scan(&w.ID, &w.RunID, &w.Kind, &w.File, &w.Line, &w.Message); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ModulesByRun returns a run's modules with their symbols, ordered by path.
func (s *Store) ModulesByRun(runID int64) ([]*ModuleRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, path, file, is_package, open
		 FROM modules WHERE run_id = ? ORDER BY path`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	var out []*ModuleRecord
	byID := make(map[int64]*ModuleRecord)
	for rows.Next() {
		m := &ModuleRecord{}
		if err := rows.Scan(&m.ID, &m.RunID, &m.Path, &m.File, &m.IsPackage, &m.Open); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		out = append(out, m)
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	symRows, err := s.db.Query(
		`SELECT s.module_id, s.name FROM symbols s
		 JOIN modules m ON m.id = s.module_id
		 WHERE m.run_id = ? ORDER BY s.module_id, s.name`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer symRows.Close()
	for symRows.Next() {
		var moduleID int64
		var name string
		if err := symRows.Scan(&moduleID, &name); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		if m, ok := byID[moduleID]; ok {
			m.Symbols = append(m.Symbols, name)
		}
	}
	return out, symRows.Err()
}
