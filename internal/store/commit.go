package store

import (
	"database/sql"
	"fmt"
)

// RunBatch buffers everything recorded for one run so it can be written in
// a single transaction once the run is complete.
type RunBatch struct {
	Run      Run
	Modules  []ModuleRecord
	Findings []FindingRecord
	Warnings []WarningRecord
}

// CommitRun inserts a RunBatch within a single transaction and returns the
// new run ID. Module, finding and warning RunIDs are assigned here.
//
// Insert order respects FK dependencies:
//  1. Run
//  2. Modules, then their symbols
//  3. Findings
//  4. Warnings
func (s *Store) CommitRun(batch *RunBatch) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("commit run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (started_at, source_root, documents, finding_count, drift_detected)
		 VALUES (?, ?, ?, ?, ?)`,
		batch.Run.StartedAt, batch.Run.SourceRoot, batch.Run.Documents,
		batch.Run.FindingCount, batch.Run.DriftDetected,
	)
	if err != nil {
		return 0, fmt.Errorf("commit run: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("commit run: run id: %w", err)
	}

	for i := range batch.Modules {
		m := &batch.Modules[i]
		m.RunID = runID
		if err := insertModuleTx(tx, m); err != nil {
			return 0, fmt.Errorf("commit run: module %q: %w", m.Path, err)
		}
	}
	for i := range batch.Findings {
		f := &batch.Findings[i]
		f.RunID = runID
		if err := insertFindingTx(tx, f); err != nil {
			return 0, fmt.Errorf("commit run: finding: %w", err)
		}
	}
	for i := range batch.Warnings {
		w := &batch.Warnings[i]
		w.RunID = runID
		if err := insertWarningTx(tx, w); err != nil {
			return 0, fmt.Errorf("commit run: warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	batch.Run.ID = runID
	return runID, nil
}

func insertModuleTx(tx *sql.Tx, m *ModuleRecord) error {
	res, err := tx.Exec(
		`INSERT INTO modules (run_id, path, file, is_package, open) VALUES (?, ?, ?, ?, ?)`,
		m.RunID, m.Path, m.File, m.IsPackage, m.Open,
	)
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	for _, name := range m.Symbols {
		if _, err := tx.Exec(`INSERT INTO symbols (module_id, name) VALUES (?, ?)`, m.ID, name); err != nil {
			return fmt.Errorf("symbol %q: %w", name, err)
		}
	}
	return nil
}

func insertFindingTx(tx *sql.Tx, f *FindingRecord) error {
	var symbol any
	if f.Symbol != "" {
		symbol = f.Symbol
	}
	res, err := tx.Exec(
		`INSERT INTO findings (run_id, doc_file, line, module, symbol, classification, suppressed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.DocFile, f.Line, f.Module, symbol, f.Classification, f.Suppressed,
	)
	if err != nil {
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}

func insertWarningTx(tx *sql.Tx, w *WarningRecord) error {
	res, err := tx.Exec(
		`INSERT INTO warnings (run_id, kind, file, line, message) VALUES (?, ?, ?, ?, ?)`,
		w.RunID, w.Kind, w.File, w.Line, w.Message,
	)
	if err != nil {
		return err
	}
	w.ID, err = res.LastInsertId()
	return err
}
