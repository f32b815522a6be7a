package store

import "time"

// Run is one recorded docdrift invocation.
type Run struct {
	ID            int64
	StartedAt     time.Time
	SourceRoot    string
	Documents     int
	FindingCount  int
	DriftDetected bool
}

// ModuleRecord is a Source Symbol Index entry as stored for a run.
type ModuleRecord struct {
	ID        int64
	RunID     int64
	Path      string
	File      string
	IsPackage bool
	Open      bool
	Symbols   []string
}

// FindingRecord is a stored finding.
type FindingRecord struct {
	ID             int64
	RunID          int64
	DocFile        string
	Line           int
	Module         string
	Symbol         string
	Classification string
	Suppressed     bool
}

// WarningRecord is a stored skipped-file or parse warning.
type WarningRecord struct {
	ID      int64
	RunID   int64
	Kind    string
	File    string
	Line    int
	Message string
}
