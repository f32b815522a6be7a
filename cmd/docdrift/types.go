package main

import "time"

// CLIReport is the JSON envelope printed by check.
type CLIReport struct {
	DriftDetected bool         `json:"drift_detected"`
	Drifts        []CLIDrift   `json:"drifts"`
	Suppressed    int          `json:"suppressed,omitempty"`
	Warnings      []CLIWarning `json:"warnings,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// CLIDrift is a JSON-friendly finding.
type CLIDrift struct {
	Symbol         string `json:"symbol"`
	Module         string `json:"module"`
	Line           int    `json:"line"`
	DocFile        string `json:"doc_file"`
	Classification string `json:"classification"`
}

// CLIWarning is a JSON-friendly warning.
type CLIWarning struct {
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// CLIIndex is the JSON output of the index command.
type CLIIndex struct {
	Root     string       `json:"root"`
	Modules  []CLIModule  `json:"modules"`
	Warnings []CLIWarning `json:"warnings,omitempty"`
}

// CLIModule is a JSON-friendly index entry.
type CLIModule struct {
	Path      string   `json:"path"`
	File      string   `json:"file"`
	IsPackage bool     `json:"is_package"`
	Open      bool     `json:"open"`
	Symbols   []string `json:"symbols"`
}

// CLIRun is a JSON-friendly recorded run.
type CLIRun struct {
	ID            int64     `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	SourceRoot    string    `json:"source_root"`
	Documents     int       `json:"documents"`
	FindingCount  int       `json:"finding_count"`
	DriftDetected bool      `json:"drift_detected"`
}

// CLIRunDetail is the JSON output of history <run-id>.
type CLIRunDetail struct {
	RunID    int64              `json:"run_id"`
	Findings []CLIStoredFinding `json:"findings"`
	Warnings []CLIWarning       `json:"warnings,omitempty"`
}

// CLIStoredFinding is a recorded finding with its suppression flag.
type CLIStoredFinding struct {
	CLIDrift
	Suppressed bool `json:"suppressed"`
}
