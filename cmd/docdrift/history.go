package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/docdrift/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List runs recorded with --db",
	Long:  "Without arguments, lists the recorded runs, newest first. With a run ID, prints that run's findings and warnings.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError(err)
	}
	s, err := openStore(cfg.DB)
	if err != nil {
		return outputError(err)
	}
	defer s.Close()

	if len(args) == 0 {
		runs, err := s.Runs()
		if err != nil {
			return outputError(err)
		}
		out := make([]CLIRun, 0, len(runs))
		for _, r := range runs {
			out = append(out, runToCLI(r))
		}
		if cfg.Format == "text" {
			formatRunsText(os.Stdout, out)
			return nil
		}
		return writeJSON(os.Stdout, out)
	}

	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return outputError(fmt.Errorf("invalid run ID %q: must be an integer", args[0]))
	}
	findings, err := s.FindingsByRun(runID)
	if err != nil {
		return outputError(err)
	}
	warnings, err := s.WarningsByRun(runID)
	if err != nil {
		return outputError(err)
	}

	detail := CLIRunDetail{RunID: runID}
	for _, f := range findings {
		detail.Findings = append(detail.Findings, CLIStoredFinding{
			CLIDrift: CLIDrift{
				Symbol:         f.Symbol,
				Module:         f.Module,
				Line:           f.Line,
				DocFile:        f.DocFile,
				Classification: f.Classification,
			},
			Suppressed: f.Suppressed,
		})
	}
	for _, w := range warnings {
		detail.Warnings = append(detail.Warnings, CLIWarning{Kind: w.Kind, File: w.File, Line: w.Line, Message: w.Message})
	}
	if cfg.Format == "text" {
		formatRunDetailText(os.Stdout, detail)
		return nil
	}
	return writeJSON(os.Stdout, detail)
}

// openStore opens an existing run database.
func openStore(dbPath string) (*store.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("no database configured (use --db or the db config key)")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'docdrift check --db %s' first)", dbPath, dbPath)
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func runToCLI(r *store.Run) CLIRun {
	return CLIRun{
		ID:            r.ID,
		StartedAt:     r.StartedAt,
		SourceRoot:    r.SourceRoot,
		Documents:     r.Documents,
		FindingCount:  r.FindingCount,
		DriftDetected: r.DriftDetected,
	}
}
