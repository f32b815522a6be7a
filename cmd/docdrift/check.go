package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/docdrift"
	"github.com/jward/docdrift/internal/store"
)

var flagJSON bool

var checkCmd = &cobra.Command{
	Use:   "check <doc>...",
	Short: "Check documentation files for drift",
	Long: `Scans the Python code blocks of each documentation file and verifies that
the project-local modules and names they import exist under --src.

Exit codes:
  0  no drift detected
  1  drift detected
  2  configuration or input error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.StringSliceP("package", "p", nil, "project package name (repeatable); imports under it are always checked")
	f.String("relative-root", "", "dotted package that relative imports in examples are relative to (\"\" = source root)")
	f.StringSlice("lang", nil, "fence info strings treated as Python (default python,py,python3,py3)")
	f.StringSlice("rules", nil, "Risor suppression rule script (repeatable)")
	f.StringArray("rule", nil, "inline Risor suppression expression (repeatable)")
	f.BoolVar(&flagJSON, "json", false, "shorthand for --format json")
}

func runCheck(cmd *cobra.Command, args []string) error {
	started := time.Now()
	if flagJSON {
		if err := cmd.Flags().Set("format", "json"); err != nil {
			return err
		}
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError(err)
	}
	logger := newLogger(os.Stderr, cfg)

	opts := []docdrift.Option{
		docdrift.WithLogger(logger),
		docdrift.WithWorkers(cfg.Workers),
		docdrift.WithSourceFileLimit(cfg.MaxFileSize),
		docdrift.WithLanguageTags(cfg.Languages...),
		docdrift.WithRuleFiles(".", cfg.Rules...),
		docdrift.WithRuleExprs(cfg.RuleExprs...),
	}
	resolverOpts := []docdrift.ResolverOption{docdrift.WithPackages(cfg.Packages...)}
	if cfg.HasRelativeRoot || flagChanged(cmd.Flags(), "relative-root") {
		resolverOpts = append(resolverOpts, docdrift.WithRelativeRoot(cfg.RelativeRoot))
	}
	opts = append(opts, docdrift.WithResolverOptions(resolverOpts...))

	engine := docdrift.New(cfg.Src, opts...)
	report, err := engine.Check(context.Background(), args)
	if err != nil {
		return outputError(err)
	}

	if cfg.DB != "" {
		if err := saveReport(cfg.DB, report, started); err != nil {
			return outputError(err)
		}
	}

	if err := outputReport(os.Stdout, cfg.Format, report); err != nil {
		return err
	}
	if report.DriftDetected() {
		return errDrift
	}
	return nil
}

// saveReport records the run in the SQLite database at dbPath, creating it
// on first use.
func saveReport(dbPath string, report *docdrift.Report, started time.Time) error {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return err
	}
	if _, err := report.Save(s, started); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}
