package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jward/docdrift/internal/config"
)

// Process exit codes.
const (
	exitClean = 0
	exitDrift = 1
	exitError = 2
)

// errDrift is returned by check when findings remain after suppression. It
// is not printed; it only selects the exit code.
var errDrift = errors.New("drift detected")

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
	flagNoColor bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	os.Exit(run())
}

func run() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return exitClean
	case errors.Is(err, errDrift):
		return exitDrift
	default:
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		return exitError
	}
}

var rootCmd = &cobra.Command{
	Use:           "docdrift",
	Short:         "Detect outdated Python examples in Markdown documentation",
	Long:          "docdrift parses the Python code blocks of Markdown files and checks that every project-local module and name they import still exists in the source tree.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagNoColor {
			color.NoColor = true
		}
		return validateFormat(flagFormat)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: ./.docdrift.yaml if present)")
	pf.StringVar(&flagFormat, "format", config.DefaultFormat, "output format: text|json")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log debug output to stderr")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable coloured output")
	pf.String("src", config.DefaultSrc, "Python source root to check against")
	pf.Int("workers", config.DefaultWorkers, "parallel workers (0 = number of CPUs)")
	pf.Int64("max-file-size", config.DefaultMaxFileSize, "largest source file to index, in bytes")
	pf.String("db", "", "SQLite database to record runs in")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(historyCmd)
}

// configFlags maps config keys to the flags that override them. Commands
// bind only the flags they define.
var configFlags = map[string]string{
	"src":           "src",
	"packages":      "package",
	"relative_root": "relative-root",
	"languages":     "lang",
	"workers":       "workers",
	"rules":         "rules",
	"rule":          "rule",
	"db":            "db",
	"format":        "format",
	"max_file_size": "max-file-size",
}

// loadConfig merges the config file, environment and the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fs := cmd.Flags()
	bound := make(map[string]string, len(configFlags))
	for key, name := range configFlags {
		if fs.Lookup(name) != nil {
			bound[key] = name
		}
	}
	cfg, err := config.Load(flagConfig, fs, bound)
	if err != nil {
		return nil, err
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
	flagFormat = cfg.Format
	return cfg, nil
}

// newLogger returns a text logger on stderr at the configured level.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// flagChanged reports whether the user set a flag on the command line.
func flagChanged(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
