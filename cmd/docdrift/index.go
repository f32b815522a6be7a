package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/docdrift"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Print the symbol index of the source tree",
	Long:  "Indexes --src and prints every module with its top-level symbols. Useful for understanding why a name is or is not found.",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return outputError(err)
	}
	engine := docdrift.New(cfg.Src,
		docdrift.WithLogger(newLogger(os.Stderr, cfg)),
		docdrift.WithWorkers(cfg.Workers),
		docdrift.WithSourceFileLimit(cfg.MaxFileSize),
	)
	idx, warnings, err := engine.BuildIndex(context.Background())
	if err != nil {
		return outputError(err)
	}

	result := CLIIndex{Root: idx.Root()}
	for _, m := range idx.Modules() {
		result.Modules = append(result.Modules, CLIModule{
			Path:      m.Path,
			File:      m.File,
			IsPackage: m.IsPackage,
			Open:      m.Open,
			Symbols:   m.SymbolNames(),
		})
	}
	result.Warnings = warningsToCLI(warnings)

	if cfg.Format == "text" {
		formatIndexText(os.Stdout, result)
		return nil
	}
	return writeJSON(os.Stdout, result)
}
