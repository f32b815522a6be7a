package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/jward/docdrift"
)

// validFormats lists the accepted --format values.
var validFormats = map[string]bool{
	"json": true,
	"text": true,
}

// validateFormat checks that the --format flag value is supported.
func validateFormat(format string) error {
	if !validFormats[format] {
		return fmt.Errorf("invalid format %q: must be json or text", format)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIReport envelope. In text mode it goes to stderr.
func outputError(err error) error {
	errorHandled = true
	if flagFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	_ = writeJSON(os.Stdout, CLIReport{Drifts: []CLIDrift{}, Error: err.Error()})
	return err
}

// outputReport renders a check report.
func outputReport(w io.Writer, format string, report *docdrift.Report) error {
	if format == "json" {
		return writeJSON(w, reportToCLI(report))
	}
	formatReportText(w, report)
	return nil
}

func reportToCLI(report *docdrift.Report) CLIReport {
	out := CLIReport{
		DriftDetected: report.DriftDetected(),
		Drifts:        make([]CLIDrift, 0),
		Warnings:      warningsToCLI(report.AllWarnings()),
	}
	for _, f := range report.Findings() {
		out.Drifts = append(out.Drifts, findingToCLI(f))
	}
	for _, d := range report.Documents {
		out.Suppressed += len(d.Suppressed)
	}
	return out
}

func findingToCLI(f docdrift.Finding) CLIDrift {
	return CLIDrift{
		Symbol:         f.Symbol,
		Module:         f.Module,
		Line:           f.Line,
		DocFile:        f.DocFile,
		Classification: string(f.Classification),
	}
}

func warningsToCLI(ws []docdrift.Warning) []CLIWarning {
	if len(ws) == 0 {
		return nil
	}
	out := make([]CLIWarning, 0, len(ws))
	for _, w := range ws {
		out = append(out, CLIWarning{Kind: string(w.Kind), File: w.File, Line: w.Line, Message: w.Message})
	}
	return out
}

// formatReportText prints one section per document followed by a summary.
func formatReportText(w io.Writer, report *docdrift.Report) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for _, d := range report.Documents {
		switch {
		case d.Blocks == 0:
			yellow.Fprintf(w, "No Python code blocks found in %s\n", d.DocFile)
		case len(d.Findings) == 0:
			green.Fprintf(w, "✓ No drift detected in %s\n", d.DocFile)
		default:
			red.Fprintf(w, "Drift detected in %s\n", d.DocFile)
			formatFindingsText(w, d.Findings)
		}
		if n := len(d.Suppressed); n > 0 {
			fmt.Fprintf(w, "  (%d finding(s) suppressed by rules)\n", n)
		}
	}

	if ws := report.AllWarnings(); len(ws) > 0 {
		fmt.Fprintln(w)
		yellow.Fprintln(w, "Warnings:")
		for _, warn := range ws {
			fmt.Fprintf(w, "  %s [%s]\n", warn, warn.Kind)
		}
	}

	if n := len(report.Findings()); n > 0 {
		fmt.Fprintln(w)
		red.Fprintf(w, "Found %d import(s) that don't exist in the codebase\n", n)
	}
}

// formatFindingsText formats findings as aligned columns.
func formatFindingsText(w io.Writer, findings []docdrift.Finding) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tCLASSIFICATION\tMODULE\tSYMBOL")
	for _, f := range findings {
		symbol := f.Symbol
		if symbol == "" {
			symbol = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.Line, f.Classification, f.Module, symbol)
	}
	tw.Flush()
}

// formatIndexText prints each module with its symbols.
func formatIndexText(w io.Writer, idx CLIIndex) {
	fmt.Fprintf(w, "Source root: %s\n", idx.Root)
	fmt.Fprintf(w, "Modules: %d\n\n", len(idx.Modules))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tFLAGS\tSYMBOLS")
	for _, m := range idx.Modules {
		path := m.Path
		if path == "" {
			path = "(root)"
		}
		var flags []string
		if m.IsPackage {
			flags = append(flags, "package")
		}
		if m.Open {
			flags = append(flags, "open")
		}
		flagText := strings.Join(flags, ",")
		if flagText == "" {
			flagText = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", path, flagText, strings.Join(m.Symbols, " "))
	}
	tw.Flush()

	if len(idx.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		formatWarningsText(w, idx.Warnings)
	}
}

// formatRunsText formats recorded runs as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tDOCS\tFINDINGS\tDRIFT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%t\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.SourceRoot, r.Documents, r.FindingCount, r.DriftDetected)
	}
	tw.Flush()
}

// formatRunDetailText formats one recorded run's findings.
func formatRunDetailText(w io.Writer, d CLIRunDetail) {
	fmt.Fprintf(w, "Run %d: %d finding(s)\n", d.RunID, len(d.Findings))
	if len(d.Findings) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DOC\tLINE\tCLASSIFICATION\tMODULE\tSYMBOL\tSUPPRESSED")
		for _, f := range d.Findings {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%t\n",
				f.DocFile, f.Line, f.Classification, f.Module, f.Symbol, f.Suppressed)
		}
		tw.Flush()
	}
	if len(d.Warnings) > 0 {
		fmt.Fprintln(w, "\nWarnings:")
		formatWarningsText(w, d.Warnings)
	}
}

func formatWarningsText(w io.Writer, ws []CLIWarning) {
	for _, warn := range ws {
		if warn.Line > 0 {
			fmt.Fprintf(w, "  %s:%d: %s [%s]\n", warn.File, warn.Line, warn.Message, warn.Kind)
			continue
		}
		fmt.Fprintf(w, "  %s: %s [%s]\n", warn.File, warn.Message, warn.Kind)
	}
}
