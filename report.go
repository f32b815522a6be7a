package docdrift

import (
	"time"

	"github.com/jward/docdrift/internal/store"
)

// Report is the outcome of one Check: per-document results in input order
// plus the warnings raised while indexing the source tree.
type Report struct {
	SourceRoot string
	Index      *Index
	Documents  []DocumentReport
	Warnings   []Warning
}

// DocumentReport holds the results for one documentation file.
type DocumentReport struct {
	DocFile    string
	Blocks     int       // Python code blocks found
	Findings   []Finding // ordered by line, then module, then symbol
	Suppressed []Finding // findings dropped by suppression rules
	Warnings   []Warning
}

// DriftDetected reports whether any document has an unsuppressed finding.
func (r *Report) DriftDetected() bool {
	for _, d := range r.Documents {
		if len(d.Findings) > 0 {
			return true
		}
	}
	return false
}

// Findings returns every unsuppressed finding, document by document.
func (r *Report) Findings() []Finding {
	var out []Finding
	for _, d := range r.Documents {
		out = append(out, d.Findings...)
	}
	return out
}

// Blocks returns the number of Python code blocks across all documents.
func (r *Report) Blocks() int {
	n := 0
	for _, d := range r.Documents {
		n += d.Blocks
	}
	return n
}

// AllWarnings returns the index warnings followed by each document's
// block warnings.
func (r *Report) AllWarnings() []Warning {
	out := append([]Warning(nil), r.Warnings...)
	for _, d := range r.Documents {
		out = append(out, d.Warnings...)
	}
	return out
}

// Save records the report as one run in s and returns the run ID.
func (r *Report) Save(s *store.Store, started time.Time) (int64, error) {
	batch := &store.RunBatch{
		Run: store.Run{
			StartedAt:     started,
			SourceRoot:    r.SourceRoot,
			Documents:     len(r.Documents),
			FindingCount:  len(r.Findings()),
			DriftDetected: r.DriftDetected(),
		},
	}
	if r.Index != nil {
		for _, m := range r.Index.Modules() {
			batch.Modules = append(batch.Modules, store.ModuleRecord{
				Path:      m.Path,
				File:      m.File,
				IsPackage: m.IsPackage,
				Open:      m.Open,
				Symbols:   m.SymbolNames(),
			})
		}
	}
	for _, d := range r.Documents {
		for _, f := range d.Findings {
			batch.Findings = append(batch.Findings, findingRecord(f, false))
		}
		for _, f := range d.Suppressed {
			batch.Findings = append(batch.Findings, findingRecord(f, true))
		}
	}
	for _, w := range r.AllWarnings() {
		batch.Warnings = append(batch.Warnings, store.WarningRecord{
			Kind:    string(w.Kind),
			File:    w.File,
			Line:    w.Line,
			Message: w.Message,
		})
	}
	return s.CommitRun(batch)
}

func findingRecord(f Finding, suppressed bool) store.FindingRecord {
	return store.FindingRecord{
		DocFile:        f.DocFile,
		Line:           f.Line,
		Module:         f.Module,
		Symbol:         f.Symbol,
		Classification: string(f.Classification),
		Suppressed:     suppressed,
	}
}
