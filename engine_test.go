package docdrift

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/docdrift/internal/store"
)

const (
	sampleSrc = "testdata/sample_src"
	docsDir   = "testdata/docs"
)

func docPath(name string) string {
	return filepath.Join(docsDir, name)
}

func checkDocs(t *testing.T, e *Engine, docs ...string) *Report {
	t.Helper()
	report, err := e.Check(context.Background(), docs)
	require.NoError(t, err)
	return report
}

func TestCheck_ValidReadme(t *testing.T) {
	report := checkDocs(t, New(sampleSrc), docPath("valid_readme.md"))

	assert.False(t, report.DriftDetected())
	assert.Empty(t, report.Findings())
	require.Len(t, report.Documents, 1)
	assert.Equal(t, 2, report.Documents[0].Blocks)
	assert.Empty(t, report.AllWarnings())
}

func TestCheck_DriftReadme(t *testing.T) {
	doc := docPath("drift_readme.md")
	report := checkDocs(t, New(sampleSrc), doc)

	assert.True(t, report.DriftDetected())
	assert.Equal(t, []Finding{
		{DocFile: doc, Line: 5, Module: "example", Symbol: "non_existent_function", Classification: MissingSymbol},
		{DocFile: doc, Line: 11, Module: "shapes.hexagon", Classification: MissingModule},
		{DocFile: doc, Line: 12, Module: "shapes.circle", Symbol: "Triangle", Classification: MissingSymbol},
	}, report.Findings())
}

func TestCheck_MixedImports(t *testing.T) {
	e := New(sampleSrc, WithResolverOptions(WithPackages("example")))

	report := checkDocs(t, e, docPath("mixed_imports.md"))
	assert.False(t, report.DriftDetected())

	doc := docPath("mixed_imports_drift.md")
	report = checkDocs(t, e, doc)
	assert.Equal(t, []Finding{
		{DocFile: doc, Line: 7, Module: "example", Symbol: "non_existent_function", Classification: MissingSymbol},
	}, report.Findings())
}

func TestCheck_NoPythonBlocks(t *testing.T) {
	report := checkDocs(t, New(sampleSrc), docPath("no_blocks.md"))

	assert.False(t, report.DriftDetected())
	require.Len(t, report.Documents, 1)
	assert.Zero(t, report.Documents[0].Blocks)
}

func TestCheck_MultipleDocumentsKeepOrder(t *testing.T) {
	docs := []string{
		docPath("drift_readme.md"),
		docPath("valid_readme.md"),
		docPath("no_blocks.md"),
		docPath("mixed_imports_drift.md"),
	}
	report := checkDocs(t, New(sampleSrc, WithWorkers(4)), docs...)

	require.Len(t, report.Documents, len(docs))
	for i, doc := range docs {
		assert.Equal(t, doc, report.Documents[i].DocFile)
	}
	assert.Len(t, report.Findings(), 4)
	assert.Equal(t, 5, report.Blocks())
}

func TestCheck_Idempotent(t *testing.T) {
	e := New(sampleSrc)
	docs := []string{docPath("drift_readme.md"), docPath("mixed_imports_drift.md")}

	first := checkDocs(t, e, docs...)
	second := checkDocs(t, e, docs...)
	assert.Equal(t, first.Documents, second.Documents)
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestCheck_MissingDocument(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.md")
	_, err := New(sampleSrc).Check(context.Background(), []string{docPath("valid_readme.md"), missing})

	var docErr *DocumentError
	require.True(t, errors.As(err, &docErr))
	assert.Equal(t, missing, docErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCheck_InvalidSourceRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing")).Check(context.Background(), []string{docPath("valid_readme.md")})

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrInvalidSourceRoot)
}

func TestCheck_BlockSyntaxErrorIsWarning(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "broken.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Broken\n\n```python\nfrom example import nope\n\nresult = compute(\n```\n"), 0o644))

	report := checkDocs(t, New(sampleSrc), doc)

	require.Len(t, report.Documents, 1)
	d := report.Documents[0]
	require.Len(t, d.Warnings, 1)
	assert.Equal(t, WarnBlockParse, d.Warnings[0].Kind)
	assert.GreaterOrEqual(t, d.Warnings[0].Line, 4)

	// Well-formed imports in the block are still checked.
	require.Len(t, d.Findings, 1)
	assert.Equal(t, "nope", d.Findings[0].Symbol)
	assert.Equal(t, 4, d.Findings[0].Line)
}

func TestCheck_LanguageTags(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "pycon.md")
	require.NoError(t, os.WriteFile(doc, []byte("```pycon\nfrom example import nope\n```\n"), 0o644))

	report := checkDocs(t, New(sampleSrc), doc)
	assert.False(t, report.DriftDetected())

	report = checkDocs(t, New(sampleSrc, WithLanguageTags("pycon")), doc)
	assert.True(t, report.DriftDetected())
}

func TestCheck_InlineRuleSuppresses(t *testing.T) {
	doc := docPath("drift_readme.md")
	e := New(sampleSrc, WithRuleExprs(`finding["classification"] == "MISSING_MODULE"`))

	report := checkDocs(t, e, doc)
	require.Len(t, report.Documents, 1)
	assert.Len(t, report.Documents[0].Findings, 2)
	require.Len(t, report.Documents[0].Suppressed, 1)
	assert.Equal(t, "shapes.hexagon", report.Documents[0].Suppressed[0].Module)
}

func TestCheck_RuleFileUsesIndex(t *testing.T) {
	rules := fstest.MapFS{
		"rules/known.risor": &fstest.MapFile{Data: []byte(`
// Drop findings for modules that are indexed but expose no such name.
module_exists(finding["module"]) && finding["symbol"] != ""
`)},
	}
	e := New(sampleSrc, WithRulesFS(rules), WithRuleFiles("", "rules/known.risor"))

	report := checkDocs(t, e, docPath("drift_readme.md"))
	findings := report.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, MissingModule, findings[0].Classification)
}

func TestCheck_BrokenRuleIsConfigurationError(t *testing.T) {
	e := New(sampleSrc, WithRuleExprs(`"not a bool"`))

	_, err := e.Check(context.Background(), []string{docPath("drift_readme.md")})
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "<inline>", cfgErr.Path)
}

func TestCheck_MissingRuleFile(t *testing.T) {
	e := New(sampleSrc, WithRuleFiles(t.TempDir(), "absent.risor"))

	_, err := e.Check(context.Background(), []string{docPath("valid_readme.md")})
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

func TestReport_Save(t *testing.T) {
	report := checkDocs(t, New(sampleSrc, WithRuleExprs(`finding["symbol"] == "Triangle"`)), docPath("drift_readme.md"))

	s, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate())

	runID, err := report.Save(s, time.Now())
	require.NoError(t, err)

	runs, err := s.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, 2, runs[0].FindingCount)
	assert.True(t, runs[0].DriftDetected)

	findings, err := s.FindingsByRun(runID)
	require.NoError(t, err)
	require.Len(t, findings, 3)
	var suppressed int
	for _, f := range findings {
		if f.Suppressed {
			suppressed++
			assert.Equal(t, "Triangle", f.Symbol)
		}
	}
	assert.Equal(t, 1, suppressed)

	modules, err := s.ModulesByRun(runID)
	require.NoError(t, err)
	assert.Len(t, modules, report.Index.Len())
}

func TestReport_DriftDetected(t *testing.T) {
	r := &Report{Documents: []DocumentReport{{DocFile: "a.md"}, {DocFile: "b.md"}}}
	assert.False(t, r.DriftDetected())

	r.Documents[1].Suppressed = []Finding{{DocFile: "b.md", Module: "m", Classification: MissingModule}}
	assert.False(t, r.DriftDetected())

	r.Documents[1].Findings = []Finding{{DocFile: "b.md", Module: "m", Classification: MissingModule}}
	assert.True(t, r.DriftDetected())
}
