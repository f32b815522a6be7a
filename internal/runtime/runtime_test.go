package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/risor-io/risor/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLookup is a ModuleLookup over a fixed module table.
type fakeLookup map[string][]string

func (f fakeLookup) ModuleSymbols(path string) ([]string, bool) {
	syms, ok := f[path]
	return syms, ok
}

var testFinding = Finding{
	DocFile:        "docs/README.md",
	Line:           12,
	Module:         "mypkg.legacy",
	Symbol:         "_private_helper",
	Classification: "MISSING_SYMBOL",
}

// --- Language detection tests ---

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"module.py", "python", true},
		{"README.md", "markdown", true},
		{"guide.markdown", "markdown", true},
		{"docs/INDEX.MD", "markdown", true}, // case insensitive
		{"notes.txt", "", false},
		{"Makefile", "", false},
		{"main.go", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParserForLanguage(t *testing.T) {
	t.Parallel()

	for _, lang := range []string{"python", "markdown"} {
		l, ok := ParserForLanguage(lang)
		assert.True(t, ok, lang)
		assert.NotNil(t, l, lang)
	}

	_, ok := ParserForLanguage("cobol")
	assert.False(t, ok)
}

// --- Parse tests ---

func TestParse_Python(t *testing.T) {
	t.Parallel()

	tree, err := Parse(context.Background(), []byte("import os\n\ndef f():\n    pass\n"), "python")
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "module", root.Type())
	assert.False(t, root.HasError())
	assert.Equal(t, uint32(2), root.NamedChildCount())
	assert.Equal(t, "import_statement", root.NamedChild(0).Type())
}

func TestParse_Markdown(t *testing.T) {
	t.Parallel()

	src := "# Title\n\n```python\nx = 1\n```\n"
	tree, err := Parse(context.Background(), []byte(src), "markdown")
	require.NoError(t, err)
	defer tree.Close()

	assert.Equal(t, "document", tree.RootNode().Type())
}

func TestParse_InvalidSourceStillReturnsTree(t *testing.T) {
	t.Parallel()

	tree, err := Parse(context.Background(), []byte("def broken(:\n"), "python")
	require.NoError(t, err)
	defer tree.Close()
	assert.True(t, tree.RootNode().HasError())
}

func TestParse_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	_, err := Parse(context.Background(), []byte("x"), "cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

// --- Suppression rule tests ---

func TestSuppress_InlineExpressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"true literal", "true", true},
		{"false literal", "false", false},
		{"nil keeps finding", "nil", false},
		{"symbol prefix", `strings.has_prefix(finding["symbol"], "_")`, true},
		{"module match", `finding["module"] == "mypkg.other"`, false},
		{"line and classification", `finding["line"] > 10 && finding["classification"] == "MISSING_SYMBOL"`, true},
		{"doc file", `finding["doc_file"] == "docs/README.md"`, true},
	}

	rt := NewRuntime(nil, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := rt.Suppress(context.Background(), InlineRule(tt.expr), testFinding)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuppress_NonBoolResult(t *testing.T) {
	rt := NewRuntime(nil, "")

	_, err := rt.Suppress(context.Background(), InlineRule("42"), testFinding)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must evaluate to a bool")
}

func TestSuppress_CompileError(t *testing.T) {
	rt := NewRuntime(nil, "")

	_, err := rt.Suppress(context.Background(), InlineRule("finding[["), testFinding)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<inline>")
}

func TestSuppress_IndexHostFunctions(t *testing.T) {
	lookup := fakeLookup{
		"mypkg":        {"Client", "connect"},
		"mypkg.compat": nil,
	}
	rt := NewRuntime(lookup, "")
	ctx := context.Background()

	// Drop findings in modules that have a compat shim.
	got, err := rt.Suppress(ctx, InlineRule(`module_exists("mypkg.compat")`), testFinding)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = rt.Suppress(ctx, InlineRule(`module_exists(finding["module"])`), testFinding)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = rt.Suppress(ctx, InlineRule(`"connect" in module_symbols("mypkg")`), testFinding)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = rt.Suppress(ctx, InlineRule(`module_symbols("missing") == nil`), testFinding)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestHostFunctions_ArgumentErrors(t *testing.T) {
	rt := NewRuntime(fakeLookup{}, "")
	ctx := context.Background()

	_, err := rt.RunSource(ctx, `module_exists()`, nil)
	require.Error(t, err)

	_, err = rt.RunSource(ctx, `module_symbols(1)`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a string")
}

func TestHostFunctions_NilLookup(t *testing.T) {
	rt := NewRuntime(nil, "")

	result, err := rt.RunSource(context.Background(), `[module_exists("a"), module_symbols("a")]`, nil)
	require.NoError(t, err)
	list, ok := result.(*object.List)
	require.True(t, ok)
	require.Len(t, list.Value(), 2)
	assert.Equal(t, object.False, list.Value()[0])
	assert.Equal(t, object.Nil, list.Value()[1])
}

// --- Script loading tests ---

func TestLoadRule_FromFS(t *testing.T) {
	mapFS := fstest.MapFS{
		"rules/private.risor": &fstest.MapFile{Data: []byte(`
symbol := finding["symbol"]
len(symbol) > 1 && strings.has_prefix(symbol, "_")
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	rule, err := rt.LoadRule("rules/private.risor")
	require.NoError(t, err)
	assert.Equal(t, "rules/private.risor", rule.Label)

	got, err := rt.Suppress(context.Background(), rule, testFinding)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestLoadRule_FromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy.risor"),
		[]byte(`strings.has_prefix(finding["module"], "mypkg.legacy")`), 0o644))

	rt := NewRuntime(nil, dir)
	rule, err := rt.LoadRule("legacy.risor")
	require.NoError(t, err)

	got, err := rt.Suppress(context.Background(), rule, testFinding)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestLoadRule_Missing(t *testing.T) {
	rt := NewRuntime(nil, t.TempDir())
	_, err := rt.LoadRule("nope.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading script")
}

func TestImport_FSModule(t *testing.T) {
	mapFS := fstest.MapFS{
		"helpers.risor": &fstest.MapFile{Data: []byte(`
func ignored_modules() {
	return ["mypkg.legacy", "mypkg.compat"]
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	rule := Rule{Label: "import-test", Source: `
import helpers
finding["module"] in helpers.ignored_modules()
`}
	got, err := rt.Suppress(context.Background(), rule, testFinding)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	// Imported modules compile against the host globals.
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func do_log(msg) {
	log.Info(msg)
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	_, err := rt.RunSource(context.Background(), "import helper\nhelper.do_log(\"test message\")\n", nil)
	require.NoError(t, err)
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.logger)
}
