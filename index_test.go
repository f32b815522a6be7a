package docdrift

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under root from a path → content map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func buildTestIndex(t *testing.T, files map[string]string, opts ...IndexOption) (*Index, []Warning) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, files)
	idx, warnings, err := BuildIndex(context.Background(), root, opts...)
	require.NoError(t, err)
	return idx, warnings
}

func modulePaths(idx *Index) []string {
	var paths []string
	for _, m := range idx.Modules() {
		paths = append(paths, m.Path)
	}
	return paths
}

func TestBuildIndex_ModulePaths(t *testing.T) {
	idx, warnings := buildTestIndex(t, map[string]string{
		"__init__.py":         "ROOT = 1\n",
		"top.py":              "def f(): pass\n",
		"pkg/__init__.py":     "from .core import Engine\n",
		"pkg/core.py":         "class Engine: pass\n",
		"pkg/sub/__init__.py": "",
		"pkg/sub/deep.py":     "VALUE = 1\n",
		"ns/only.py":          "x = 1\n",
		"README.md":           "# not python\n",
		"pkg/data.json":       "{}\n",
		".hidden/secret.py":   "x = 1\n",
		"__pycache__/top.py":  "x = 1\n",
		"node_modules/js.py":  "x = 1\n",
		"venv/lib.py":         "x = 1\n",
		"my-scripts/tool.py":  "x = 1\n",
		"pkg/not-a-module.py": "x = 1\n",
	})
	assert.Empty(t, warnings)

	assert.Equal(t, []string{"", "ns.only", "pkg", "pkg.core", "pkg.sub", "pkg.sub.deep", "top"}, modulePaths(idx))
	assert.Equal(t, 7, idx.Len())

	pkg, ok := idx.Module("pkg")
	require.True(t, ok)
	assert.True(t, pkg.IsPackage)
	assert.True(t, pkg.Has("Engine"))
	assert.Equal(t, filepath.Join(idx.Root(), "pkg", "__init__.py"), pkg.File)

	top, ok := idx.Module("top")
	require.True(t, ok)
	assert.False(t, top.IsPackage)
	assert.Equal(t, []string{"f"}, top.SymbolNames())

	assert.True(t, idx.TopLevel("pkg"))
	assert.True(t, idx.TopLevel("ns"))
	assert.False(t, idx.TopLevel("core"))
}

func TestBuildIndex_NamespacePackages(t *testing.T) {
	idx, _ := buildTestIndex(t, map[string]string{
		"ns/inner/mod.py": "x = 1\n",
	})

	assert.True(t, idx.HasModule("ns"))
	assert.True(t, idx.HasModule("ns.inner"))
	assert.True(t, idx.HasModule("ns.inner.mod"))
	assert.False(t, idx.HasModule("ns.other"))

	assert.True(t, idx.IsNamespace("ns"))
	assert.True(t, idx.IsNamespace("ns.inner"))
	assert.False(t, idx.IsNamespace("ns.inner.mod"))

	syms, ok := idx.ModuleSymbols("ns")
	assert.True(t, ok)
	assert.Empty(t, syms)
}

func TestBuildIndex_DuplicateModule(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg.py":          "x = 1\n",
		"pkg/__init__.py": "y = 1\n",
	})

	_, _, err := BuildIndex(context.Background(), root)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrDuplicateModule)
}

func TestBuildIndex_InvalidRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, _, err := BuildIndex(context.Background(), missing)
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrInvalidSourceRoot)
	assert.Equal(t, missing, cfgErr.Path)

	file := filepath.Join(t.TempDir(), "file.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))
	_, _, err = BuildIndex(context.Background(), file)
	assert.ErrorIs(t, err, ErrInvalidSourceRoot)
}

func TestBuildIndex_UndecodableFileSkipped(t *testing.T) {
	idx, warnings := buildTestIndex(t, map[string]string{
		"good.py":   "x = 1\n",
		"binary.py": "x = '\xff\xfe'\n",
	})

	_, ok := idx.Module("binary")
	assert.False(t, ok)
	_, ok = idx.Module("good")
	assert.True(t, ok)

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnSkippedFile, warnings[0].Kind)
	assert.Equal(t, "binary.py", filepath.Base(warnings[0].File))
	assert.Contains(t, warnings[0].Message, "UTF-8")
}

func TestBuildIndex_OversizedFileSkipped(t *testing.T) {
	idx, warnings := buildTestIndex(t, map[string]string{
		"small.py": "x = 1\n",
		"big.py":   "value = '" + string(make([]byte, 64)) + "'\n",
	}, WithMaxFileSize(32))

	_, ok := idx.Module("big")
	assert.False(t, ok)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnSkippedFile, warnings[0].Kind)
	assert.Contains(t, warnings[0].Message, ErrFileTooLarge.Error())
}

func TestBuildIndex_PartialParse(t *testing.T) {
	idx, warnings := buildTestIndex(t, map[string]string{
		"broken.py": "def good():\n    pass\n\ndef broken(:\n    pass\n",
	})

	m, ok := idx.Module("broken")
	require.True(t, ok)
	assert.True(t, m.Open)
	assert.True(t, m.Has("good"))

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnPartialParse, warnings[0].Kind)
	assert.Positive(t, warnings[0].Line)
}

func TestBuildIndex_SymlinksSkipped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"real/mod.py": "x = 1\n"})
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	idx, _, err := BuildIndex(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, idx.HasModule("real.mod"))
	assert.False(t, idx.HasModule("link.mod"))
}

func TestBuildIndex_WorkerCountDoesNotChangeResult(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		files["pkg/"+name+".py"] = "def " + name + "_fn():\n    pass\n"
	}
	root := t.TempDir()
	writeTree(t, root, files)

	serial, _, err := BuildIndex(context.Background(), root, WithIndexWorkers(1))
	require.NoError(t, err)
	parallel, _, err := BuildIndex(context.Background(), root, WithIndexWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, modulePaths(serial), modulePaths(parallel))
	for _, m := range serial.Modules() {
		other, ok := parallel.Module(m.Path)
		require.True(t, ok)
		assert.Equal(t, m.SymbolNames(), other.SymbolNames())
	}
}

func TestBuildIndex_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.py": "x = 1\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := BuildIndex(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndex_Lookup(t *testing.T) {
	idx, _ := buildTestIndex(t, map[string]string{
		"pkg/__init__.py": "from .core import Engine\n",
		"pkg/core.py":     "class Engine: pass\n",
		"pkg/dynamic.py":  "def __getattr__(name):\n    return name\n",
		"pkg/star.py":     "from .core import *\n",
	})

	tests := []struct {
		module, name string
		want         SymbolStatus
	}{
		{"pkg", "Engine", SymbolResolved},
		{"pkg", "core", SymbolResolved}, // submodule
		{"pkg", "Missing", SymbolMissing},
		{"pkg.core", "Engine", SymbolResolved},
		{"pkg.core", "Other", SymbolMissing},
		{"pkg.dynamic", "anything", SymbolOpen},
		{"pkg.star", "whatever", SymbolOpen},
		{"pkg.absent", "x", SymbolMissing},
	}
	for _, tt := range tests {
		t.Run(tt.module+"."+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.Lookup(tt.module, tt.name))
		})
	}
}

func TestModulePath(t *testing.T) {
	tests := []struct {
		rel       string
		module    string
		isPackage bool
		ok        bool
	}{
		{"mod.py", "mod", false, true},
		{"pkg/__init__.py", "pkg", true, true},
		{"__init__.py", "", true, true},
		{"a/b/c.py", "a.b.c", false, true},
		{"a/bad-name.py", "", false, false},
	}
	for _, tt := range tests {
		module, isPackage, ok := modulePath(filepath.FromSlash(tt.rel))
		assert.Equal(t, tt.ok, ok, tt.rel)
		if tt.ok {
			assert.Equal(t, tt.module, module, tt.rel)
			assert.Equal(t, tt.isPackage, isPackage, tt.rel)
		}
	}
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, isIdentifier("snake_case"))
	assert.True(t, isIdentifier("_private"))
	assert.True(t, isIdentifier("café"))
	assert.True(t, isIdentifier("v2"))
	assert.False(t, isIdentifier("2fast"))
	assert.False(t, isIdentifier("kebab-case"))
	assert.False(t, isIdentifier(""))
}
