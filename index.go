package docdrift

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode"
)

// DefaultMaxFileSize is the largest source file the index will parse.
const DefaultMaxFileSize = 10 * 1024 * 1024

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	"node_modules":  true,
	"vendor":        true,
	"__pycache__":   true,
	"venv":          true,
	"site-packages": true,
}

// Module is the index entry of one Python source file.
type Module struct {
	Path      string // dotted module path; "" for the source root's __init__.py
	File      string
	IsPackage bool
	Open      bool // contains a star import or a module-level __getattr__
	Symbols   map[string]struct{}
}

// Has reports whether name is bound at module level.
func (m *Module) Has(name string) bool {
	_, ok := m.Symbols[name]
	return ok
}

// SymbolNames returns the module's symbols in sorted order.
func (m *Module) SymbolNames() []string {
	names := make([]string, 0, len(m.Symbols))
	for name := range m.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Index maps dotted module paths of a source tree to their top-level
// symbols. It is built once by BuildIndex and never modified afterwards.
type Index struct {
	root     string
	modules  map[string]*Module
	prefixes map[string]bool // proper dotted prefixes of indexed modules
	topLevel map[string]bool
}

func newIndex(root string) *Index {
	return &Index{
		root:     root,
		modules:  make(map[string]*Module),
		prefixes: make(map[string]bool),
		topLevel: make(map[string]bool),
	}
}

// insert adds a module. Module paths are unique; a second file with the same
// path is a configuration error.
func (idx *Index) insert(m *Module) error {
	if prev, ok := idx.modules[m.Path]; ok {
		return &ConfigurationError{
			Path: m.File,
			Err:  fmt.Errorf("%w: %q also defined by %s", ErrDuplicateModule, m.Path, prev.File),
		}
	}
	idx.modules[m.Path] = m
	if m.Path == "" {
		return nil
	}
	parts := strings.Split(m.Path, ".")
	idx.topLevel[parts[0]] = true
	idx.prefixes[""] = true
	for i := 1; i < len(parts); i++ {
		idx.prefixes[strings.Join(parts[:i], ".")] = true
	}
	return nil
}

// Root returns the source directory the index was built from.
func (idx *Index) Root() string { return idx.root }

// Len returns the number of indexed modules.
func (idx *Index) Len() int { return len(idx.modules) }

// Module returns the entry for a dotted module path.
func (idx *Index) Module(path string) (*Module, bool) {
	m, ok := idx.modules[path]
	return m, ok
}

// HasModule reports whether path names an indexed module or a namespace
// package (a directory of modules without its own __init__.py).
func (idx *Index) HasModule(path string) bool {
	if _, ok := idx.modules[path]; ok {
		return true
	}
	return idx.prefixes[path]
}

// IsNamespace reports whether path is a prefix of indexed modules without an
// entry of its own.
func (idx *Index) IsNamespace(path string) bool {
	_, ok := idx.modules[path]
	return !ok && idx.prefixes[path]
}

// TopLevel reports whether name is the first component of an indexed module.
func (idx *Index) TopLevel(name string) bool {
	return idx.topLevel[name]
}

// Modules returns all entries sorted by module path.
func (idx *Index) Modules() []*Module {
	mods := make([]*Module, 0, len(idx.modules))
	for _, m := range idx.modules {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Path < mods[j].Path })
	return mods
}

// ModuleSymbols returns the sorted symbols of a module and whether it exists.
func (idx *Index) ModuleSymbols(path string) ([]string, bool) {
	m, ok := idx.modules[path]
	if !ok {
		return nil, idx.prefixes[path]
	}
	return m.SymbolNames(), true
}

// Lookup resolves name inside module. A name resolves when the module binds
// it or when it is a submodule (`from pkg import submodule`). Names of open
// modules that are not otherwise found report SymbolOpen.
func (idx *Index) Lookup(module, name string) SymbolStatus {
	if idx.HasModule(joinModule(module, name)) {
		return SymbolResolved
	}
	m, ok := idx.modules[module]
	if !ok {
		return SymbolMissing
	}
	if m.Has(name) {
		return SymbolResolved
	}
	if m.Open {
		return SymbolOpen
	}
	return SymbolMissing
}

func joinModule(base, name string) string {
	switch {
	case base == "":
		return name
	case name == "":
		return base
	default:
		return base + "." + name
	}
}

// IndexOption configures BuildIndex.
type IndexOption func(*indexConfig)

type indexConfig struct {
	workers     int
	maxFileSize int64
	logger      *slog.Logger
}

// WithIndexWorkers sets the number of parsing goroutines. Values below one
// select runtime.NumCPU().
func WithIndexWorkers(n int) IndexOption {
	return func(c *indexConfig) { c.workers = n }
}

// WithMaxFileSize sets the largest source file that will be parsed.
func WithMaxFileSize(bytes int64) IndexOption {
	return func(c *indexConfig) {
		if bytes > 0 {
			c.maxFileSize = bytes
		}
	}
}

// WithIndexLogger sets the logger used for skipped files.
func WithIndexLogger(l *slog.Logger) IndexOption {
	return func(c *indexConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// sourceFile is a discovered module file awaiting parsing.
type sourceFile struct {
	path      string
	module    string
	isPackage bool
}

// BuildIndex walks root and indexes every Python module below it. Files
// that cannot be read or decoded are reported as warnings and left out of
// the index. An invalid root or two files with the same module path abort
// the build with a *ConfigurationError.
func BuildIndex(ctx context.Context, root string, opts ...IndexOption) (*Index, []Warning, error) {
	cfg := indexConfig{
		workers:     runtime.NumCPU(),
		maxFileSize: DefaultMaxFileSize,
		logger:      discardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = runtime.NumCPU()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, &ConfigurationError{Path: root, Err: fmt.Errorf("%w: %v", ErrInvalidSourceRoot, err)}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, nil, &ConfigurationError{Path: root, Err: fmt.Errorf("%w: %v", ErrInvalidSourceRoot, err)}
	}
	if !info.IsDir() {
		return nil, nil, &ConfigurationError{Path: root, Err: fmt.Errorf("%w: not a directory", ErrInvalidSourceRoot)}
	}

	files, warnings, err := discoverModules(abs)
	if err != nil {
		return nil, nil, err
	}

	idx, parseWarnings, err := indexFilesParallel(ctx, abs, files, cfg)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, parseWarnings...)
	sortWarnings(warnings)
	for _, w := range warnings {
		cfg.logger.Warn("source file not fully indexed", "kind", string(w.Kind), "file", w.File, "line", w.Line, "reason", w.Message)
	}
	return idx, warnings, nil
}

// discoverModules walks root once and maps every importable .py file to its
// dotted module path. Symlinks, hidden directories and names that are not
// Python identifiers are skipped.
func discoverModules(root string) ([]sourceFile, []Warning, error) {
	var (
		files    []sourceFile
		warnings []Warning
		seen     = make(map[string]string)
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			warnings = append(warnings, Warning{Kind: WarnSkippedFile, File: path, Message: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || skipDirs[name] || !isIdentifier(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".py" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		module, isPackage, ok := modulePath(rel)
		if !ok {
			return nil
		}
		if prev, dup := seen[module]; dup {
			return &ConfigurationError{
				Path: path,
				Err:  fmt.Errorf("%w: %q also defined by %s", ErrDuplicateModule, module, prev),
			}
		}
		seen[module] = path
		files = append(files, sourceFile{path: path, module: module, isPackage: isPackage})
		return nil
	})
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, nil, err
		}
		return nil, nil, &ConfigurationError{Path: root, Err: fmt.Errorf("%w: %v", ErrInvalidSourceRoot, err)}
	}
	return files, warnings, nil
}

// modulePath converts a root-relative file path into a dotted module path.
func modulePath(rel string) (module string, isPackage bool, ok bool) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	last := strings.TrimSuffix(parts[len(parts)-1], ".py")
	parts = parts[:len(parts)-1]
	if last == "__init__" {
		isPackage = true
	} else {
		if !isIdentifier(last) {
			return "", false, false
		}
		parts = append(parts, last)
	}
	return strings.Join(parts, "."), isPackage, true
}

// isIdentifier reports whether s is a valid Python identifier.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

func sortWarnings(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].File != ws[j].File {
			return ws[i].File < ws[j].File
		}
		return ws[i].Line < ws[j].Line
	})
}
