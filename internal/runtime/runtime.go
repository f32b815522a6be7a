// Package runtime hosts the tree-sitter grammars used by docdrift and the
// Risor VM that evaluates suppression rules against findings.
package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
)

// Finding is the view of a finding handed to rule scripts.
type Finding struct {
	DocFile        string
	Line           int
	Module         string
	Symbol         string
	Classification string
}

// ModuleLookup answers index queries from rule scripts.
type ModuleLookup interface {
	ModuleSymbols(path string) ([]string, bool)
}

// Rule is a Risor program that decides whether a finding is suppressed. The
// program's final expression must evaluate to a bool.
type Rule struct {
	Label  string
	Source string
}

// Runtime embeds a Risor VM and exposes the symbol index and a logger to
// rule scripts.
type Runtime struct {
	lookup     ModuleLookup
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log object.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime answering index queries from lookup, which
// may be nil. scriptsDir is the base for LoadScript and script imports.
func NewRuntime(lookup ModuleLookup, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		lookup:     lookup,
		scriptsDir: scriptsDir,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadRule reads a rule script.
func (r *Runtime) LoadRule(path string) (Rule, error) {
	src, err := r.LoadScript(path)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Label: path, Source: src}, nil
}

// InlineRule wraps a rule expression given on the command line.
func InlineRule(expr string) Rule {
	return Rule{Label: "<inline>", Source: expr}
}

// Suppress evaluates rule for one finding and reports whether the finding
// should be dropped.
func (r *Runtime) Suppress(ctx context.Context, rule Rule, f Finding) (bool, error) {
	result, err := r.eval(ctx, rule.Source, rule.Label, map[string]any{
		"finding": findingObject(f),
	})
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case *object.Bool:
		return v.Value(), nil
	case *object.NilType:
		return false, nil
	default:
		return false, fmt.Errorf("runtime: rule %s must evaluate to a bool, got %s", rule.Label, result.Type())
	}
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (object.Object, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (object.Object, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log":            mustProxy(&logObject{logger: r.logger}),
		"module_exists":  makeModuleExistsFn(r.lookup),
		"module_symbols": makeModuleSymbolsFn(r.lookup),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func findingObject(f Finding) *object.Map {
	return object.NewMap(map[string]object.Object{
		"doc_file":       object.NewString(f.DocFile),
		"line":           object.NewInt(int64(f.Line)),
		"module":         object.NewString(f.Module),
		"symbol":         object.NewString(f.Symbol),
		"classification": object.NewString(f.Classification),
	})
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
