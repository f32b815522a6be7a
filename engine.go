package docdrift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	rt "github.com/jward/docdrift/internal/runtime"
)

// Engine runs the drift check: it indexes a Python source tree, extracts the
// Python blocks of each document, resolves their imports against the index
// and applies suppression rules.
type Engine struct {
	src          string
	logger       *slog.Logger
	tags         []string
	workers      int
	maxFileSize  int64
	resolverOpts []ResolverOption

	ruleFiles []string
	ruleExprs []string
	rulesDir  string
	rulesFS   fs.FS
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLanguageTags replaces the fence info strings treated as Python.
func WithLanguageTags(tags ...string) Option {
	return func(e *Engine) {
		if len(tags) > 0 {
			e.tags = tags
		}
	}
}

// WithWorkers bounds both the index parsing pool and the number of documents
// checked concurrently. Values below one select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSourceFileLimit sets the largest source file the index will parse.
func WithSourceFileLimit(bytes int64) Option {
	return func(e *Engine) {
		e.maxFileSize = bytes
	}
}

// WithResolverOptions passes options such as WithPackages and
// WithRelativeRoot to the Resolver built for each check.
func WithResolverOptions(opts ...ResolverOption) Option {
	return func(e *Engine) {
		e.resolverOpts = append(e.resolverOpts, opts...)
	}
}

// WithRuleFiles adds Risor suppression rule scripts. Relative paths and
// script imports are resolved against dir, or against the filesystem set
// with WithRulesFS.
func WithRuleFiles(dir string, paths ...string) Option {
	return func(e *Engine) {
		e.rulesDir = dir
		e.ruleFiles = append(e.ruleFiles, paths...)
	}
}

// WithRuleExprs adds inline Risor suppression expressions.
func WithRuleExprs(exprs ...string) Option {
	return func(e *Engine) {
		e.ruleExprs = append(e.ruleExprs, exprs...)
	}
}

// WithRulesFS loads rule scripts from fsys instead of from disk.
func WithRulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.rulesFS = fsys
	}
}

// New creates an Engine for the Python source tree at src. The tree is not
// read until BuildIndex or Check is called.
func New(src string, opts ...Option) *Engine {
	e := &Engine{
		src:         src,
		logger:      discardLogger(),
		tags:        DefaultLanguageTags,
		workers:     runtime.NumCPU(),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

// BuildIndex indexes the Engine's source tree.
func (e *Engine) BuildIndex(ctx context.Context) (*Index, []Warning, error) {
	return BuildIndex(ctx, e.src,
		WithIndexWorkers(e.workers),
		WithMaxFileSize(e.maxFileSize),
		WithIndexLogger(e.logger),
	)
}

// Check verifies every document against a freshly built index. Documents are
// processed concurrently and reported in input order.
//
// A *ConfigurationError is returned for an invalid source tree or a broken
// suppression rule, and a *DocumentError for an unreadable document. Drift
// is not an error; see Report.DriftDetected.
func (e *Engine) Check(ctx context.Context, docs []string) (*Report, error) {
	idx, warnings, err := e.BuildIndex(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("source index built", "root", idx.Root(), "modules", idx.Len(), "warnings", len(warnings))

	resolver := NewResolver(idx, append(e.resolverOpts, WithResolverLogger(e.logger))...)
	sup, err := e.newSuppressor(idx)
	if err != nil {
		return nil, err
	}

	reports := make([]DocumentReport, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, doc := range docs {
		g.Go(func() error {
			dr, err := e.checkDocument(gctx, doc, resolver, sup)
			if err != nil {
				return err
			}
			reports[i] = *dr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{
		SourceRoot: idx.Root(),
		Index:      idx,
		Documents:  reports,
		Warnings:   warnings,
	}, nil
}

// checkDocument runs extraction, parsing, resolution and suppression for one
// documentation file.
func (e *Engine) checkDocument(ctx context.Context, doc string, resolver *Resolver, sup *suppressor) (*DocumentReport, error) {
	content, err := os.ReadFile(doc)
	if err != nil {
		return nil, &DocumentError{Path: doc, Err: err}
	}

	if lang, ok := rt.LanguageForFile(doc); !ok || lang != "markdown" {
		e.logger.Debug("document has no markdown extension, parsing as markdown", "doc", doc)
	}

	dr := &DocumentReport{DocFile: doc}
	var findings []Finding
	for block := range ExtractBlocks(ctx, doc, content, e.tags...) {
		dr.Blocks++
		decls, perr := ParseImports(ctx, block)
		if perr != nil {
			w := Warning{
				Kind:    WarnBlockParse,
				File:    doc,
				Line:    block.StartLine + perr.Line - 1,
				Message: perr.Message,
			}
			e.logger.Warn("code block has syntax errors", "doc", doc, "line", w.Line, "reason", w.Message)
			dr.Warnings = append(dr.Warnings, w)
		}
		findings = append(findings, resolver.Resolve(block, decls)...)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("docdrift: check %s: %w", doc, err)
	}

	for _, f := range dedupeFindings(findings) {
		drop, err := sup.suppress(ctx, f)
		if err != nil {
			return nil, err
		}
		if drop {
			dr.Suppressed = append(dr.Suppressed, f)
			e.logger.Debug("finding suppressed", "doc", f.DocFile, "line", f.Line, "module", f.Module, "symbol", f.Symbol)
			continue
		}
		dr.Findings = append(dr.Findings, f)
	}
	if dr.Blocks == 0 {
		e.logger.Debug("no python code blocks", "doc", doc)
	}
	return dr, nil
}

// suppressor evaluates the configured Risor rules against findings. A nil
// suppressor keeps every finding.
type suppressor struct {
	rt    *rt.Runtime
	rules []rt.Rule
}

func (e *Engine) newSuppressor(idx *Index) (*suppressor, error) {
	if len(e.ruleFiles) == 0 && len(e.ruleExprs) == 0 {
		return nil, nil
	}
	opts := []rt.RuntimeOption{rt.WithLogger(e.logger)}
	if e.rulesFS != nil {
		opts = append(opts, rt.WithRuntimeFS(e.rulesFS))
	}
	s := &suppressor{rt: rt.NewRuntime(idx, e.rulesDir, opts...)}
	for _, path := range e.ruleFiles {
		rule, err := s.rt.LoadRule(path)
		if err != nil {
			return nil, &ConfigurationError{Path: path, Err: err}
		}
		s.rules = append(s.rules, rule)
	}
	for _, expr := range e.ruleExprs {
		s.rules = append(s.rules, rt.InlineRule(expr))
	}
	return s, nil
}

// suppress reports whether any rule drops f. A rule that fails to evaluate is
// a configuration problem and aborts the run.
func (s *suppressor) suppress(ctx context.Context, f Finding) (bool, error) {
	if s == nil {
		return false, nil
	}
	view := rt.Finding{
		DocFile:        f.DocFile,
		Line:           f.Line,
		Module:         f.Module,
		Symbol:         f.Symbol,
		Classification: string(f.Classification),
	}
	for _, rule := range s.rules {
		drop, err := s.rt.Suppress(ctx, rule, view)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return false, err
			}
			return false, &ConfigurationError{Path: rule.Label, Err: err}
		}
		if drop {
			return true, nil
		}
	}
	return false, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
