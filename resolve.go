package docdrift

import (
	"log/slog"
	"sort"
	"strings"
)

// Resolver decides which imported modules and names of a code block are
// missing from a source tree. It only reads the Index, so one Resolver may be
// shared by goroutines processing different documents.
type Resolver struct {
	idx             *Index
	packages        map[string]bool
	relativeRoot    string
	hasRelativeRoot bool
	logger          *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPackages names the project's own top-level packages. Imports rooted at
// one of them are always project-local, even when the name is also a
// standard library module. A package that is not a top-level directory of
// the source tree is treated as mounted at the source root.
func WithPackages(names ...string) ResolverOption {
	return func(r *Resolver) {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name != "" {
				r.packages[name] = true
			}
		}
	}
}

// WithRelativeRoot anchors relative imports (`from .x import y`) at the given
// dotted package path. "" or "." anchors them at the source root. Without an
// anchor relative imports are not checked.
func WithRelativeRoot(pkg string) ResolverOption {
	return func(r *Resolver) {
		r.relativeRoot = strings.Trim(pkg, ".")
		r.hasRelativeRoot = true
	}
}

// WithResolverLogger sets the logger used for skipped declarations.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver over idx.
func NewResolver(idx *Index, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		idx:      idx,
		packages: make(map[string]bool),
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify reports where an absolute module path comes from.
func (r *Resolver) Classify(module string) ModuleClass {
	top, _, _ := strings.Cut(module, ".")
	switch {
	case r.packages[top]:
		return ClassLocal
	case IsStdlib(module):
		return ClassStdlib
	case r.idx.TopLevel(top):
		return ClassLocal
	default:
		return ClassThirdParty
	}
}

// target returns the absolute module path a declaration refers to and its
// classification.
func (r *Resolver) target(decl ImportDeclaration) (string, ModuleClass) {
	if !decl.Relative() {
		return decl.Module, r.Classify(decl.Module)
	}
	if !r.hasRelativeRoot {
		return decl.Module, ClassUnresolvableRelative
	}
	base := r.relativeRoot
	for i := 1; i < decl.Level; i++ {
		if base == "" {
			// Climbs above the source root.
			return decl.Module, ClassUnresolvableRelative
		}
		if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
			base = base[:dot]
		} else {
			base = ""
		}
	}
	return joinModule(base, decl.Module), ClassLocal
}

// indexPath maps an import path onto the index. Configured packages that do
// not exist as top-level directories are mounted at the source root.
func (r *Resolver) indexPath(module string) string {
	top, rest, _ := strings.Cut(module, ".")
	if r.packages[top] && !r.idx.TopLevel(top) {
		return rest
	}
	return module
}

// Resolve checks the declarations of one block and returns its findings,
// de-duplicated and ordered by line. Only project-local modules are checked;
// standard library, third-party and unanchored relative imports never
// produce findings.
func (r *Resolver) Resolve(block CodeBlock, decls []ImportDeclaration) []Finding {
	var findings []Finding
	for _, decl := range decls {
		module, class := r.target(decl)
		if class != ClassLocal {
			r.logger.Debug("import not checked",
				"doc", block.DocFile, "module", module, "class", class.String())
			continue
		}

		line := block.StartLine + decl.Line - 1
		path := r.indexPath(module)
		if !r.idx.HasModule(path) {
			findings = append(findings, Finding{
				DocFile:        block.DocFile,
				Line:           line,
				Module:         module,
				Classification: MissingModule,
			})
			continue
		}
		if decl.Kind == ImportPlain || decl.Wildcard {
			continue
		}

		for _, name := range decl.Names {
			// Aliases have no meaning in the source tree.
			if r.idx.Lookup(path, name.Name) != SymbolMissing {
				continue
			}
			findings = append(findings, Finding{
				DocFile:        block.DocFile,
				Line:           line,
				Module:         module,
				Symbol:         name.Name,
				Classification: MissingSymbol,
			})
		}
	}
	return dedupeFindings(findings)
}

// dedupeFindings drops repeated findings and orders the rest by line, then
// module, then symbol.
func dedupeFindings(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}
	seen := make(map[Finding]bool, len(findings))
	out := findings[:0]
	for _, f := range findings {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DocFile != b.DocFile {
			return a.DocFile < b.DocFile
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		return a.Symbol < b.Symbol
	})
	return out
}
