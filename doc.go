// Package docdrift detects drift between the Python examples in Markdown
// documentation and the Python source tree they describe. It never runs the
// examples: each fenced Python block is parsed with tree-sitter, its import
// statements are collected, and every project-local module and name they
// mention is looked up in a static index of the source tree.
//
// # Pipeline
//
//  1. Index: [BuildIndex] walks the source root and records, per module, the
//     names bound at module level (definitions, assignments, imports and
//     __all__ entries).
//
//  2. Extract: [ExtractBlocks] yields the fenced code blocks tagged as
//     Python, with line numbers measured against the document.
//
//  3. Parse: [ParseImports] turns a block into import declarations.
//     Blocks with syntax errors keep their well-formed imports.
//
//  4. Resolve: a [Resolver] classifies each imported module as standard
//     library, third-party or project-local and reports MISSING_MODULE and
//     MISSING_SYMBOL findings for the local ones.
//
// # Usage
//
//	e := docdrift.New("src",
//		docdrift.WithResolverOptions(docdrift.WithPackages("mypkg")),
//	)
//	report, err := e.Check(ctx, []string{"README.md"})
//	if err != nil { ... }
//	if report.DriftDetected() { ... }
//
// Modules that use a star import or a module-level __getattr__ are open:
// names imported from them are never reported missing.
package docdrift
