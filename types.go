package docdrift

import "fmt"

// CodeBlock is one fenced code block extracted from a documentation file.
type CodeBlock struct {
	DocFile   string
	StartLine int // 1-based document line of the first content line
	Language  string
	Text      string
}

// ImportKind distinguishes `import x` from `from x import y`.
type ImportKind int

const (
	ImportPlain ImportKind = iota
	ImportFrom
)

func (k ImportKind) String() string {
	switch k {
	case ImportPlain:
		return "plain"
	case ImportFrom:
		return "from"
	default:
		return fmt.Sprintf("ImportKind(%d)", int(k))
	}
}

// ImportedName is one name of an import statement. Alias is empty when the
// statement has no `as` clause.
type ImportedName struct {
	Name  string
	Alias string
}

// ImportDeclaration is one import statement of a code block. A from-import
// keeps all of its names together; a plain import carries exactly one module.
type ImportDeclaration struct {
	Kind     ImportKind
	Module   string // dotted path without leading dots
	Level    int    // number of leading dots; 0 for absolute imports
	Names    []ImportedName
	Wildcard bool
	Line     int // 1-based, relative to the owning CodeBlock
}

// Relative reports whether the declaration is a relative import.
func (d ImportDeclaration) Relative() bool {
	return d.Level > 0
}

// Classification is the category of a Finding.
type Classification string

const (
	MissingSymbol Classification = "MISSING_SYMBOL"
	MissingModule Classification = "MISSING_MODULE"
)

// Finding records one piece of drift. Findings are plain values: two findings
// with equal fields are the same finding.
type Finding struct {
	DocFile        string
	Line           int
	Module         string
	Symbol         string // empty for MissingModule
	Classification Classification
}

// ModuleClass is the result of classifying an imported module's origin.
type ModuleClass int

const (
	ClassThirdParty ModuleClass = iota
	ClassStdlib
	ClassLocal
	ClassUnresolvableRelative
)

func (c ModuleClass) String() string {
	switch c {
	case ClassThirdParty:
		return "third_party"
	case ClassStdlib:
		return "stdlib"
	case ClassLocal:
		return "local"
	case ClassUnresolvableRelative:
		return "unresolvable_relative"
	default:
		return fmt.Sprintf("ModuleClass(%d)", int(c))
	}
}

// SymbolStatus is the three-way answer of an index lookup.
type SymbolStatus int

const (
	SymbolMissing SymbolStatus = iota
	SymbolResolved
	SymbolOpen // the module's namespace cannot be determined statically
)

func (s SymbolStatus) String() string {
	switch s {
	case SymbolMissing:
		return "missing"
	case SymbolResolved:
		return "resolved"
	case SymbolOpen:
		return "open"
	default:
		return fmt.Sprintf("SymbolStatus(%d)", int(s))
	}
}

// WarningKind identifies why a unit was excluded from analysis.
type WarningKind string

const (
	WarnSkippedFile  WarningKind = "skipped_file"
	WarnPartialParse WarningKind = "partial_parse"
	WarnBlockParse   WarningKind = "block_parse"
)

// Warning describes a file or code block that was skipped or only partially
// analysed. Warnings never count as drift.
type Warning struct {
	Kind    WarningKind
	File    string
	Line    int // 0 when the warning concerns a whole file
	Message string
}

func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.File, w.Message)
}
