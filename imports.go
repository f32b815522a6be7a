package docdrift

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/docdrift/internal/runtime"
)

// Python grammar node types.
const (
	pyImportStatement       = "import_statement"
	pyImportFromStatement   = "import_from_statement"
	pyFutureImportStatement = "future_import_statement"
	pyDottedName            = "dotted_name"
	pyAliasedImport         = "aliased_import"
	pyRelativeImport        = "relative_import"
	pyImportPrefix          = "import_prefix"
	pyWildcardImport        = "wildcard_import"
	pyIdentifier            = "identifier"
	pyError                 = "ERROR"
)

// ParseImports parses a code block as Python and returns its import
// declarations in source order. Imports nested in functions or other
// statements are included; everything that is not an import is ignored.
//
// Snippets are often incomplete, so parsing is tolerant: an import statement
// that itself contains a syntax error, or sits inside an error region, is
// dropped, while the remaining imports are still returned. Whenever the block
// contains an error a *BlockParseError is returned with the declarations.
func ParseImports(ctx context.Context, block CodeBlock) ([]ImportDeclaration, *BlockParseError) {
	src := []byte(block.Text)
	tree, err := runtime.Parse(ctx, src, "python")
	if err != nil {
		return nil, &BlockParseError{Line: 1, Message: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	var decls []ImportDeclaration
	walkImports(root, func(node *sitter.Node) {
		decls = append(decls, importDeclarations(node, src)...)
	})

	if root.HasError() {
		return decls, firstSyntaxError(root)
	}
	return decls, nil
}

// walkImports visits every well-formed import statement below node in source
// order, without descending into error regions.
func walkImports(node *sitter.Node, visit func(*sitter.Node)) {
	switch node.Type() {
	case pyError:
		return
	case pyImportStatement, pyImportFromStatement:
		if !node.HasError() {
			visit(node)
		}
		return
	case pyFutureImportStatement:
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walkImports(node.NamedChild(i), visit)
	}
}

// importDeclarations converts one import statement node into declarations:
// one per module for `import a, b`, one in total for `from m import a, b`.
func importDeclarations(node *sitter.Node, src []byte) []ImportDeclaration {
	line := int(node.StartPoint().Row) + 1

	if node.Type() == pyImportStatement {
		var decls []ImportDeclaration
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			name, ok := importedName(child, src)
			if !ok {
				continue
			}
			decls = append(decls, ImportDeclaration{
				Kind:   ImportPlain,
				Module: name.Name,
				Names:  []ImportedName{name},
				Line:   line,
			})
		}
		return decls
	}

	decl := ImportDeclaration{Kind: ImportFrom, Line: line}
	sawImport := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case pyRelativeImport:
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case pyImportPrefix:
					decl.Level = strings.Count(gc.Content(src), ".")
				case pyDottedName:
					decl.Module = gc.Content(src)
				}
			}
		case pyWildcardImport:
			decl.Wildcard = true
		case pyDottedName, pyIdentifier, pyAliasedImport:
			if !sawImport {
				decl.Module = child.Content(src)
				continue
			}
			if name, ok := importedName(child, src); ok {
				decl.Names = append(decl.Names, name)
			}
		}
	}
	if decl.Module == "" && decl.Level == 0 {
		return nil
	}
	return []ImportDeclaration{decl}
}

// importedName reads a dotted_name, identifier or aliased_import node.
func importedName(node *sitter.Node, src []byte) (ImportedName, bool) {
	switch node.Type() {
	case pyDottedName, pyIdentifier:
		return ImportedName{Name: node.Content(src)}, true
	case pyAliasedImport:
		var name ImportedName
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case pyDottedName:
				name.Name = child.Content(src)
			case pyIdentifier:
				if name.Name == "" {
					name.Name = child.Content(src)
				} else {
					name.Alias = child.Content(src)
				}
			}
		}
		return name, name.Name != ""
	}
	return ImportedName{}, false
}

// firstSyntaxError locates the first ERROR or MISSING node of a tree.
func firstSyntaxError(root *sitter.Node) *BlockParseError {
	var found *sitter.Node
	var visit func(*sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.Type() == pyError || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			visit(n.Child(i))
		}
	}
	visit(root)

	if found == nil {
		return &BlockParseError{Line: int(root.StartPoint().Row) + 1, Message: "syntax error"}
	}
	msg := "syntax error"
	if found.IsMissing() {
		msg = "syntax error: missing " + found.Type()
	}
	return &BlockParseError{Line: int(found.StartPoint().Row) + 1, Message: msg}
}
