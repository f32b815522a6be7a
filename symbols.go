package docdrift

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/docdrift/internal/runtime"
)

// Python grammar node types used for top-level declarations.
const (
	pyFunctionDefinition  = "function_definition"
	pyClassDefinition     = "class_definition"
	pyDecoratedDefinition = "decorated_definition"
	pyExpressionStatement = "expression_statement"
	pyAssignment          = "assignment"
	pyAugmentedAssignment = "augmented_assignment"
	pyBlock               = "block"
	pyString              = "string"
)

// dunderAll names the module attribute that lists its public names.
const dunderAll = "__all__"

// compoundStatements are the statements whose bodies are searched one level
// deep for bindings (TYPE_CHECKING guards, try/except imports and so on).
var compoundStatements = map[string]bool{
	"if_statement":    true,
	"try_statement":   true,
	"with_statement":  true,
	"for_statement":   true,
	"while_statement": true,
}

// clauseNodes hold further blocks of a compound statement.
var clauseNodes = map[string]bool{
	"elif_clause":         true,
	"else_clause":         true,
	"except_clause":       true,
	"except_group_clause": true,
	"finally_clause":      true,
}

// unpackingTargets are assignment targets that bind each of their elements.
var unpackingTargets = map[string]bool{
	"pattern_list":       true,
	"tuple_pattern":      true,
	"list_pattern":       true,
	"list_splat_pattern": true,
	"tuple":              true,
	"list":               true,
	"list_splat":         true,
}

// moduleScan is the statically determined namespace of one source file.
type moduleScan struct {
	symbols map[string]struct{}
	open    bool // star import or module-level __getattr__
	syntax  *BlockParseError
}

// scanModule parses Python source and collects the names bound at module
// level. Nothing is executed.
func scanModule(ctx context.Context, src []byte) (*moduleScan, error) {
	tree, err := runtime.Parse(ctx, src, "python")
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	scan := &moduleScan{symbols: make(map[string]struct{})}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		scan.statement(root.NamedChild(i), src, 0)
	}
	if root.HasError() {
		scan.syntax = firstSyntaxError(root)
	}
	return scan, nil
}

func (s *moduleScan) add(name string) {
	if name != "" {
		s.symbols[name] = struct{}{}
	}
}

// statement records the bindings of one statement. depth counts how many
// compound statements enclose it; only depth 0 descends further.
func (s *moduleScan) statement(node *sitter.Node, src []byte, depth int) {
	if node.Type() == pyError || node.HasError() {
		return
	}

	switch node.Type() {
	case pyFunctionDefinition, pyClassDefinition:
		name := nodeName(node, src)
		if name == "__getattr__" && node.Type() == pyFunctionDefinition {
			s.open = true
		}
		s.add(name)

	case pyDecoratedDefinition:
		if def := node.ChildByFieldName("definition"); def != nil {
			s.statement(def, src, depth)
		}

	case pyExpressionStatement:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case pyAssignment:
				s.assignment(child, src)
			case pyAugmentedAssignment:
				if left := child.ChildByFieldName("left"); left != nil && left.Content(src) == dunderAll {
					s.dunderAll(child.ChildByFieldName("right"), src)
				}
			}
		}

	case pyImportStatement:
		for _, decl := range importDeclarations(node, src) {
			for _, name := range decl.Names {
				if name.Alias != "" {
					s.add(name.Alias)
					continue
				}
				// `import a.b` binds `a`.
				top, _, _ := strings.Cut(name.Name, ".")
				s.add(top)
			}
		}

	case pyImportFromStatement:
		for _, decl := range importDeclarations(node, src) {
			if decl.Wildcard {
				s.open = true
			}
			for _, name := range decl.Names {
				if name.Alias != "" {
					s.add(name.Alias)
				} else {
					s.add(name.Name)
				}
			}
		}

	default:
		if depth > 0 || !compoundStatements[node.Type()] {
			return
		}
		s.compound(node, src, depth+1)
	}
}

// compound visits the statements inside every block of a compound statement.
func (s *moduleScan) compound(node *sitter.Node, src []byte, depth int) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch {
		case child.Type() == pyBlock:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				s.statement(child.NamedChild(j), src, depth)
			}
		case clauseNodes[child.Type()]:
			s.compound(child, src, depth)
		}
	}
}

// assignment binds every name target of `a = b = value` style assignments,
// including annotated ones (`a: int = 1`).
func (s *moduleScan) assignment(node *sitter.Node, src []byte) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left != nil {
		s.targets(left, src)
		if left.Type() == pyIdentifier && left.Content(src) == dunderAll {
			s.dunderAll(right, src)
		}
	}
	if right != nil && right.Type() == pyAssignment {
		s.assignment(right, src)
	}
}

func (s *moduleScan) targets(node *sitter.Node, src []byte) {
	switch {
	case node.Type() == pyIdentifier:
		s.add(node.Content(src))
	case unpackingTargets[node.Type()]:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			s.targets(node.NamedChild(i), src)
		}
	}
}

// dunderAll adds the string entries of an __all__ value.
func (s *moduleScan) dunderAll(node *sitter.Node, src []byte) {
	if node == nil {
		return
	}
	if node.Type() == pyString {
		s.add(stringLiteral(node.Content(src)))
		return
	}
	switch node.Type() {
	case "list", "tuple", "binary_operator", "parenthesized_expression":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			s.dunderAll(node.NamedChild(i), src)
		}
	}
}

func nodeName(node *sitter.Node, src []byte) string {
	name := node.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return name.Content(src)
}

// stringLiteral returns the contents of a plain Python string literal, or ""
// for literals whose value is not static (f-strings).
func stringLiteral(lit string) string {
	prefix := strings.IndexAny(lit, `'"`)
	if prefix < 0 {
		return ""
	}
	if strings.ContainsAny(lit[:prefix], "fF") {
		return ""
	}
	body := lit[prefix:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(body, q) && strings.HasSuffix(body, q) && len(body) >= 2*len(q) {
			return body[len(q) : len(body)-len(q)]
		}
	}
	return ""
}
