package docdrift

import (
	"bytes"
	"context"
	"iter"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/docdrift/internal/runtime"
)

// DefaultLanguageTags are the fence info strings treated as Python.
var DefaultLanguageTags = []string{"python", "py", "python3", "py3"}

// Markdown block grammar node types.
const (
	mdFencedCodeBlock = "fenced_code_block"
	mdFenceDelimiter  = "fenced_code_block_delimiter"
	mdInfoString      = "info_string"
	mdLanguage        = "language"
	mdFenceContent    = "code_fence_content"
	mdBlockQuote      = "block_quote"
)

// ExtractBlocks returns the fenced code blocks of a Markdown document whose
// info string names one of tags (case-insensitive), in document order. With
// no tags, DefaultLanguageTags is used.
//
// Fences with other languages are skipped. Fences that are opened but never
// closed are skipped without affecting the blocks that follow. The document
// is parsed when iteration starts; breaking out of the loop releases the tree.
func ExtractBlocks(ctx context.Context, docFile string, src []byte, tags ...string) iter.Seq[CodeBlock] {
	if len(tags) == 0 {
		tags = DefaultLanguageTags
	}
	return func(yield func(CodeBlock) bool) {
		tree, err := runtime.Parse(ctx, src, "markdown")
		if err != nil {
			return
		}
		defer tree.Close()

		walkFences(tree.RootNode(), func(node *sitter.Node) bool {
			block, ok := fenceBlock(node, src, docFile, tags)
			if !ok {
				return true
			}
			return yield(block)
		})
	}
}

// walkFences visits fenced code blocks in document order. visit returns false
// to stop the walk.
func walkFences(node *sitter.Node, visit func(*sitter.Node) bool) bool {
	if node == nil {
		return true
	}
	if node.Type() == mdFencedCodeBlock {
		return visit(node)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if !walkFences(node.NamedChild(i), visit) {
			return false
		}
	}
	return true
}

// fenceBlock converts a fenced_code_block node into a CodeBlock. It returns
// false for unterminated fences and fences with a non-matching language.
func fenceBlock(node *sitter.Node, src []byte, docFile string, tags []string) (CodeBlock, bool) {
	var (
		delimiters int
		openEnd    uint32
		language   string
		content    *sitter.Node
	)
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case mdFenceDelimiter:
			if delimiters == 0 {
				openEnd = child.EndPoint().Row
			}
			delimiters++
		case mdInfoString:
			for j := 0; j < int(child.ChildCount()); j++ {
				if lc := child.Child(j); lc.Type() == mdLanguage {
					language = lc.Content(src)
					break
				}
			}
		case mdFenceContent:
			content = child
		}
	}

	if delimiters < 2 {
		return CodeBlock{}, false
	}
	if !matchesTag(language, tags) {
		return CodeBlock{}, false
	}

	block := CodeBlock{
		DocFile:   docFile,
		Language:  language,
		StartLine: int(openEnd) + 2,
	}
	if content != nil {
		block.StartLine = int(content.StartPoint().Row) + 1
		// Take whole lines so container indentation is the same on every line.
		start := bytes.LastIndexByte(src[:content.StartByte()], '\n') + 1
		text := string(src[start:content.EndByte()])
		if insideBlockQuote(node) {
			text = stripQuoteMarkers(text)
		}
		block.Text = dedent(text)
	}
	return block, true
}

func matchesTag(language string, tags []string) bool {
	if language == "" {
		return false
	}
	for _, tag := range tags {
		if strings.EqualFold(language, tag) {
			return true
		}
	}
	return false
}

func insideBlockQuote(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Type() == mdBlockQuote {
			return true
		}
	}
	return false
}

// stripQuoteMarkers removes one level of "> " prefixes from every line.
func stripQuoteMarkers(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, ">") {
			trimmed = strings.TrimPrefix(trimmed[1:], " ")
			lines[i] = trimmed
		}
	}
	return strings.Join(lines, "\n")
}

// dedent removes the whitespace prefix shared by all non-blank lines. The
// number of lines never changes, so block-relative line numbers stay valid.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		prefix = commonPrefix(prefix, indent)
		if prefix == "" {
			return text
		}
	}
	if prefix == "" {
		return text
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
