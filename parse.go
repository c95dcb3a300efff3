package mdpress

import (
	"strings"

	mathjax "github.com/litao91/goldmark-mathjax"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Parser converts raw Markdown into a semantic tree. It is total: any
// input string produces a well-formed tree with a single document root,
// degrading to literal text instead of failing.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a Parser with GFM extensions, footnotes, and math
// span recognition.
func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,      // Tables, strikethrough, autolinks, task lists
			extension.Footnote, // [^1] footnotes
			mathjax.MathJax,    // $inline$ and $$block$$ math spans
		),
	)
	return &Parser{md: md}
}

// Parse converts content into a semantic tree. The returned degraded
// flag reports that some or all of the input could not be structured
// and was wrapped in literal nodes; the tree is still valid.
func (p *Parser) Parse(content string) (doc *Node, degraded bool) {
	// Worst case the whole input becomes one literal paragraph.
	defer func() {
		if r := recover(); r != nil {
			doc = literalDocument(content)
			degraded = true
		}
	}()

	src := []byte(preprocess(content))
	root := p.md.Parser().Parse(text.NewReader(src))

	doc = newNode(NodeDocument)
	doc.append(convertChildren(root, src)...)
	return doc, false
}

// literalDocument wraps raw input in a single paragraph under a
// document root.
func literalDocument(content string) *Node {
	doc := newNode(NodeDocument)
	para := newNode(NodeParagraph)
	txt := newNode(NodeText)
	txt.Literal = content
	para.append(txt)
	doc.append(para)
	return doc
}

// convertChildren converts every child of n in document order.
func convertChildren(n ast.Node, src []byte) []*Node {
	var out []*Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, convert(c, src)...)
	}
	return out
}

// convert maps one goldmark AST node onto zero or more semantic nodes.
// Unrecognized AST kinds are transparent: their children are spliced
// into the parent so content is never dropped.
func convert(n ast.Node, src []byte) []*Node {
	switch v := n.(type) {
	case *ast.Heading:
		h := newNode(NodeHeading)
		h.Level = v.Level
		h.append(convertChildren(v, src)...)
		return []*Node{h}

	case *ast.Paragraph, *ast.TextBlock:
		p := newNode(NodeParagraph)
		p.append(convertChildren(n, src)...)
		return []*Node{p}

	case *ast.Blockquote:
		b := newNode(NodeBlockquote)
		b.append(convertChildren(v, src)...)
		return []*Node{b}

	case *ast.List:
		return []*Node{convertList(v, src)}

	case *ast.ListItem:
		return []*Node{convertListItem(v, src)}

	case *east.TaskCheckBox:
		// Absorbed by the enclosing list item.
		return nil

	case *ast.FencedCodeBlock:
		cb := newNode(NodeCodeBlock)
		cb.Language = string(v.Language(src))
		cb.Literal = restoreHighlights(blockLines(v, src))
		return []*Node{cb}

	case *ast.CodeBlock:
		cb := newNode(NodeCodeBlock)
		cb.Literal = restoreHighlights(blockLines(v, src))
		return []*Node{cb}

	case *ast.ThematicBreak:
		return []*Node{newNode(NodeThematicBreak)}

	case *ast.Text:
		return convertText(v, src)

	case *ast.String:
		return splitHighlights(string(v.Value))

	case *ast.Emphasis:
		e := newNode(NodeEmphasis)
		if v.Level >= 2 {
			e.Emphasis = EmphasisBold
		} else {
			e.Emphasis = EmphasisItalic
		}
		e.append(convertChildren(v, src)...)
		return []*Node{e}

	case *east.Strikethrough:
		e := newNode(NodeEmphasis)
		e.Emphasis = EmphasisStrike
		e.append(convertChildren(v, src)...)
		return []*Node{e}

	case *ast.CodeSpan:
		cs := newNode(NodeCodeSpan)
		cs.Literal = restoreHighlights(inlineText(v, src))
		return []*Node{cs}

	case *ast.Link:
		l := newNode(NodeLink)
		l.Destination = string(v.Destination)
		l.Title = string(v.Title)
		l.append(convertChildren(v, src)...)
		return []*Node{l}

	case *ast.AutoLink:
		l := newNode(NodeLink)
		url := string(v.URL(src))
		l.Destination = url
		txt := newNode(NodeText)
		txt.Literal = url
		l.append(txt)
		return []*Node{l}

	case *ast.Image:
		img := newNode(NodeImage)
		img.Destination = string(v.Destination)
		img.Title = string(v.Title)
		img.Alt = inlineText(v, src)
		return []*Node{img}

	case *east.Table:
		return []*Node{convertTable(v, src)}

	case *east.FootnoteLink:
		ref := newNode(NodeFootnoteRef)
		ref.FootnoteID = v.Index
		return []*Node{ref}

	case *east.Footnote:
		def := newNode(NodeFootnoteDef)
		def.FootnoteID = v.Index
		def.append(convertChildren(v, src)...)
		return []*Node{def}

	case *east.FootnoteList:
		// Definitions keep their position; the wrapper list is transparent.
		return convertChildren(v, src)

	case *east.FootnoteBacklink:
		return nil

	case *mathjax.InlineMath:
		m := newNode(NodeMath)
		m.Literal = inlineText(v, src)
		return []*Node{m}

	case *mathjax.MathBlock:
		m := newNode(NodeMath)
		m.Display = true
		m.Literal = blockLines(v, src)
		return []*Node{m}

	case *ast.RawHTML:
		// Raw HTML is never passed through; degrade to literal text.
		var b strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			b.Write(seg.Value(src))
		}
		return splitHighlights(b.String())

	case *ast.HTMLBlock:
		txt := newNode(NodeText)
		txt.Literal = blockLines(v, src)
		return []*Node{txt}
	}

	return convertChildren(n, src)
}

// convertText splits a text segment into text, highlight, and hard
// break nodes.
func convertText(t *ast.Text, src []byte) []*Node {
	nodes := splitHighlights(string(t.Segment.Value(src)))
	switch {
	case t.HardLineBreak():
		nodes = append(nodes, newNode(NodeHardBreak))
	case t.SoftLineBreak():
		sp := newNode(NodeText)
		sp.Literal = "\n"
		nodes = append(nodes, sp)
	}
	return nodes
}

// convertList builds a list node, promoting it to a task list when any
// item carries a checkbox.
func convertList(l *ast.List, src []byte) *Node {
	list := newNode(NodeList)
	if l.IsOrdered() {
		list.List = ListOrdered
		list.Start = l.Start
	}
	task := false
	for c := l.FirstChild(); c != nil; c = c.NextSibling() {
		for _, item := range convert(c, src) {
			if item.Task {
				task = true
			}
			list.append(item)
		}
	}
	if task && list.List == ListUnordered {
		list.List = ListTask
	}
	return list
}

// convertListItem builds a list item, absorbing a leading GFM task
// checkbox into the item's checked state.
func convertListItem(li *ast.ListItem, src []byte) *Node {
	item := newNode(NodeListItem)
	if first := li.FirstChild(); first != nil {
		if cb, ok := first.FirstChild().(*east.TaskCheckBox); ok {
			item.Task = true
			item.Checked = cb.IsChecked
		}
	}
	item.append(convertChildren(li, src)...)
	return item
}

// convertTable builds a table node. Rows shorter than the widest row
// are padded with empty cells; rows are never dropped.
func convertTable(t *east.Table, src []byte) *Node {
	table := newNode(NodeTable)
	for _, a := range t.Alignments {
		table.Alignments = append(table.Alignments, tableAlignment(a))
	}

	width := len(table.Alignments)
	for c := t.FirstChild(); c != nil; c = c.NextSibling() {
		row := newNode(NodeTableRow)
		if _, ok := c.(*east.TableHeader); ok {
			row.Header = true
		}
		for cell := c.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tc := newNode(NodeTableCell)
			tc.append(convertChildren(cell, src)...)
			row.append(tc)
		}
		if len(row.Children) > width {
			width = len(row.Children)
		}
		table.append(row)
	}

	// Tie-break: pad short rows, never drop long ones.
	for _, row := range table.Children {
		for len(row.Children) < width {
			row.append(newNode(NodeTableCell))
		}
	}
	for len(table.Alignments) < width {
		table.Alignments = append(table.Alignments, AlignNone)
	}
	return table
}

// tableAlignment maps goldmark's alignment to the tree's hint.
func tableAlignment(a east.Alignment) Alignment {
	switch a {
	case east.AlignLeft:
		return AlignLeft
	case east.AlignCenter:
		return AlignCenter
	case east.AlignRight:
		return AlignRight
	}
	return AlignNone
}

// blockLines concatenates the raw source lines of a block node.
func blockLines(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

// inlineText collects the literal text beneath an inline node.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

// splitHighlights cuts a literal on highlight placeholder pairs,
// producing alternating text and highlight nodes.
func splitHighlights(s string) []*Node {
	var nodes []*Node
	appendText := func(lit string) {
		if lit == "" {
			return
		}
		txt := newNode(NodeText)
		txt.Literal = lit
		nodes = append(nodes, txt)
	}

	for {
		start := strings.Index(s, markStartPlaceholder)
		if start < 0 {
			break
		}
		rest := s[start+len(markStartPlaceholder):]
		end := strings.Index(rest, markEndPlaceholder)
		if end < 0 {
			break
		}
		appendText(s[:start])
		hl := newNode(NodeHighlight)
		hl.Literal = rest[:end]
		nodes = append(nodes, hl)
		s = rest[end+len(markEndPlaceholder):]
	}
	appendText(stripPlaceholders(s))
	return nodes
}

// restoreHighlights undoes the preprocessor's placeholder rewrite for
// verbatim contexts (code spans and fences).
func restoreHighlights(s string) string {
	s = strings.ReplaceAll(s, markStartPlaceholder, "==")
	s = strings.ReplaceAll(s, markEndPlaceholder, "==")
	return s
}

// stripPlaceholders removes unpaired placeholder characters.
func stripPlaceholders(s string) string {
	s = strings.ReplaceAll(s, markStartPlaceholder, "")
	s = strings.ReplaceAll(s, markEndPlaceholder, "")
	return s
}
