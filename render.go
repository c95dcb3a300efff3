package mdpress

import (
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Task list marker glyphs. Rendered as styled spans instead of the
// literal [x]/[ ] character sequences.
const (
	taskCheckedGlyph   = "☑" // ☑
	taskUncheckedGlyph = "☐" // ☐
)

// styledDocumentTemplate wraps rendered body markup in a complete HTML5
// document with the resolved template CSS inlined.
const styledDocumentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Document</title>
<style>
%s
</style>
</head>
<body class="tpl-%s">
%s
</body>
</html>`

// styledRenderer serializes a semantic tree into styled HTML. Pure
// function of (tree, template); safe for concurrent use.
type styledRenderer struct {
	formatter *chromahtml.Formatter
}

// newStyledRenderer creates a renderer with a chroma formatter that
// emits CSS classes (stylesheet control stays with the template).
func newStyledRenderer() *styledRenderer {
	return &styledRenderer{
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
	}
}

// Render walks the tree in document order and produces a standalone
// styled HTML document for the given template.
func (r *styledRenderer) Render(doc *Node, tpl *StyleTemplate) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("rendering styled markup: nil document")
	}
	var b strings.Builder
	for _, c := range doc.Children {
		r.writeNode(&b, c, tpl)
	}
	return fmt.Sprintf(styledDocumentTemplate, tpl.CSS, tpl.Name, b.String()), nil
}

// writeNode emits the structural rule for one node. Every known kind
// maps to exactly one rule; unknown kinds fall through to a generic
// container so future variants never fail.
func (r *styledRenderer) writeNode(b *strings.Builder, n *Node, tpl *StyleTemplate) {
	switch n.Kind {
	case NodeHeading:
		level := n.Level
		if level < 1 || level > 6 {
			level = 6
		}
		fmt.Fprintf(b, "<h%d>", level)
		r.writeChildren(b, n, tpl)
		fmt.Fprintf(b, "</h%d>\n", level)

	case NodeParagraph:
		b.WriteString("<p>")
		r.writeChildren(b, n, tpl)
		b.WriteString("</p>\n")

	case NodeText:
		b.WriteString(html.EscapeString(n.Literal))

	case NodeEmphasis:
		tag := "em"
		switch n.Emphasis {
		case EmphasisBold:
			tag = "strong"
		case EmphasisStrike:
			tag = "del"
		}
		b.WriteString("<" + tag + ">")
		r.writeChildren(b, n, tpl)
		b.WriteString("</" + tag + ">")

	case NodeHighlight:
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(n.Literal))
		b.WriteString("</mark>")

	case NodeCodeSpan:
		b.WriteString(`<code class="inline-code">`)
		b.WriteString(html.EscapeString(n.Literal))
		b.WriteString("</code>")

	case NodeList:
		r.writeList(b, n, tpl)

	case NodeListItem:
		r.writeListItem(b, n, tpl)

	case NodeTable:
		r.writeTable(b, n, tpl)

	case NodeCodeBlock:
		r.writeCodeBlock(b, n, tpl)

	case NodeMath:
		if n.Display {
			b.WriteString(`<div class="math math-display">\[`)
			b.WriteString(html.EscapeString(n.Literal))
			b.WriteString(`\]</div>` + "\n")
		} else {
			b.WriteString(`<span class="math math-inline">\(`)
			b.WriteString(html.EscapeString(n.Literal))
			b.WriteString(`\)</span>`)
		}

	case NodeLink:
		fmt.Fprintf(b, `<a href="%s"`, html.EscapeString(safeURL(n.Destination)))
		if n.Title != "" {
			fmt.Fprintf(b, ` title="%s"`, html.EscapeString(n.Title))
		}
		b.WriteString(">")
		r.writeChildren(b, n, tpl)
		b.WriteString("</a>")

	case NodeImage:
		fmt.Fprintf(b, `<img src="%s" alt="%s"`, html.EscapeString(safeURL(n.Destination)), html.EscapeString(n.Alt))
		if n.Title != "" {
			fmt.Fprintf(b, ` title="%s"`, html.EscapeString(n.Title))
		}
		b.WriteString(" />")

	case NodeFootnoteRef:
		fmt.Fprintf(b, `<sup class="footnote-ref"><a href="#fn:%d">%d</a></sup>`, n.FootnoteID, n.FootnoteID)

	case NodeFootnoteDef:
		fmt.Fprintf(b, `<div class="footnote" id="fn:%d"><span class="footnote-label">%d.</span> `, n.FootnoteID, n.FootnoteID)
		r.writeChildren(b, n, tpl)
		b.WriteString("</div>\n")

	case NodeBlockquote:
		b.WriteString("<blockquote>\n")
		r.writeChildren(b, n, tpl)
		b.WriteString("</blockquote>\n")

	case NodeThematicBreak:
		b.WriteString("<hr />\n")

	case NodeHardBreak:
		b.WriteString("<br />\n")

	case NodeDocument:
		r.writeChildren(b, n, tpl)

	default:
		// Forward compatibility: best-effort container, never fail.
		b.WriteString(`<div class="node">`)
		r.writeChildren(b, n, tpl)
		b.WriteString("</div>\n")
	}
}

func (r *styledRenderer) writeChildren(b *strings.Builder, n *Node, tpl *StyleTemplate) {
	for _, c := range n.Children {
		r.writeNode(b, c, tpl)
	}
}

func (r *styledRenderer) writeList(b *strings.Builder, n *Node, tpl *StyleTemplate) {
	switch n.List {
	case ListOrdered:
		if n.Start > 1 {
			fmt.Fprintf(b, `<ol start="%d">`+"\n", n.Start)
		} else {
			b.WriteString("<ol>\n")
		}
		r.writeChildren(b, n, tpl)
		b.WriteString("</ol>\n")
	case ListTask:
		b.WriteString(`<ul class="task-list">` + "\n")
		r.writeChildren(b, n, tpl)
		b.WriteString("</ul>\n")
	default:
		b.WriteString("<ul>\n")
		r.writeChildren(b, n, tpl)
		b.WriteString("</ul>\n")
	}
}

func (r *styledRenderer) writeListItem(b *strings.Builder, n *Node, tpl *StyleTemplate) {
	if !n.Task {
		b.WriteString("<li>")
		r.writeChildren(b, n, tpl)
		b.WriteString("</li>\n")
		return
	}

	if n.Checked {
		b.WriteString(`<li class="task-item checked"><span class="task-marker">` + taskCheckedGlyph + "</span> ")
	} else {
		b.WriteString(`<li class="task-item"><span class="task-marker">` + taskUncheckedGlyph + "</span> ")
	}
	r.writeChildren(b, n, tpl)
	b.WriteString("</li>\n")
}

// writeTable renders rows grouped into thead/tbody, keeping the column
// alignment hints from the source syntax.
func (r *styledRenderer) writeTable(b *strings.Builder, n *Node, tpl *StyleTemplate) {
	b.WriteString(`<table class="md-table">` + "\n")

	inBody := false
	for _, row := range n.Children {
		if row.Kind != NodeTableRow {
			continue
		}
		cellTag := "td"
		if row.Header {
			cellTag = "th"
			b.WriteString("<thead>\n")
		} else if !inBody {
			b.WriteString("<tbody>\n")
			inBody = true
		}

		b.WriteString("<tr>")
		for i, cell := range row.Children {
			b.WriteString("<" + cellTag + alignAttr(n.Alignments, i) + ">")
			r.writeChildren(b, cell, tpl)
			b.WriteString("</" + cellTag + ">")
		}
		b.WriteString("</tr>\n")

		if row.Header {
			b.WriteString("</thead>\n")
		}
	}
	if inBody {
		b.WriteString("</tbody>\n")
	}
	b.WriteString("</table>\n")
}

// alignAttr returns the inline alignment style for column i, if any.
func alignAttr(alignments []Alignment, i int) string {
	if i >= len(alignments) {
		return ""
	}
	switch alignments[i] {
	case AlignLeft:
		return ` style="text-align:left"`
	case AlignCenter:
		return ` style="text-align:center"`
	case AlignRight:
		return ` style="text-align:right"`
	}
	return ""
}

// writeCodeBlock highlights fenced code through chroma using the lexer
// for the fence's language tag. Unknown tags and tokenizer failures
// degrade to an escaped plain block.
func (r *styledRenderer) writeCodeBlock(b *strings.Builder, n *Node, tpl *StyleTemplate) {
	lexer := lexers.Get(n.Language)
	if lexer == nil {
		lexer = lexers.Fallback
	}

	iterator, err := lexer.Tokenise(nil, n.Literal)
	if err == nil {
		var hb strings.Builder
		if ferr := r.formatter.Format(&hb, styles.Get(tpl.ChromaStyle), iterator); ferr == nil {
			b.WriteString(hb.String())
			return
		}
	}

	b.WriteString("<pre><code")
	if n.Language != "" {
		b.WriteString(` class="language-` + html.EscapeString(n.Language) + `"`)
	}
	b.WriteString(">")
	b.WriteString(html.EscapeString(n.Literal))
	b.WriteString("</code></pre>\n")
}

// safeURL rejects URL schemes that could execute script when the
// styled markup is loaded in a browser-grade engine.
func safeURL(raw string) string {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	for _, scheme := range []string{"javascript:", "vbscript:", "data:"} {
		if strings.HasPrefix(trimmed, scheme) {
			return "#"
		}
	}
	return raw
}
