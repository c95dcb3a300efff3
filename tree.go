package mdpress

// NodeKind identifies a semantic tree node variant. The set is closed:
// the parser only produces these kinds, and the styled renderer treats
// anything else as a generic container.
type NodeKind int

const (
	NodeDocument NodeKind = iota
	NodeHeading
	NodeParagraph
	NodeText
	NodeEmphasis
	NodeHighlight
	NodeCodeSpan
	NodeList
	NodeListItem
	NodeTable
	NodeTableRow
	NodeTableCell
	NodeCodeBlock
	NodeMath
	NodeLink
	NodeImage
	NodeFootnoteRef
	NodeFootnoteDef
	NodeBlockquote
	NodeThematicBreak
	NodeHardBreak
)

// String returns the lowercase name of the kind.
func (k NodeKind) String() string {
	switch k {
	case NodeDocument:
		return "document"
	case NodeHeading:
		return "heading"
	case NodeParagraph:
		return "paragraph"
	case NodeText:
		return "text"
	case NodeEmphasis:
		return "emphasis"
	case NodeHighlight:
		return "highlight"
	case NodeCodeSpan:
		return "codespan"
	case NodeList:
		return "list"
	case NodeListItem:
		return "listitem"
	case NodeTable:
		return "table"
	case NodeTableRow:
		return "tablerow"
	case NodeTableCell:
		return "tablecell"
	case NodeCodeBlock:
		return "codeblock"
	case NodeMath:
		return "math"
	case NodeLink:
		return "link"
	case NodeImage:
		return "image"
	case NodeFootnoteRef:
		return "footnoteref"
	case NodeFootnoteDef:
		return "footnotedef"
	case NodeBlockquote:
		return "blockquote"
	case NodeThematicBreak:
		return "thematicbreak"
	case NodeHardBreak:
		return "hardbreak"
	}
	return "unknown"
}

// EmphasisKind distinguishes inline emphasis variants.
type EmphasisKind int

const (
	EmphasisItalic EmphasisKind = iota
	EmphasisBold
	EmphasisStrike
)

// ListKind distinguishes list variants. Task lists are unordered lists
// whose items carry checkbox state.
type ListKind int

const (
	ListUnordered ListKind = iota
	ListOrdered
	ListTask
)

// Alignment is a table column alignment hint from the source syntax.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Node is one element of the semantic tree. Children ordering is the
// document reading order and is preserved through every stage.
//
// Only the fields relevant to a node's Kind are set; the rest stay at
// their zero value.
type Node struct {
	Kind NodeKind

	Level       int          // NodeHeading: 1-6
	Emphasis    EmphasisKind // NodeEmphasis
	List        ListKind     // NodeList
	Start       int          // NodeList: ordered list start number
	Task        bool         // NodeListItem: item has a checkbox
	Checked     bool         // NodeListItem: checkbox state
	Language    string       // NodeCodeBlock: fence language tag
	Literal     string       // NodeText, NodeCodeSpan, NodeCodeBlock, NodeMath, NodeHighlight
	Display     bool         // NodeMath: block (display) vs inline
	Destination string       // NodeLink, NodeImage
	Title       string       // NodeLink, NodeImage
	Alt         string       // NodeImage
	FootnoteID  int          // NodeFootnoteRef, NodeFootnoteDef
	Alignments  []Alignment  // NodeTable: one per column
	Header      bool         // NodeTableRow: header row

	Children []*Node
}

// newNode returns a Node of the given kind with no children.
func newNode(kind NodeKind) *Node {
	return &Node{Kind: kind}
}

// append adds children in order, skipping nils.
func (n *Node) append(children ...*Node) {
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
}

// Walk visits n and every descendant in document order. If fn returns
// false the subtree below the current node is skipped.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// PlainText concatenates the literal text of n's subtree. Used by the
// minimal engine and by tests.
func (n *Node) PlainText() string {
	var out []byte
	n.Walk(func(c *Node) bool {
		switch c.Kind {
		case NodeText, NodeCodeSpan, NodeHighlight, NodeMath:
			out = append(out, c.Literal...)
		case NodeHardBreak:
			out = append(out, '\n')
		}
		return true
	})
	return string(out)
}
