package mdpress

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"codeberg.org/go-pdf/fpdf"
)

// Minimal engine typography, in points.
const (
	minimalBodySize = 11.0
	minimalCodeSize = 9.5
	minimalLineGap  = 1.45 // line height multiplier
)

// minimalEngine is the last-resort tier: it draws the semantic tree
// directly onto page canvases. No CSS layout, no web fonts, tables
// flattened to text rows. Always available; lowest fidelity.
type minimalEngine struct{}

func newMinimalEngine() *minimalEngine { return &minimalEngine{} }

func (e *minimalEngine) Kind() EngineKind { return EngineMinimal }

// Render walks the semantic tree and draws each block onto the page.
func (e *minimalEngine) Render(ctx context.Context, job *Job, opts *RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyCtxErr(err)
	}
	if job.Doc == nil {
		return nil, fmt.Errorf("%w: no semantic tree in job", ErrEngineRender)
	}

	page := PageSettings{Size: PageSizeLetter, Orientation: OrientationPortrait, Margin: DefaultMargin}
	headerFooter := false
	if opts != nil {
		page = opts.Page
		headerFooter = opts.HeaderFooter
	}

	orient := "P"
	if strings.ToLower(page.Orientation) == OrientationLandscape {
		orient = "L"
	}
	pdf := fpdf.New(orient, "in", fpdfSizeName(page.Size), "")
	pdf.SetMargins(page.Margin, page.Margin, page.Margin)
	pdf.SetAutoPageBreak(true, page.Margin)
	if headerFooter {
		pdf.AliasNbPages("")
		pdf.SetFooterFunc(func() {
			pdf.SetY(-page.Margin)
			pdf.SetFont("Helvetica", "", 8)
			pdf.SetTextColor(160, 160, 160)
			pdf.CellFormat(0, 0.2, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		})
	}
	pdf.AddPage()

	d := &minimalDrawer{
		pdf: pdf,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}
	for _, c := range job.Doc.Children {
		if err := ctx.Err(); err != nil {
			return nil, classifyCtxErr(err)
		}
		d.drawBlock(c, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineRender, err)
	}
	return buf.Bytes(), nil
}

// Close is a no-op: nothing is held between renders.
func (e *minimalEngine) Close() error { return nil }

// minimalDrawer holds drawing state for one render.
type minimalDrawer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// drawBlock draws one block-level node. indent is in inches.
func (d *minimalDrawer) drawBlock(n *Node, indent float64) {
	switch n.Kind {
	case NodeHeading:
		size := 22.0 - 2.0*float64(n.Level)
		if size < minimalBodySize {
			size = minimalBodySize
		}
		d.pdf.SetFont("Helvetica", "B", size)
		d.writeText(n.PlainText(), size, indent)
		d.pdf.Ln(0.1)

	case NodeParagraph:
		d.pdf.SetFont("Helvetica", "", minimalBodySize)
		d.writeText(n.PlainText(), minimalBodySize, indent)
		d.pdf.Ln(0.08)

	case NodeList:
		d.drawList(n, indent)
		d.pdf.Ln(0.08)

	case NodeCodeBlock:
		d.pdf.SetFont("Courier", "", minimalCodeSize)
		d.writeCode(strings.TrimRight(n.Literal, "\n"), indent+0.2)
		d.pdf.Ln(0.1)

	case NodeMath:
		d.pdf.SetFont("Courier", "I", minimalBodySize)
		d.writeText(n.Literal, minimalBodySize, indent+0.2)
		d.pdf.Ln(0.08)

	case NodeBlockquote:
		for _, c := range n.Children {
			d.pdf.SetFont("Helvetica", "I", minimalBodySize)
			d.drawBlock(c, indent+0.3)
		}

	case NodeTable:
		d.drawTable(n, indent)

	case NodeThematicBreak:
		d.pdf.Ln(0.1)
		x := d.pdf.GetX()
		y := d.pdf.GetY()
		w, _ := d.pdf.GetPageSize()
		_, _, right, _ := d.pdf.GetMargins()
		d.pdf.Line(x, y, w-right, y)
		d.pdf.Ln(0.15)

	case NodeFootnoteDef:
		d.pdf.SetFont("Helvetica", "", minimalBodySize-2)
		d.writeText(fmt.Sprintf("%d. %s", n.FootnoteID, n.PlainText()), minimalBodySize-2, indent)

	default:
		text := n.PlainText()
		if text == "" {
			return
		}
		d.pdf.SetFont("Helvetica", "", minimalBodySize)
		d.writeText(text, minimalBodySize, indent)
	}
}

// drawList draws list items with bullet, number, or checkbox markers.
func (d *minimalDrawer) drawList(list *Node, indent float64) {
	num := list.Start
	if num < 1 {
		num = 1
	}
	for _, item := range list.Children {
		if item.Kind != NodeListItem {
			continue
		}
		marker := "- "
		switch {
		case item.Task && item.Checked:
			marker = "[x] "
		case item.Task:
			marker = "[ ] "
		case list.List == ListOrdered:
			marker = fmt.Sprintf("%d. ", num)
			num++
		}

		d.pdf.SetFont("Helvetica", "", minimalBodySize)
		wroteFirst := false
		for _, c := range item.Children {
			switch c.Kind {
			case NodeParagraph:
				if !wroteFirst {
					d.writeText(marker+c.PlainText(), minimalBodySize, indent+0.2)
					wroteFirst = true
				} else {
					d.writeText(c.PlainText(), minimalBodySize, indent+0.4)
				}
			case NodeList:
				d.drawList(c, indent+0.25)
			default:
				d.drawBlock(c, indent+0.4)
			}
		}
		if !wroteFirst && len(item.Children) == 0 {
			d.writeText(marker, minimalBodySize, indent+0.2)
		}
	}
}

// drawTable flattens rows to pipe-separated text lines. Reduced
// fidelity is the point of this tier.
func (d *minimalDrawer) drawTable(table *Node, indent float64) {
	for _, row := range table.Children {
		if row.Kind != NodeTableRow {
			continue
		}
		cells := make([]string, 0, len(row.Children))
		for _, cell := range row.Children {
			cells = append(cells, strings.TrimSpace(cell.PlainText()))
		}
		style := ""
		if row.Header {
			style = "B"
		}
		d.pdf.SetFont("Helvetica", style, minimalBodySize)
		d.writeText(strings.Join(cells, " | "), minimalBodySize, indent)
	}
	d.pdf.Ln(0.08)
}

// writeText wraps and draws a text run at the given indent.
func (d *minimalDrawer) writeText(text string, size, indent float64) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if text == "" {
		return
	}
	lineHt := size * minimalLineGap / 72.0
	left, _, _, _ := d.pdf.GetMargins()
	d.pdf.SetX(left + indent)
	d.pdf.MultiCell(0, lineHt, d.tr(text), "", "L", false)
}

// writeCode draws preformatted text preserving its line breaks.
func (d *minimalDrawer) writeCode(text string, indent float64) {
	lineHt := minimalCodeSize * minimalLineGap / 72.0
	left, _, _, _ := d.pdf.GetMargins()
	d.pdf.SetX(left + indent)
	d.pdf.MultiCell(0, lineHt, d.tr(text), "", "L", false)
}

// fpdfSizeName maps our page size constants onto fpdf's names.
func fpdfSizeName(size string) string {
	switch strings.ToLower(size) {
	case PageSizeA4:
		return "A4"
	case PageSizeLegal:
		return "Legal"
	}
	return "Letter"
}
