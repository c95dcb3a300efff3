//go:build integration

package mdpress

import (
	"bytes"
	"context"
	"testing"
	"time"
)

// Requires a launchable Chromium. Run with: go test -tags integration
func TestChromeEngine_RenderIntegration(t *testing.T) {
	e := newChromeEngine()
	defer e.Close()

	doc, _ := NewParser().Parse("# Integration\n\nRendered by a real browser.")
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tpl, err := reg.Get(TemplateDocument)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	html, err := newStyledRenderer().Render(doc, tpl)
	if err != nil {
		t.Fatalf("Render styled markup: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	opts := &RenderOptions{Page: tpl.Page, HeaderFooter: true}
	pdf, err := e.Render(ctx, &Job{HTML: html, Doc: doc, Template: tpl}, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}

	// Browser reuse across renders.
	if _, err := e.Render(ctx, &Job{HTML: html, Doc: doc, Template: tpl}, opts); err != nil {
		t.Fatalf("second Render: %v", err)
	}
}
