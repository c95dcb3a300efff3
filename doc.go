// Package mdpress converts Markdown documents to paginated, styled PDFs.
//
// # Quick Start
//
// Create a service, convert markdown, and close when done:
//
//	svc, err := mdpress.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	outcome, err := svc.Convert(ctx, mdpress.Request{
//	    Markdown: "# Hello\n\nWorld",
//	    Template: mdpress.TemplateDocument,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("output.pdf", outcome.PDF, 0644)
//
// # Conversion Pipeline
//
// The conversion process follows these stages:
//
//  1. Markdown preprocessing (line normalization, ==highlight== syntax)
//  2. Parsing into a semantic tree (GFM tables, task lists, math, footnotes)
//  3. Rendering the tree into styled HTML against a style template
//  4. PDF rendering through a chain of engines, highest fidelity first
//
// # Engine Degradation
//
// PDF rendering tries up to four engines in order: headless Chrome
// (go-rod), a packaged renderer binary, a remote rendering service, and
// a direct page-drawing fallback that is always available. A controller
// advances through the chain on engine failure while enforcing a single
// overall deadline for the whole request. Which tiers are attempted is
// decided once per process from a Capabilities value describing the
// execution environment.
//
// # Concurrency
//
// Parsing and styled rendering are pure and run fully in parallel across
// requests. Heavyweight engine instances are shared through a bounded
// pool; every acquisition is returned on all exit paths, including
// cancellation. Style templates are immutable and safe for unlimited
// concurrent readers.
package mdpress
