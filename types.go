package mdpress

import (
	"fmt"
	"strings"
	"time"
)

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.25
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// MaxInputBytes is the documented ceiling on markdown input size.
const MaxInputBytes = 2 << 20 // 2 MiB

// pageDimensions maps page sizes to portrait width/height in inches.
var pageDimensions = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeA4:     {8.27, 11.69},
	PageSizeLegal:  {8.5, 14},
}

// PageSettings configures output page dimensions.
type PageSettings struct {
	Size        string  // "letter", "a4", "legal"
	Orientation string  // "portrait", "landscape"
	Margin      float64 // inches, applied to all sides
}

// Validate checks that page settings are valid.
// Returns nil if p is nil (nil means use the template's defaults).
func (p *PageSettings) Validate() error {
	if p == nil {
		return nil
	}

	if !isValidPageSize(p.Size) {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, p.Size)
	}

	if !isValidOrientation(p.Orientation) {
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, p.Orientation)
	}

	if p.Margin < MinMargin || p.Margin > MaxMargin {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, p.Margin, MinMargin, MaxMargin)
	}

	return nil
}

// Dimensions returns the page width and height in inches, accounting
// for orientation.
func (p *PageSettings) Dimensions() (width, height float64) {
	dims, ok := pageDimensions[strings.ToLower(p.Size)]
	if !ok {
		dims = pageDimensions[PageSizeLetter]
	}
	if strings.ToLower(p.Orientation) == OrientationLandscape {
		return dims[1], dims[0]
	}
	return dims[0], dims[1]
}

// isValidPageSize checks if size is a known page size (case-insensitive).
func isValidPageSize(size string) bool {
	_, ok := pageDimensions[strings.ToLower(size)]
	return ok
}

// isValidOrientation checks if orientation is valid (case-insensitive).
func isValidOrientation(orientation string) bool {
	switch strings.ToLower(orientation) {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// Request is the input bundle for one conversion. Immutable once
// created; scoped to a single request.
type Request struct {
	Markdown     string        // Markdown content (required)
	Template     string        // style template id (empty = "document")
	Page         *PageSettings // page settings (optional, nil = template defaults)
	HeaderFooter bool          // render native page header/footer with page numbers
	Deadline     time.Duration // overall wall-clock budget (0 = service default)
}

// Outcome is the result of a conversion: either a PDF payload or a
// structured failure. Exactly one of PDF and Failure is set.
type Outcome struct {
	PDF         []byte
	ContentType string
	Engine      EngineKind // tier that produced the payload

	// ParseDegraded records that malformed input was carried as
	// literal text. The conversion still succeeded.
	ParseDegraded bool

	Failure *Failure
}

// Failed reports whether the conversion produced no document.
func (o *Outcome) Failed() bool {
	return o == nil || o.Failure != nil
}

// Failure describes a terminal conversion error with enough detail for
// the boundary layer to distinguish caller errors from service errors.
type Failure struct {
	Kind    ErrorKind
	Message string
	Tiers   []TierFailure // per-tier trail when the engine chain was exhausted
}

// Retryable reports whether retrying the same request may succeed.
func (f *Failure) Retryable() bool {
	if f == nil {
		return false
	}
	return f.Kind.Retryable()
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if len(f.Tiers) == 0 {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	parts := make([]string, len(f.Tiers))
	for i, t := range f.Tiers {
		parts[i] = fmt.Sprintf("%s: %v", t.Engine, t.Err)
	}
	return fmt.Sprintf("%s: %s [%s]", f.Kind, f.Message, strings.Join(parts, "; "))
}

// RenderOptions carries everything an engine needs besides the styled
// markup itself.
type RenderOptions struct {
	Page         PageSettings
	HeaderFooter bool
}

// pdfContentType is the mime identity of every successful outcome.
const pdfContentType = "application/pdf"
