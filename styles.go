package mdpress

import (
	"fmt"
	"sort"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/mdpress/mdpress/internal/assets"
)

// Style template identifiers. The set is fixed; registration happens
// once at process start and lookups are read-only afterwards.
const (
	TemplateDocument = "document"
	TemplateClean    = "clean"
	TemplateAcademic = "academic"
)

// StyleTemplate is an immutable named visual definition: stylesheet,
// syntax highlighting palette, and default page geometry. Safe to share
// across concurrent requests without locking.
type StyleTemplate struct {
	Name        string
	CSS         string // full stylesheet including highlighting classes
	ChromaStyle string // chroma palette name
	Page        PageSettings
}

// templateSpec pairs a template id with its non-CSS attributes.
var templateSpecs = map[string]struct {
	chromaStyle string
	page        PageSettings
}{
	TemplateDocument: {
		chromaStyle: "github",
		page:        PageSettings{Size: PageSizeLetter, Orientation: OrientationPortrait, Margin: DefaultMargin},
	},
	TemplateClean: {
		chromaStyle: "friendly",
		page:        PageSettings{Size: PageSizeA4, Orientation: OrientationPortrait, Margin: 0.75},
	},
	TemplateAcademic: {
		chromaStyle: "tango",
		page:        PageSettings{Size: PageSizeA4, Orientation: OrientationPortrait, Margin: 1.0},
	},
}

// Registry holds the fixed style template set. Built once by
// NewRegistry; safe for unlimited concurrent readers.
type Registry struct {
	templates map[string]*StyleTemplate
}

// NewRegistry loads every embedded template and precomputes its full
// stylesheet, including the chroma class definitions for its palette.
func NewRegistry() (*Registry, error) {
	formatter := chromahtml.New(chromahtml.WithClasses(true))

	r := &Registry{templates: make(map[string]*StyleTemplate, len(templateSpecs))}
	for id, spec := range templateSpecs {
		css, err := assets.LoadStyle(id)
		if err != nil {
			return nil, fmt.Errorf("loading template %q: %w", id, err)
		}

		var chromaCSS strings.Builder
		if err := formatter.WriteCSS(&chromaCSS, styles.Get(spec.chromaStyle)); err != nil {
			return nil, fmt.Errorf("building highlight CSS for %q: %w", id, err)
		}

		r.templates[id] = &StyleTemplate{
			Name:        id,
			CSS:         css + "\n/* syntax highlighting */\n" + chromaCSS.String(),
			ChromaStyle: spec.chromaStyle,
			Page:        spec.page,
		}
	}
	return r, nil
}

// Get returns the template for id, or ErrUnknownTemplate when id is
// outside the fixed set.
func (r *Registry) Get(id string) (*StyleTemplate, error) {
	tpl, ok := r.templates[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return tpl, nil
}

// IDs returns the registered template identifiers, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
