package mdpress

import "regexp"

// Highlight placeholders use Unicode Private Use Area characters.
// They pass through the Markdown parser untouched, so ==text== can be
// recognized without teaching the parser a non-standard span syntax.
// The tree conversion turns placeholder runs into highlight nodes.
const (
	markStartPlaceholder = "" // U+E000: Private Use Area start
	markEndPlaceholder   = "" // U+E001: Private Use Area end
)

// Precompiled regex patterns for performance.
var (
	// Line ending normalization
	crlfOrCR = regexp.MustCompile(`\r\n?`)

	// Compress multiple blank lines to max 2
	multipleBlankLines = regexp.MustCompile(`\n{3,}`)

	// Highlight syntax ==text==
	highlightPattern = regexp.MustCompile(`==([^=\n]+)==`)
)

// preprocess applies source-level transformations before parsing.
// Order matters: normalize line endings first, then syntax conversion,
// then blank-line compression.
func preprocess(content string) string {
	content = normalizeLineEndings(content)
	content = convertHighlights(content)
	content = compressBlankLines(content)
	return content
}

// normalizeLineEndings converts \r\n and \r to \n.
func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

// compressBlankLines limits consecutive blank lines to 2 maximum.
func compressBlankLines(content string) string {
	return multipleBlankLines.ReplaceAllString(content, "\n\n")
}

// convertHighlights transforms ==text== into placeholder markers.
func convertHighlights(content string) string {
	return highlightPattern.ReplaceAllString(content, markStartPlaceholder+"$1"+markEndPlaceholder)
}
