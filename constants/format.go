package constants

import (
	"strings"
)

// Format identifies how a view text is presented on the rendered surface.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatLaTeX    Format = "latex"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

var allFormats = []Format{
	FormatPlain,
	FormatLaTeX,
	FormatMarkdown,
	FormatJSON,
}

// DefaultFormat is used when a content upload does not name one.
const DefaultFormat = FormatPlain

func FormatsAsStringSlice() []string {
	result := make([]string, len(allFormats))
	for i, f := range allFormats {
		result[i] = string(f)
	}
	return result
}

// Highlighted reports whether the format is displayed as syntax-highlighted markup
// rather than escaped plain text.
func (f Format) Highlighted() bool {
	return f != FormatPlain
}

func CanonicalizeFormat(input string) (Format, bool) {
	if input == "" {
		return DefaultFormat, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Format{
		"text":     FormatPlain,
		"txt":      FormatPlain,
		"tex":      FormatLaTeX,
		"md":       FormatMarkdown,
		"mathpix":  FormatLaTeX,
		"ocr_json": FormatJSON,
	}

	if f, ok := synonyms[normalized]; ok {
		return f, true
	}

	for _, f := range allFormats {
		if normalized == string(f) {
			return f, true
		}
	}

	return DefaultFormat, false
}
