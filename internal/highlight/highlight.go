// Package highlight renders a view text as the HTML fragment a client displays.
//
// Every renderer keeps the logical text intact: parsing the fragment and joining
// its text nodes gives back Displayed(input), which has the same runes as the
// input, so offsets computed on either side agree.
package highlight

import (
	"fmt"
	"io"
	"strings"

	chroma "github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/internal/compose"
)

// Renderer turns a view text into an HTML fragment.
type Renderer func(text string) (string, error)

// DefaultStyle is the chroma style used by CSS.
const DefaultStyle = "github"

// lexerNames maps highlighted formats to chroma lexer names.
var lexerNames = map[constants.Format]string{
	constants.FormatLaTeX:    "latex",
	constants.FormatMarkdown: "markdown",
	constants.FormatJSON:     "json",
}

// Displayed returns text as an HTML surface shows it. HTML parsers drop U+0000,
// so it is shown as U+FFFD to keep one character per rune.
func Displayed(text string) string {
	return strings.ReplaceAll(text, "\x00", "\uFFFD")
}

func escape(text string) string {
	return html.EscapeString(Displayed(text))
}

// Plain escapes text.
func Plain(text string) (string, error) {
	return escape(text), nil
}

// LaTeX highlights text as TeX source.
func LaTeX(text string) (string, error) {
	return Source(lexerNames[constants.FormatLaTeX], text)
}

// Source highlights text with the named chroma lexer. Unknown names fall back to
// chroma's plain text lexer.
func Source(lexerName, text string) (string, error) {
	lexer := lexers.Get(lexerName)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	// EnsureLF would rewrite CRLF and shift every later offset.
	it, err := lexer.Tokenise(&chroma.TokeniseOptions{State: "root"}, text)
	if err != nil {
		return "", fmt.Errorf("tokenise %s: %w", lexerName, err)
	}

	var sb strings.Builder
	emitted := 0
	for tok := it(); tok != chroma.EOF; tok = it() {
		value := tok.Value
		// some lexers append a final newline; never emit more than the input
		if rest := len(text) - emitted; len(value) > rest {
			value = value[:rest]
		}
		if value == "" {
			continue
		}
		if !strings.HasPrefix(text[emitted:], value) {
			return Plain(text)
		}
		emitted += len(value)
		writeToken(&sb, tok.Type, value)
	}
	if emitted != len(text) {
		return Plain(text)
	}
	return sb.String(), nil
}

func writeToken(sb *strings.Builder, tt chroma.TokenType, value string) {
	class := tokenClass(tt)
	if class == "" {
		sb.WriteString(escape(value))
		return
	}
	sb.WriteString(`<span class="`)
	sb.WriteString(class)
	sb.WriteString(`">`)
	sb.WriteString(escape(value))
	sb.WriteString(`</span>`)
}

// tokenClass returns the short CSS class chroma's HTML formatter uses for tt,
// walking up to the token category when the exact type has none.
func tokenClass(tt chroma.TokenType) string {
	for t := tt; ; {
		if class, ok := chroma.StandardTypes[t]; ok && class != "" {
			return class
		}
		switch parent := t.SubCategory(); {
		case parent != t:
			t = parent
		case t.Category() != t:
			t = t.Category()
		default:
			return ""
		}
	}
}

// ForFormat returns the renderer for format and the translator that maps text
// offsets into its output.
func ForFormat(format constants.Format) (Renderer, compose.Translator) {
	name, ok := lexerNames[format]
	if !ok {
		return Plain, compose.EntityAware{}
	}
	return func(text string) (string, error) { return Source(name, text) }, compose.EntityAware{}
}

// WriteCSS writes the stylesheet for the classes emitted by Source.
func WriteCSS(w io.Writer, styleName string) error {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(w, style)
}
