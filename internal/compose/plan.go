// Package compose turns a view text and its spans into render output.
//
// Plan segments plain text into plain and highlighted runs. Splice inserts highlight
// wrappers into generated markup, using a Translator to find where a text offset
// lands inside the markup string.
package compose

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// Kind tells plain segments from highlighted ones.
type Kind int

const (
	KindPlain Kind = iota
	KindHighlight
)

func (k Kind) String() string {
	if k == KindHighlight {
		return "highlight"
	}
	return "plain"
}

// MarshalText renders the kind by name in JSON responses.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "plain":
		*k = KindPlain
	case "highlight":
		*k = KindHighlight
	default:
		return fmt.Errorf("unknown segment kind %q", b)
	}
	return nil
}

// Segment is one run of a render pass. SpanID is set on highlighted segments.
type Segment struct {
	Kind   Kind   `json:"kind"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Text   string `json:"text"`
	SpanID string `json:"span_id,omitempty"`
}

// Clamped returns the spans bounded to a text of n runes, zero-width results removed,
// sorted by start. Ties keep their input order.
func Clamped(spans []entity.Span, n int) []entity.Span {
	out := make([]entity.Span, 0, len(spans))
	for _, s := range spans {
		r := span.Clamp(s.Start, s.End, n)
		if r.IsEmpty() {
			continue
		}
		s.Start, s.End = r.Start, r.End
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Plan segments text around spans. Overlapping spans are emitted as independent
// highlights; the cursor only moves forward.
func Plan(text string, spans []entity.Span) []Segment {
	runes := []rune(text)
	var out []Segment
	emit := func(kind Kind, start, end int, id string) {
		out = append(out, Segment{
			Kind:   kind,
			Start:  start,
			End:    end,
			Text:   string(runes[start:end]),
			SpanID: id,
		})
	}

	cursor := 0
	for _, s := range Clamped(spans, len(runes)) {
		if s.Start > cursor {
			emit(KindPlain, cursor, s.Start, "")
		}
		emit(KindHighlight, s.Start, s.End, s.ID)
		if s.End > cursor {
			cursor = s.End
		}
	}
	if cursor < len(runes) {
		emit(KindPlain, cursor, len(runes), "")
	}
	return out
}

// Highlights returns only the highlighted segments of a plan.
func Highlights(plan []Segment) []Segment {
	var out []Segment
	for _, seg := range plan {
		if seg.Kind == KindHighlight {
			out = append(out, seg)
		}
	}
	return out
}

// RenderHTML writes a plan as escaped HTML with each highlight wrapped in a mark.
func RenderHTML(plan []Segment) string {
	var sb strings.Builder
	for _, seg := range plan {
		if seg.Kind == KindHighlight {
			sb.WriteString(OpenMark(seg.SpanID))
			sb.WriteString(html.EscapeString(seg.Text))
			sb.WriteString(CloseMark)
			continue
		}
		sb.WriteString(html.EscapeString(seg.Text))
	}
	return sb.String()
}

// CloseMark ends a highlight wrapper.
const CloseMark = "</mark>"

// OpenMark starts a highlight wrapper for span id.
func OpenMark(id string) string {
	return `<mark data-span-id="` + html.EscapeString(id) + `">`
}
