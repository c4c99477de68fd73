package compose

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

func spanOf(id string, start, end int) entity.Span {
	return entity.Span{ID: id, Start: start, End: end, Comment: "c"}
}

func joinText(plan []Segment) string {
	var sb strings.Builder
	for _, seg := range plan {
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

func TestPlan_Lossless(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		spans []entity.Span
	}{
		{name: "no spans", text: "hello world"},
		{name: "empty text", text: "", spans: []entity.Span{spanOf("a", 0, 3)}},
		{name: "single", text: "hello world", spans: []entity.Span{spanOf("a", 6, 11)}},
		{name: "adjacent", text: "hello world", spans: []entity.Span{spanOf("a", 0, 5), spanOf("b", 5, 6)}},
		{name: "unsorted input", text: "abcdefghij", spans: []entity.Span{spanOf("b", 6, 8), spanOf("a", 1, 3)}},
		{name: "multibyte", text: "héllo wörld ✓", spans: []entity.Span{spanOf("a", 1, 4), spanOf("b", 12, 13)}},
		{name: "out of range", text: "short", spans: []entity.Span{spanOf("a", -5, 2), spanOf("b", 3, 99)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(tt.text, tt.spans)
			if got := joinText(plan); got != tt.text {
				t.Errorf("segments join to %q, want %q", got, tt.text)
			}
			prev := 0
			for _, seg := range plan {
				if seg.Start != prev {
					t.Errorf("segment %+v does not start at cursor %d", seg, prev)
				}
				if seg.End <= seg.Start {
					t.Errorf("empty segment %+v", seg)
				}
				prev = seg.End
			}
		})
	}
}

func TestPlan_OverlappingSpansRenderIndependently(t *testing.T) {
	plan := Plan("hello world", []entity.Span{spanOf("a", 0, 5), spanOf("b", 3, 8)})
	hl := Highlights(plan)
	if len(hl) != 2 {
		t.Fatalf("got %d highlights, want 2: %+v", len(hl), plan)
	}
	if hl[0].Text != "hello" || hl[0].SpanID != "a" {
		t.Errorf("first highlight = %+v", hl[0])
	}
	if hl[1].Text != "lo wo" || hl[1].SpanID != "b" {
		t.Errorf("second highlight = %+v", hl[1])
	}
	last := plan[len(plan)-1]
	if last.Kind != KindPlain || last.Text != "rld" {
		t.Errorf("trailing segment = %+v", last)
	}
}

func TestPlan_ContainedSpanKeepsCursor(t *testing.T) {
	plan := Plan("abcdefghij", []entity.Span{spanOf("outer", 0, 8), spanOf("inner", 2, 4)})
	last := plan[len(plan)-1]
	if last.Kind != KindPlain || last.Start != 8 || last.Text != "ij" {
		t.Errorf("trailing segment = %+v, want plain [8,10)", last)
	}
}

func TestPlan_OutOfRangeSpanFiltered(t *testing.T) {
	text := strings.Repeat("x", 50)
	plan := Plan(text, []entity.Span{spanOf("late", 100, 110)})
	if len(Highlights(plan)) != 0 {
		t.Errorf("span past the end must be filtered, got %+v", plan)
	}
	if len(plan) != 1 || plan[0].Text != text {
		t.Errorf("plan = %+v", plan)
	}
}

func TestClamped(t *testing.T) {
	got := Clamped([]entity.Span{
		spanOf("c", 4, 6),
		spanOf("zero", 3, 3),
		spanOf("a", -2, 1),
		spanOf("b", 4, 5),
		spanOf("inverted", 5, 2),
	}, 5)
	want := []entity.Span{spanOf("a", 0, 1), spanOf("c", 4, 5), spanOf("b", 4, 5)}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRenderHTML(t *testing.T) {
	plan := Plan("a<b & c", []entity.Span{spanOf(`x"1`, 2, 5)})
	got := RenderHTML(plan)
	want := `a&lt;<mark data-span-id="x&#34;1">b &amp;</mark> c`
	if got != want {
		t.Errorf("RenderHTML = %q, want %q", got, want)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		tr     Translator
		markup string
		offset int
		edge   Edge
		want   int
	}{
		{name: "start after closing tag", tr: TagSkipping{}, markup: "<b>foo</b>bar", offset: 3, edge: EdgeStart, want: 10},
		{name: "end before closing tag", tr: TagSkipping{}, markup: "<b>foo</b>bar", offset: 3, edge: EdgeEnd, want: 6},
		{name: "start past leading tag", tr: TagSkipping{}, markup: "<b>foo</b>bar", offset: 0, edge: EdgeStart, want: 3},
		{name: "end of text", tr: TagSkipping{}, markup: "<b>foo</b>bar", offset: 6, edge: EdgeEnd, want: 13},
		{name: "end before trailing tag", tr: TagSkipping{}, markup: "<i>ab</i>", offset: 2, edge: EdgeEnd, want: 5},
		{name: "beyond text", tr: TagSkipping{}, markup: "<i>ab</i>", offset: 9, edge: EdgeStart, want: 9},
		{name: "negative offset", tr: TagSkipping{}, markup: "<i>ab</i>", offset: -3, edge: EdgeStart, want: 3},
		{name: "unterminated tag is text", tr: TagSkipping{}, markup: "a<b", offset: 2, edge: EdgeStart, want: 2},
		{name: "tag skipping counts entity bytes", tr: TagSkipping{}, markup: "&amp;x", offset: 1, edge: EdgeStart, want: 1},
		{name: "entity is one character", tr: EntityAware{}, markup: "&amp;x", offset: 1, edge: EdgeStart, want: 5},
		{name: "numeric entity", tr: EntityAware{}, markup: "<s>&#39;</s>y", offset: 1, edge: EdgeEnd, want: 8},
		{name: "bare ampersand", tr: EntityAware{}, markup: "a & b", offset: 3, edge: EdgeStart, want: 3},
		{name: "identity multibyte", tr: Identity{}, markup: "héllo", offset: 2, edge: EdgeStart, want: 3},
		{name: "identity ignores tags", tr: Identity{}, markup: "<b>", offset: 1, edge: EdgeStart, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tr.Translate(tt.markup, tt.offset, tt.edge); got != tt.want {
				t.Errorf("Translate(%q, %d) = %d, want %d", tt.markup, tt.offset, got, tt.want)
			}
		})
	}
}

func TestTranslatorLen(t *testing.T) {
	if got := (TagSkipping{}).Len("<b>foo</b>bar"); got != 6 {
		t.Errorf("TagSkipping.Len = %d", got)
	}
	if got := (EntityAware{}).Len(`<span class="k">\begin</span>&#123;a&amp;b&#125;`); got != 11 {
		t.Errorf("EntityAware.Len = %d", got)
	}
	if got := (Identity{}).Len("héllo"); got != 5 {
		t.Errorf("Identity.Len = %d", got)
	}
}

func TestSplice(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		spans  []entity.Span
		tr     Translator
		want   string
	}{
		{
			name:   "after closing tag",
			markup: "<b>foo</b>bar",
			spans:  []entity.Span{spanOf("1", 3, 6)},
			tr:     TagSkipping{},
			want:   `<b>foo</b><mark data-span-id="1">bar</mark>`,
		},
		{
			name:   "inside tag",
			markup: "<b>foo</b>bar",
			spans:  []entity.Span{spanOf("1", 0, 3)},
			tr:     TagSkipping{},
			want:   `<b><mark data-span-id="1">foo</mark></b>bar`,
		},
		{
			name:   "plain text",
			markup: "hello world",
			spans:  []entity.Span{spanOf("b", 6, 11), spanOf("a", 0, 5)},
			tr:     Identity{},
			want:   `<mark data-span-id="a">hello</mark> <mark data-span-id="b">world</mark>`,
		},
		{
			name:   "adjacent spans close before open",
			markup: "abcd",
			spans:  []entity.Span{spanOf("a", 0, 2), spanOf("b", 2, 4)},
			tr:     Identity{},
			want:   `<mark data-span-id="a">ab</mark><mark data-span-id="b">cd</mark>`,
		},
		{
			name:   "overlapping spans",
			markup: "hello world",
			spans:  []entity.Span{spanOf("a", 0, 5), spanOf("b", 3, 8)},
			tr:     Identity{},
			want:   `<mark data-span-id="a">hel<mark data-span-id="b">lo</mark> wo</mark>rld`,
		},
		{
			name:   "escaped surface",
			markup: "a&lt;b",
			spans:  []entity.Span{spanOf("1", 1, 2)},
			tr:     EntityAware{},
			want:   `a<mark data-span-id="1">&lt;</mark>b`,
		},
		{
			name:   "filtered spans leave markup untouched",
			markup: "<i>short</i>",
			spans:  []entity.Span{spanOf("1", 100, 110), spanOf("2", 2, 2)},
			tr:     TagSkipping{},
			want:   "<i>short</i>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Splice(tt.markup, tt.spans, tt.tr); got != tt.want {
				t.Errorf("Splice = %q\nwant     %q", got, tt.want)
			}
		})
	}
}
