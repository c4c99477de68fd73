package relocate

import (
	"testing"

	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// countingStrategy records whether it was consulted.
type countingStrategy struct {
	calls int
}

func (c *countingStrategy) Name() string { return "counting" }

func (c *countingStrategy) Locate(Anchor, *Target) (span.Range, bool) {
	c.calls++
	return span.Range{}, false
}

func TestRelocate_IdenticalFastPath(t *testing.T) {
	counting := &countingStrategy{}
	r := New(Identical{}, counting, Stale{})
	text := "The quick fox"

	got := r.Relocate(Anchor{Start: 4, End: 9, FullText: text}, text)
	if got.Range != (span.Range{Start: 4, End: 9}) {
		t.Errorf("got %v, want [4,9)", got.Range)
	}
	if got.Strategy != StrategyIdentical {
		t.Errorf("strategy = %q", got.Strategy)
	}
	if counting.calls != 0 {
		t.Errorf("search strategies consulted %d times on identical text", counting.calls)
	}
}

func TestRelocate_Default(t *testing.T) {
	tests := []struct {
		name         string
		stored       string
		start, end   int
		current      string
		wantText     string
		wantStrategy string
	}{
		{
			name:   "extra whitespace around word",
			stored: "The quick fox", start: 4, end: 9,
			current:      "The   quick   fox",
			wantText:     "quick",
			wantStrategy: StrategyExact,
		},
		{
			name:   "whitespace inside quote",
			stored: "The quick fox", start: 4, end: 13,
			current:      "The   quick   fox",
			wantText:     "quick   fox",
			wantStrategy: StrategyWhitespace,
		},
		{
			name:   "newlines collapse",
			stored: "alpha beta gamma", start: 6, end: 16,
			current:      "intro\nalpha beta\n\n  gamma",
			wantText:     "beta\n\n  gamma",
			wantStrategy: StrategyWhitespace,
		},
		{
			name:   "text shifted",
			stored: "Hello world", start: 6, end: 11,
			current:      "Preface. Hello world",
			wantText:     "world",
			wantStrategy: StrategyExact,
		},
		{
			name:   "case changed",
			stored: "Total Amount Due", start: 6, end: 12,
			current:      "TOTAL AMOUNT DUE",
			wantText:     "AMOUNT",
			wantStrategy: StrategyCaseInsensitive,
		},
		{
			name:   "unicode case",
			stored: "Straße Café", start: 7, end: 11,
			current:      "straße CAFÉ",
			wantText:     "CAFÉ",
			wantStrategy: StrategyCaseInsensitive,
		},
		{
			name:   "nearest occurrence wins",
			stored: "a b a b a b", start: 8, end: 9,
			current:      "x a b a b a b",
			wantText:     "a",
			wantStrategy: StrategyExact,
		},
		{
			name:   "no match falls back to stale offsets",
			stored: "completely different", start: 0, end: 10,
			current:      "nothing in common here",
			wantText:     "nothing in",
			wantStrategy: StrategyStale,
		},
		{
			name:   "legacy row without reference text",
			stored: "", start: 2, end: 5,
			current:      "abcdefg",
			wantText:     "cde",
			wantStrategy: StrategyStale,
		},
	}
	r := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Relocate(Anchor{Start: tt.start, End: tt.end, FullText: tt.stored}, tt.current)
			if got.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", got.Strategy, tt.wantStrategy)
			}
			if text := span.SliceString(tt.current, got.Range); text != tt.wantText {
				t.Errorf("relocated text = %q (%v), want %q", text, got.Range, tt.wantText)
			}
		})
	}
}

func TestRelocate_NearestPrefersOriginalPosition(t *testing.T) {
	got := Default().Relocate(Anchor{Start: 8, End: 9, FullText: "a b a b a b"}, "x a b a b a b")
	// Occurrences of "a" are at 2, 6 and 10; 6 and 10 are both 2 away from 8,
	// the earlier one wins.
	if got.Range != (span.Range{Start: 6, End: 7}) {
		t.Errorf("got %v, want [6,7)", got.Range)
	}
}

func TestRelocate_StaleClampsToZeroWidth(t *testing.T) {
	stored := make([]rune, 120)
	for i := range stored {
		stored[i] = 'x'
	}
	current := "short text that is exactly fifty characters long.."
	if span.RuneLen(current) != 50 {
		t.Fatalf("fixture length %d", span.RuneLen(current))
	}
	got := Default().Relocate(Anchor{Start: 100, End: 110, FullText: string(stored)}, current)
	if got.Strategy != StrategyStale {
		t.Errorf("strategy = %q", got.Strategy)
	}
	if got.Range != (span.Range{Start: 50, End: 50}) || !got.Range.IsEmpty() {
		t.Errorf("got %v, want [50,50)", got.Range)
	}
}

func TestRelocate_EmptyChainFallsBack(t *testing.T) {
	got := New().Relocate(Anchor{Start: 1, End: 3, FullText: "abc"}, "xyz")
	if got.Strategy != StrategyStale || got.Range != (span.Range{Start: 1, End: 3}) {
		t.Errorf("got %+v", got)
	}
}

func TestRelocateAll_PreservesOrder(t *testing.T) {
	stored := "one two three"
	current := "one  two  three"
	anchors := []Anchor{
		{Start: 8, End: 13, FullText: stored},
		{Start: 0, End: 3, FullText: stored},
		{Start: 4, End: 7, FullText: stored},
	}
	got := Default().RelocateAll(anchors, current)
	want := []string{"three", "one", "two"}
	for i, res := range got {
		if text := span.SliceString(current, res.Range); text != want[i] {
			t.Errorf("result %d = %q, want %q", i, text, want[i])
		}
	}
}

func TestStrategies_InIsolation(t *testing.T) {
	target := NewTarget("Hello   WORLD")
	a := Anchor{Start: 6, End: 11, FullText: "Hello world"}

	if _, ok := (Identical{}).Locate(a, target); ok {
		t.Error("Identical must not match different text")
	}
	if _, ok := (Exact{}).Locate(a, target); ok {
		t.Error("Exact must not match different case")
	}
	if r, ok := (CaseInsensitive{}).Locate(a, target); !ok || r != (span.Range{Start: 8, End: 13}) {
		t.Errorf("CaseInsensitive = %v, %v", r, ok)
	}
	if _, ok := (Whitespace{}).Locate(a, target); ok {
		t.Error("Whitespace must stay case sensitive")
	}
	if r, ok := (Stale{}).Locate(a, target); !ok || r != (span.Range{Start: 6, End: 11}) {
		t.Errorf("Stale = %v, %v", r, ok)
	}
}

func TestAnchor_Quote(t *testing.T) {
	a := Anchor{Start: -4, End: 400, FullText: "clamped"}
	if got := a.Quote(); got != "clamped" {
		t.Errorf("Quote = %q", got)
	}
}

func TestOccurrences(t *testing.T) {
	got := occurrences("ééaéé", "éé")
	want := []int{0, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	if got := occurrences("aaa", "aa"); len(got) != 2 {
		t.Errorf("overlapping occurrences = %v", got)
	}
	if occurrences("abc", "") != nil {
		t.Error("empty needle must not match")
	}
}
