package relocate

import (
	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// Identical uses the stored offsets when the reference text equals the target.
type Identical struct{}

func (Identical) Name() string { return StrategyIdentical }

func (Identical) Locate(a Anchor, t *Target) (span.Range, bool) {
	if a.FullText != t.Text() {
		return span.Range{}, false
	}
	return span.Clamp(a.Start, a.End, t.Len()), true
}

// Exact searches for the quoted text verbatim.
type Exact struct{}

func (Exact) Name() string { return StrategyExact }

func (Exact) Locate(a Anchor, t *Target) (span.Range, bool) {
	quote := a.Quote()
	at, ok := nearest(occurrences(t.Text(), quote), identity, a.Start)
	if !ok {
		return span.Range{}, false
	}
	return span.Range{Start: at, End: at + span.RuneLen(quote)}, true
}

// CaseInsensitive searches for the quoted text ignoring case.
type CaseInsensitive struct{}

func (CaseInsensitive) Name() string { return StrategyCaseInsensitive }

func (CaseInsensitive) Locate(a Anchor, t *Target) (span.Range, bool) {
	quote := fold(a.Quote())
	at, ok := nearest(occurrences(t.foldedText(), quote), identity, a.Start)
	if !ok {
		return span.Range{}, false
	}
	return span.Range{Start: at, End: at + span.RuneLen(quote)}, true
}

// Whitespace searches with whitespace runs collapsed to a single space on both
// sides, then maps the match back onto the original target.
type Whitespace struct{}

func (Whitespace) Name() string { return StrategyWhitespace }

func (Whitespace) Locate(a Anchor, t *Target) (span.Range, bool) {
	quote := collapse(a.Quote()).text
	if quote == "" {
		return span.Range{}, false
	}
	n := t.normalizedText()
	at, ok := nearest(occurrences(n.text, quote), func(i int) int { return n.starts[i] }, a.Start)
	if !ok {
		return span.Range{}, false
	}
	last := at + span.RuneLen(quote) - 1
	return span.Range{Start: n.starts[at], End: n.ends[last]}, true
}

// Stale applies the stored offsets to the target as they are. It always succeeds.
type Stale struct{}

func (Stale) Name() string { return StrategyStale }

func (Stale) Locate(a Anchor, t *Target) (span.Range, bool) {
	return span.Clamp(a.Start, a.End, t.Len()), true
}

func identity(i int) int { return i }
