// Package relocate remaps a stored span onto a view text that may differ from the
// text the span was created against.
//
// A Relocator runs an ordered list of strategies; the first one that locates the
// span wins. When none does, the stored offsets are used against the new text,
// clamped, so an annotation is never hidden just because its text drifted.
package relocate

import (
	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// Strategy names, as reported in Result.Strategy.
const (
	StrategyIdentical       = "identical"
	StrategyExact           = "exact"
	StrategyCaseInsensitive = "case_insensitive"
	StrategyWhitespace      = "whitespace"
	StrategyStale           = "stale"
)

// Anchor is a stored span: offsets into FullText, the text displayed when the span
// was created. FullText is empty for legacy rows.
type Anchor struct {
	Start    int
	End      int
	FullText string
}

// Quote returns the characters the anchor originally covered.
func (a Anchor) Quote() string {
	runes := []rune(a.FullText)
	return span.Slice(runes, span.Clamp(a.Start, a.End, len(runes)))
}

// Result is a relocated range and the strategy that produced it.
type Result struct {
	Range    span.Range
	Strategy string
}

// Strategy locates an anchor in a target text.
type Strategy interface {
	Name() string
	Locate(a Anchor, t *Target) (span.Range, bool)
}

// Relocator applies strategies in order.
type Relocator struct {
	strategies []Strategy
}

// New builds a Relocator from an explicit strategy order.
func New(strategies ...Strategy) *Relocator {
	return &Relocator{strategies: strategies}
}

// Default returns the standard chain: identical, exact, case-insensitive,
// whitespace-normalized, stale offsets.
func Default() *Relocator {
	return New(Identical{}, Exact{}, CaseInsensitive{}, Whitespace{}, Stale{})
}

// Strategies returns the configured order.
func (r *Relocator) Strategies() []Strategy {
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Relocate maps a onto current.
func (r *Relocator) Relocate(a Anchor, current string) Result {
	return r.RelocateTarget(a, NewTarget(current))
}

// RelocateTarget maps a onto a prepared target. Reuse one Target for every span of
// a view.
func (r *Relocator) RelocateTarget(a Anchor, t *Target) Result {
	for _, s := range r.strategies {
		if rng, ok := s.Locate(a, t); ok {
			return Result{Range: rng.Clamp(t.Len()), Strategy: s.Name()}
		}
	}
	rng, _ := Stale{}.Locate(a, t)
	return Result{Range: rng, Strategy: StrategyStale}
}

// RelocateAll maps every anchor onto current, preserving order.
func (r *Relocator) RelocateAll(anchors []Anchor, current string) []Result {
	t := NewTarget(current)
	out := make([]Result, len(anchors))
	for i, a := range anchors {
		out[i] = r.RelocateTarget(a, t)
	}
	return out
}
