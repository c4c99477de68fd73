// Package span defines half-open character ranges over a view text.
//
// Offsets count runes, not bytes, so a range computed against a string stays valid
// for any representation of the same characters.
package span

import (
	"fmt"
	"unicode/utf8"
)

// Range is a half-open rune range [Start, End).
type Range struct {
	Start int `json:"start"` // inclusive
	End   int `json:"end"`   // exclusive
}

// Clamp builds a range bounded to [0, n], with End never before Start.
func Clamp(start, end, n int) Range {
	if n < 0 {
		n = 0
	}
	start = clampInt(start, 0, n)
	end = clampInt(end, start, n)
	return Range{Start: start, End: end}
}

// Ordered builds a range from two positions given in either order.
func Ordered(a, b int) Range {
	if b < a {
		a, b = b, a
	}
	return Range{Start: a, End: b}
}

// Clamp bounds r to a text of n runes.
func (r Range) Clamp(n int) Range {
	return Clamp(r.Start, r.End, n)
}

// IsEmpty reports whether the range covers no characters.
func (r Range) IsEmpty() bool {
	return r.End <= r.Start
}

// Len returns the number of runes covered, zero for inverted ranges.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether off is within [Start, End).
func (r Range) Contains(off int) bool {
	return r.Start <= off && off < r.End
}

// Overlaps reports whether two ranges share at least one rune.
// Ranges that only touch at a boundary do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Validate reports an error if the range does not fit a text of n runes.
func (r Range) Validate(n int) error {
	if r.Start < 0 {
		return fmt.Errorf("invalid range start: %d", r.Start)
	}
	if r.End < r.Start {
		return fmt.Errorf("invalid range bounds: end (%d) < start (%d)", r.End, r.Start)
	}
	if r.End > n {
		return fmt.Errorf("range end %d beyond text length %d", r.End, n)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// RuneLen returns the length of s in runes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Slice returns the runes of text covered by r after clamping.
func Slice(text []rune, r Range) string {
	r = r.Clamp(len(text))
	return string(text[r.Start:r.End])
}

// SliceString is Slice for a string.
func SliceString(s string, r Range) string {
	return Slice([]rune(s), r)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
