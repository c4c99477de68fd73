package relocate

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Target is a view text prepared for searching. Derived forms are built lazily and
// cached, so one Target can serve every span of a view. Safe for concurrent use.
type Target struct {
	text  string
	runes int

	foldOnce sync.Once
	folded   string

	normOnce sync.Once
	norm     normalized
}

// normalized is text with every whitespace run collapsed to one space. starts[i] and
// ends[i] give the original rune range that normalized rune i stands for.
type normalized struct {
	text   string
	starts []int
	ends   []int
}

// NewTarget prepares text for relocation.
func NewTarget(text string) *Target {
	return &Target{text: text, runes: utf8.RuneCountInString(text)}
}

// Text returns the target text.
func (t *Target) Text() string { return t.text }

// Len returns the target length in runes.
func (t *Target) Len() int { return t.runes }

func (t *Target) foldedText() string {
	t.foldOnce.Do(func() { t.folded = fold(t.text) })
	return t.folded
}

func (t *Target) normalizedText() normalized {
	t.normOnce.Do(func() { t.norm = collapse(t.text) })
	return t.norm
}

// fold maps every rune to a case-folded rune of its own. The mapping is one to one
// per rune so rune indices stay aligned with the source.
func fold(s string) string {
	return strings.Map(func(r rune) rune {
		return unicode.ToLower(unicode.ToUpper(r))
	}, s)
}

func collapse(s string) normalized {
	var sb strings.Builder
	n := normalized{}
	idx := 0
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if inSpace {
				n.ends[len(n.ends)-1] = idx + 1
			} else {
				sb.WriteByte(' ')
				n.starts = append(n.starts, idx)
				n.ends = append(n.ends, idx+1)
				inSpace = true
			}
		} else {
			sb.WriteRune(r)
			n.starts = append(n.starts, idx)
			n.ends = append(n.ends, idx+1)
			inSpace = false
		}
		idx++
	}
	n.text = sb.String()
	return n
}

// occurrences returns the rune index of every (possibly overlapping) occurrence of
// needle in hay.
func occurrences(hay, needle string) []int {
	if needle == "" {
		return nil
	}
	var out []int
	byteOff, runeOff := 0, 0
	for byteOff <= len(hay) {
		i := strings.Index(hay[byteOff:], needle)
		if i < 0 {
			break
		}
		runeOff += utf8.RuneCountInString(hay[byteOff : byteOff+i])
		byteOff += i
		out = append(out, runeOff)
		_, size := utf8.DecodeRuneInString(hay[byteOff:])
		byteOff += size
		runeOff++
	}
	return out
}

// nearest picks the candidate closest to hint; ties go to the earlier candidate.
func nearest(candidates []int, pos func(int) int, hint int) (int, bool) {
	best, bestDist := -1, 0
	for _, c := range candidates {
		d := pos(c) - hint
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best >= 0
}
