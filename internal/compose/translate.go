package compose

import (
	"unicode/utf8"
)

// Edge selects which side of a span is being translated.
type Edge int

const (
	// EdgeStart maps to the index of the first covered character, past any tags
	// that precede it.
	EdgeStart Edge = iota
	// EdgeEnd maps to the index just after the last covered character, before any
	// tags that follow it.
	EdgeEnd
)

// Translator maps rune offsets of the logical text to byte indices in a surface
// string.
type Translator interface {
	// Translate returns the surface index for a logical offset.
	Translate(surface string, offset int, edge Edge) int
	// Len returns the logical length of surface in runes.
	Len(surface string) int
}

// Identity treats the surface as the logical text itself.
type Identity struct{}

func (Identity) Translate(surface string, offset int, edge Edge) int {
	return scanner{}.translate(surface, offset, edge)
}

func (Identity) Len(surface string) int { return utf8.RuneCountInString(surface) }

// TagSkipping counts every character of the surface except runs that look like a
// tag, from '<' to the next '>'.
type TagSkipping struct{}

func (TagSkipping) Translate(surface string, offset int, edge Edge) int {
	return scanner{tags: true}.translate(surface, offset, edge)
}

func (TagSkipping) Len(surface string) int { return scanner{tags: true}.count(surface) }

// EntityAware skips tags like TagSkipping and also counts a character reference
// such as &amp; or &#39; as the single character it stands for.
type EntityAware struct{}

func (EntityAware) Translate(surface string, offset int, edge Edge) int {
	return scanner{tags: true, entities: true}.translate(surface, offset, edge)
}

func (EntityAware) Len(surface string) int {
	return scanner{tags: true, entities: true}.count(surface)
}

type scanner struct {
	tags     bool
	entities bool
}

func (sc scanner) translate(surface string, offset int, edge Edge) int {
	if offset < 0 {
		offset = 0
	}
	n, last := 0, 0
	for i := 0; i < len(surface); {
		if edge == EdgeEnd && n == offset {
			return last
		}
		if w := sc.skip(surface, i); w > 0 {
			i += w
			continue
		}
		if edge == EdgeStart && n == offset {
			return i
		}
		i += sc.width(surface, i)
		last = i
		n++
	}
	if edge == EdgeEnd && n == offset {
		return last
	}
	return len(surface)
}

func (sc scanner) count(surface string) int {
	n := 0
	for i := 0; i < len(surface); {
		if w := sc.skip(surface, i); w > 0 {
			i += w
			continue
		}
		i += sc.width(surface, i)
		n++
	}
	return n
}

// skip returns the width of a tag starting at i, or zero. An unterminated '<' is
// text.
func (sc scanner) skip(s string, i int) int {
	if !sc.tags || s[i] != '<' {
		return 0
	}
	for j := i + 1; j < len(s); j++ {
		if s[j] == '>' {
			return j - i + 1
		}
	}
	return 0
}

// width returns the byte width of the logical character at i.
func (sc scanner) width(s string, i int) int {
	if sc.entities && s[i] == '&' {
		if w := entityWidth(s, i); w > 0 {
			return w
		}
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return size
}

// maxEntityLen bounds the scan for a character reference terminator.
const maxEntityLen = 32

func entityWidth(s string, i int) int {
	end := i + maxEntityLen
	if end > len(s) {
		end = len(s)
	}
	for j := i + 1; j < end; j++ {
		c := s[j]
		switch {
		case c == ';':
			if j == i+1 {
				return 0
			}
			return j - i + 1
		case c == '#' && j == i+1:
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return 0
		}
	}
	return 0
}
