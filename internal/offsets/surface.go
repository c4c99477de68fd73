// Package offsets maps between positions in a rendered HTML surface and rune offsets
// into the logical text that surface displays.
//
// Only text leaves carry characters. Elements such as img or br, comments, and the
// contents of script and style contribute nothing, so a selection that crosses them
// resolves to the same offsets as one over the bare text.
package offsets

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// skipElements are elements whose text is never displayed.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
	atom.Noscript: true,
}

// Point is a position in the tree with DOM Range semantics: for a text node Offset
// counts runes into its data, for any other node it is a child index.
type Point struct {
	Node   *html.Node
	Offset int
}

type leaf struct {
	node  *html.Node
	start int
	runes int
}

type bounds struct {
	entry int
	exit  int
}

// Surface is an indexed rendering tree.
type Surface struct {
	root   *html.Node
	leaves []leaf
	nodes  map[*html.Node]bounds
	total  int
}

// Parse parses an HTML fragment as the children of a div and indexes it. U+0000,
// which the parser would drop, is read as U+FFFD so every rune still counts.
func Parse(markup string) (*Surface, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	markup = strings.ReplaceAll(markup, "\x00", "\uFFFD")
	nodes, err := html.ParseFragment(strings.NewReader(markup), root)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return NewSurface(root), nil
}

// NewSurface indexes an existing tree. The tree must not be modified afterwards.
func NewSurface(root *html.Node) *Surface {
	s := &Surface{
		root:  root,
		nodes: make(map[*html.Node]bounds),
	}
	s.index(root, false)
	return s
}

func (s *Surface) index(n *html.Node, hidden bool) {
	entry := s.total
	if n.Type == html.ElementNode && skipElements[n.DataAtom] {
		hidden = true
	}
	if n.Type == html.TextNode && !hidden {
		if count := utf8.RuneCountInString(n.Data); count > 0 {
			s.leaves = append(s.leaves, leaf{node: n, start: s.total, runes: count})
			s.total += count
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.index(c, hidden)
	}
	s.nodes[n] = bounds{entry: entry, exit: s.total}
}

// Root returns the indexed tree.
func (s *Surface) Root() *html.Node { return s.root }

// Len returns the number of characters displayed.
func (s *Surface) Len() int { return s.total }

// Text returns the logical text of the surface.
func (s *Surface) Text() string {
	var sb strings.Builder
	for _, l := range s.leaves {
		sb.WriteString(l.node.Data)
	}
	return sb.String()
}

// RangeText returns the displayed characters covered by r.
func (s *Surface) RangeText(r span.Range) string {
	return span.SliceString(s.Text(), r)
}

// Offset converts a point into a character offset. It reports false for nodes that
// are not part of the surface.
func (s *Surface) Offset(p Point) (int, bool) {
	if p.Node == nil {
		return 0, false
	}
	b, ok := s.nodes[p.Node]
	if !ok {
		return 0, false
	}
	if p.Node.Type == html.TextNode {
		width := b.exit - b.entry
		off := p.Offset
		if off < 0 {
			off = 0
		}
		if off > width {
			off = width
		}
		return b.entry + off, true
	}
	if p.Offset <= 0 {
		return b.entry, true
	}
	i := 0
	for c := p.Node.FirstChild; c != nil; c = c.NextSibling {
		if i == p.Offset {
			return s.nodes[c].entry, true
		}
		i++
	}
	return b.exit, true
}

// ResolveSelection maps a selection's anchor and focus onto a range of the logical
// text. It reports false for collapsed selections and for points outside the surface.
// The result is ordered regardless of drag direction.
func (s *Surface) ResolveSelection(anchor, focus Point) (span.Range, bool) {
	a, ok := s.Offset(anchor)
	if !ok {
		return span.Range{}, false
	}
	f, ok := s.Offset(focus)
	if !ok {
		return span.Range{}, false
	}
	if a == f {
		return span.Range{}, false
	}
	return span.Ordered(a, f), true
}

// NodeAt returns the first text leaf whose range contains offset, with the offset
// inside that leaf. The end of the text resolves to the end of the last leaf.
func (s *Surface) NodeAt(offset int) (Point, bool) {
	if len(s.leaves) == 0 || offset < 0 || offset > s.total {
		return Point{}, false
	}
	if offset == s.total {
		last := s.leaves[len(s.leaves)-1]
		return Point{Node: last.node, Offset: last.runes}, true
	}
	i := sort.Search(len(s.leaves), func(i int) bool {
		return s.leaves[i].start+s.leaves[i].runes > offset
	})
	l := s.leaves[i]
	return Point{Node: l.node, Offset: offset - l.start}, true
}

// Leaves returns the text-bearing nodes in document order.
func (s *Surface) Leaves() []*html.Node {
	out := make([]*html.Node, len(s.leaves))
	for i, l := range s.leaves {
		out[i] = l.node
	}
	return out
}
