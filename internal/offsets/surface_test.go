package offsets

import (
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

func mustParse(t *testing.T, markup string) *Surface {
	t.Helper()
	s, err := Parse(markup)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return s
}

// textNode returns the first text node whose data equals data.
func textNode(t *testing.T, s *Surface, data string) *html.Node {
	t.Helper()
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.TextNode && n.Data == data {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.Root())
	if found == nil {
		t.Fatalf("text node %q not found", data)
	}
	return found
}

func element(t *testing.T, s *Surface, a atom.Atom) *html.Node {
	t.Helper()
	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.Root())
	if found == nil {
		t.Fatalf("element %s not found", a)
	}
	return found
}

func TestParse_Text(t *testing.T) {
	s := mustParse(t, `<p>Hello <b>bold</b> &amp; <img src="x.png">more<br>text</p><script>var x = 1;</script>`)
	want := "Hello bold & moretext"
	if got := s.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if s.Len() != len([]rune(want)) {
		t.Errorf("Len() = %d", s.Len())
	}
}

func TestParse_NULKeepsRuneCount(t *testing.T) {
	s := mustParse(t, "<p>a\x00b</p>c")
	if got := s.Text(); got != "a\uFFFDbc" {
		t.Errorf("Text() = %q", got)
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}
}

func TestResolveSelection_AcrossNestedMarkup(t *testing.T) {
	s := mustParse(t, `<span class="k">\begin</span><span class="nb">{document}</span> body`)
	anchor := Point{Node: textNode(t, s, `\begin`), Offset: 1}
	focus := Point{Node: textNode(t, s, "{document}"), Offset: 9}

	r, ok := s.ResolveSelection(anchor, focus)
	if !ok {
		t.Fatal("expected a selection")
	}
	if r != (span.Range{Start: 1, End: 15}) {
		t.Errorf("got %v", r)
	}
	if got := s.RangeText(r); got != "begin{document" {
		t.Errorf("RangeText = %q", got)
	}
}

func TestResolveSelection_BackwardDrag(t *testing.T) {
	s := mustParse(t, `<p>alpha <em>beta</em> gamma</p>`)
	anchor := Point{Node: textNode(t, s, " gamma"), Offset: 3}
	focus := Point{Node: textNode(t, s, "alpha "), Offset: 2}

	r, ok := s.ResolveSelection(anchor, focus)
	if !ok {
		t.Fatal("expected a selection")
	}
	if r.Start != 2 || r.End != 13 {
		t.Errorf("got %v, want [2,13)", r)
	}
}

func TestResolveSelection_Collapsed(t *testing.T) {
	s := mustParse(t, `<p>alpha beta</p>`)
	n := textNode(t, s, "alpha beta")
	if _, ok := s.ResolveSelection(Point{Node: n, Offset: 4}, Point{Node: n, Offset: 4}); ok {
		t.Error("collapsed selection must not resolve")
	}
}

func TestResolveSelection_CollapsedAcrossNodes(t *testing.T) {
	// End of one leaf and start of the next are the same character position.
	s := mustParse(t, `<b>ab</b><i>cd</i>`)
	a := Point{Node: textNode(t, s, "ab"), Offset: 2}
	f := Point{Node: textNode(t, s, "cd"), Offset: 0}
	if _, ok := s.ResolveSelection(a, f); ok {
		t.Error("zero-width selection across a boundary must not resolve")
	}
}

func TestResolveSelection_NonTextNodesContributeZero(t *testing.T) {
	s := mustParse(t, `<p>one<img src="a.png"><br>two</p>`)
	p := element(t, s, atom.P)
	// Child index 2 of <p> is the <br>; the boundary before it sits after "one".
	r, ok := s.ResolveSelection(Point{Node: p, Offset: 2}, Point{Node: textNode(t, s, "two"), Offset: 3})
	if !ok {
		t.Fatal("expected a selection")
	}
	if r != (span.Range{Start: 3, End: 6}) || s.RangeText(r) != "two" {
		t.Errorf("got %v %q", r, s.RangeText(r))
	}
}

func TestResolveSelection_ElementBoundaries(t *testing.T) {
	s := mustParse(t, `<p>ab<b>cd</b>ef</p>`)
	p := element(t, s, atom.P)
	tests := []struct {
		offset int
		want   int
	}{
		{0, 0},
		{1, 2},
		{2, 4},
		{3, 6},
		{99, 6},
	}
	for _, tt := range tests {
		got, ok := s.Offset(Point{Node: p, Offset: tt.offset})
		if !ok || got != tt.want {
			t.Errorf("Offset(p, %d) = %d, %v; want %d", tt.offset, got, ok, tt.want)
		}
	}
}

func TestResolveSelection_UnknownNode(t *testing.T) {
	s := mustParse(t, `<p>text</p>`)
	other := &html.Node{Type: html.TextNode, Data: "text"}
	if _, ok := s.ResolveSelection(Point{Node: other, Offset: 0}, Point{Node: other, Offset: 2}); ok {
		t.Error("points outside the surface must not resolve")
	}
	if _, ok := s.ResolveSelection(Point{}, Point{}); ok {
		t.Error("nil points must not resolve")
	}
}

func TestResolveSelection_ScriptTextIgnored(t *testing.T) {
	s := mustParse(t, `<p>ab</p><style>.x{}</style><p>cd</p>`)
	style := textNode(t, s, ".x{}")
	got, ok := s.Offset(Point{Node: style, Offset: 3})
	if !ok || got != 2 {
		t.Errorf("Offset inside style = %d, %v; want 2", got, ok)
	}
}

func TestNodeAt(t *testing.T) {
	s := mustParse(t, `<p>ab<b>cd</b>ef</p>`)
	tests := []struct {
		offset int
		leaf   string
		inner  int
	}{
		{0, "ab", 0},
		{1, "ab", 1},
		{2, "cd", 0},
		{5, "ef", 1},
		{6, "ef", 2},
	}
	for _, tt := range tests {
		p, ok := s.NodeAt(tt.offset)
		if !ok {
			t.Fatalf("NodeAt(%d) not found", tt.offset)
		}
		if p.Node.Data != tt.leaf || p.Offset != tt.inner {
			t.Errorf("NodeAt(%d) = %q@%d, want %q@%d", tt.offset, p.Node.Data, p.Offset, tt.leaf, tt.inner)
		}
	}
	if _, ok := s.NodeAt(-1); ok {
		t.Error("negative offset must not resolve")
	}
	if _, ok := s.NodeAt(7); ok {
		t.Error("offset beyond text must not resolve")
	}
}

func TestNodeAt_RoundTrip(t *testing.T) {
	s := mustParse(t, `<div>héllo <span>wörld</span><br/> and <i>more</i></div>`)
	for off := 0; off <= s.Len(); off++ {
		p, ok := s.NodeAt(off)
		if !ok {
			t.Fatalf("NodeAt(%d) failed", off)
		}
		got, ok := s.Offset(p)
		if !ok || got != off {
			t.Errorf("Offset(NodeAt(%d)) = %d, %v", off, got, ok)
		}
	}
}

func TestNodeAt_EmptySurface(t *testing.T) {
	s := mustParse(t, `<img src="a.png"><br>`)
	if _, ok := s.NodeAt(0); ok {
		t.Error("surface without text must not resolve offsets")
	}
	if len(s.Leaves()) != 0 {
		t.Errorf("Leaves = %d", len(s.Leaves()))
	}
}
