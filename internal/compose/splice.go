package compose

import (
	"sort"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

type insertion struct {
	at   int
	text string
	// rank orders insertions that share an index: closes before opens, inner
	// closes before outer ones.
	rank  int
	order int
}

// Splice wraps every span of the logical text in a mark inside surface. All edges
// are translated against the unmodified surface and the insertions are applied
// from the end of the string backwards, so no index is invalidated by an earlier
// edit.
func Splice(surface string, spans []entity.Span, tr Translator) string {
	spans = Clamped(spans, tr.Len(surface))
	if len(spans) == 0 {
		return surface
	}

	edits := make([]insertion, 0, 2*len(spans))
	for i, s := range spans {
		start := tr.Translate(surface, s.Start, EdgeStart)
		end := tr.Translate(surface, s.End, EdgeEnd)
		if end < start {
			end = start
		}
		// spans are sorted by start, so a later index opened later and closes first
		edits = append(edits,
			insertion{at: start, text: OpenMark(s.ID), rank: 1, order: i},
			insertion{at: end, text: CloseMark, rank: 0, order: -i},
		)
	}
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.at != b.at {
			return a.at > b.at
		}
		if a.rank != b.rank {
			return a.rank > b.rank
		}
		return a.order > b.order
	})

	out := []byte(surface)
	for _, e := range edits {
		out = append(out[:e.at], append([]byte(e.text), out[e.at:]...)...)
	}
	return string(out)
}
