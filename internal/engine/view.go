// Package engine binds one view text to its span store, its rendered surface, and
// the translator between them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/extract-annotator/internal/compose"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/highlight"
	"github.com/joseph-ayodele/extract-annotator/internal/offsets"
	"github.com/joseph-ayodele/extract-annotator/internal/span"
	"github.com/joseph-ayodele/extract-annotator/internal/store"
)

// ErrSurfaceMismatch is returned by Open when the rendered surface does not show
// the view text character for character.
var ErrSurfaceMismatch = errors.New("engine: rendered surface differs from view text")

type options struct {
	render     highlight.Renderer
	translator compose.Translator
	storeOpts  []store.Option
	logger     *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithRenderer sets how the view text is turned into the displayed surface and the
// translator for that surface. The default is escaped plain text.
func WithRenderer(r highlight.Renderer, tr compose.Translator) Option {
	return func(o *options) {
		if r != nil && tr != nil {
			o.render, o.translator = r, tr
		}
	}
}

// WithStoreOptions passes options to the span store.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

// WithLogger sets the logger for the view and its store.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// View is the annotation engine for one displayed text.
type View struct {
	vc         entity.ViewContext
	text       string
	markup     string
	translator compose.Translator
	surface    *offsets.Surface
	store      *store.Store
	logger     *slog.Logger
}

// Open renders text, loads the persisted spans of vc from backend and relocates
// them onto text. It fails with ErrSurfaceMismatch when the renderer would make
// surface offsets disagree with text offsets.
func Open(ctx context.Context, backend store.Backend, vc entity.ViewContext, text string, opts ...Option) (*View, error) {
	o := options{
		render:     highlight.Plain,
		translator: compose.EntityAware{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	markup, err := o.render(text)
	if err != nil {
		return nil, fmt.Errorf("render view %s: %w", vc.Key(), err)
	}
	surface, err := offsets.Parse(markup)
	if err != nil {
		return nil, fmt.Errorf("parse view %s: %w", vc.Key(), err)
	}
	if surface.Text() != highlight.Displayed(text) {
		o.logger.Error("rendered surface differs from view text", "view", vc.Key(),
			"text_len", span.RuneLen(text), "surface_len", surface.Len())
		return nil, fmt.Errorf("view %s: %w", vc.Key(), ErrSurfaceMismatch)
	}

	st := store.New(backend, append([]store.Option{store.WithLogger(o.logger)}, o.storeOpts...)...)
	if err := st.Reload(ctx, vc, text); err != nil {
		return nil, err
	}
	return &View{
		vc:         vc,
		text:       text,
		markup:     markup,
		translator: o.translator,
		surface:    surface,
		store:      st,
		logger:     o.logger,
	}, nil
}

// Context returns the view's context.
func (v *View) Context() entity.ViewContext { return v.vc }

// Text returns the view text.
func (v *View) Text() string { return v.text }

// Surface returns the parsed rendering used to resolve selections.
func (v *View) Surface() *offsets.Surface { return v.surface }

// Store returns the span store.
func (v *View) Store() *store.Store { return v.store }

// Spans returns the current spans sorted by start.
func (v *View) Spans() []entity.Span { return v.store.Spans() }

// Plan segments the view text around the current spans.
func (v *View) Plan() []compose.Segment {
	return compose.Plan(v.text, v.store.Spans())
}

// RenderPlain renders the plan as escaped HTML with mark wrappers.
func (v *View) RenderPlain() string {
	return compose.RenderHTML(v.Plan())
}

// RenderMarkup splices mark wrappers into the rendered surface.
func (v *View) RenderMarkup() string {
	return compose.Splice(v.markup, v.store.Spans(), v.translator)
}

// Select resolves a selection on the surface to a range of the view text.
func (v *View) Select(anchor, focus offsets.Point) (span.Range, bool) {
	return v.surface.ResolveSelection(anchor, focus)
}

// Annotate creates a span over r. See store.Store.Create.
func (v *View) Annotate(ctx context.Context, r span.Range, comment string) (entity.Span, bool) {
	return v.store.Create(ctx, r.Start, r.End, comment)
}

// AnnotateSelection resolves a selection and annotates it in one step.
func (v *View) AnnotateSelection(ctx context.Context, anchor, focus offsets.Point, comment string) (entity.Span, bool) {
	r, ok := v.Select(anchor, focus)
	if !ok {
		return entity.Span{}, false
	}
	return v.Annotate(ctx, r, comment)
}

// Remove deletes a span. See store.Store.Delete.
func (v *View) Remove(ctx context.Context, id string) error {
	return v.store.Delete(ctx, id)
}

// Locate returns the text leaf where span id starts, for scrolling it into view.
func (v *View) Locate(id string) (offsets.Point, bool) {
	sp, ok := v.store.FindByID(id)
	if !ok {
		return offsets.Point{}, false
	}
	return v.surface.NodeAt(sp.Start)
}

// SpanAt returns the spans covering offset, for hover targeting.
func (v *View) SpanAt(offset int) []entity.Span {
	var out []entity.Span
	for _, sp := range v.store.Spans() {
		if (span.Range{Start: sp.Start, End: sp.End}).Contains(offset) {
			out = append(out, sp)
		}
	}
	return out
}
