package annotation

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/compose"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/highlight"
	"github.com/joseph-ayodele/extract-annotator/internal/store"
)

// RenderedView is a view text with its spans relocated and composited.
type RenderedView struct {
	Context  entity.ViewContext `json:"context"`
	Format   string             `json:"format"`
	HTML     string             `json:"html"`
	Segments []compose.Segment  `json:"segments"`
	Spans    []entity.Span      `json:"spans"`
}

// RenderView loads a view's text and spans, relocates the spans onto the text and
// splices highlight marks into the rendered markup. Concurrent renders of the
// same view share one result, which is not cut short when the caller that
// started it goes away.
func (s *Service) RenderView(ctx context.Context, vc entity.ViewContext) (_ *RenderedView, err error) {
	ctx, sp := s.startSpan(ctx, "annotation.RenderView")
	sp.SetAttributes(attribute.String("view", vc.Key()))
	defer func() { endSpan(sp, err) }()

	if err := validateContext(vc); err != nil {
		return nil, err
	}
	// the shared render outlives any one caller; each caller still stops waiting
	// when its own context ends
	ch := s.renders.DoChan(vc.Key(), func() (any, error) {
		rctx, cancel := common.WithTimeout(context.WithoutCancel(ctx), s.renderTimeout)
		defer cancel()
		return s.render(rctx, vc)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		sp.SetAttributes(attribute.Bool("shared", res.Shared))
		return res.Val.(*RenderedView), nil
	}
}

func (s *Service) render(ctx context.Context, vc entity.ViewContext) (*RenderedView, error) {
	var (
		content   *entity.Content
		persisted []entity.PersistedSpan
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.contents.Get(gctx, vc)
		if errors.Is(err, common.ErrNotFound) {
			return common.NotFound(fmt.Sprintf("no content for view %s", vc.Key()))
		}
		if err != nil {
			return storeError(err, "failed to load view content")
		}
		content = c
		return nil
	})
	g.Go(func() error {
		rows, err := s.spans.List(gctx, vc)
		if err != nil {
			return storeError(err, "failed to list spans")
		}
		persisted = make([]entity.PersistedSpan, len(rows))
		for i, r := range rows {
			persisted[i] = *r
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := store.New(nil, store.WithLogger(s.logger), store.WithRelocator(s.relocator))
	st.Load(vc, persisted, content.Text)
	spans := st.Spans()

	format, _ := constants.CanonicalizeFormat(content.Format)
	renderer, tr := highlight.ForFormat(format)
	markup, err := renderer(content.Text)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "failed to render view", err)
	}

	return &RenderedView{
		Context:  vc,
		Format:   string(format),
		HTML:     compose.Splice(markup, spans, tr),
		Segments: compose.Plan(content.Text, spans),
		Spans:    spans,
	}, nil
}
