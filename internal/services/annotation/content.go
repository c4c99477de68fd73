package annotation

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/internal/async"
	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// PutContentRequest carries an uploaded view text. Raw is decoded from Charset
// (UTF-8 when empty).
type PutContentRequest struct {
	Context entity.ViewContext
	Format  string
	Charset string
	Raw     []byte
}

// PutContentResult reports the stored content and whether re-anchoring was queued.
type PutContentResult struct {
	Content  *entity.Content
	Changed  bool
	Reanchor bool
}

// PutContent stores the text of a view. When it replaces a different text, the
// view's spans are queued for re-anchoring.
func (s *Service) PutContent(ctx context.Context, req PutContentRequest) (_ *PutContentResult, err error) {
	ctx, sp := s.startSpan(ctx, "annotation.PutContent")
	sp.SetAttributes(attribute.String("view", req.Context.Key()), attribute.Int("raw_bytes", len(req.Raw)))
	defer func() { endSpan(sp, err) }()

	v := contextValidator(req.Context)
	if req.Format != "" {
		_, ok := constants.CanonicalizeFormat(req.Format)
		v.Check(ok, "format", req.Format, "must be one of "+fmt.Sprint(constants.FormatsAsStringSlice()))
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	format, _ := constants.CanonicalizeFormat(req.Format)

	text, err := common.DecodeText(req.Raw, req.Charset)
	if err != nil {
		return nil, err
	}
	if n := span.RuneLen(text); n > s.limits.MaxViewTextLength {
		return nil, common.InvalidInput(fmt.Sprintf("text has %d characters, limit is %d", n, s.limits.MaxViewTextLength))
	}

	prev, err := s.contents.Get(ctx, req.Context)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, storeError(err, "failed to load view content")
	}

	stored, err := s.contents.Put(ctx, &entity.Content{Context: req.Context, Format: string(format), Text: text})
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return nil, common.InvalidInput(err.Error())
		}
		return nil, storeError(err, "failed to store view content")
	}

	res := &PutContentResult{Content: stored, Changed: prev == nil || prev.Text != text}
	if prev != nil && prev.Text != text && s.queue != nil {
		job := async.Job{Context: req.Context, Text: text, TraceID: sp.SpanContext().TraceID().String()}
		if qerr := s.queue.Enqueue(ctx, job); qerr != nil {
			s.logger.Warn("failed to queue re-anchoring", "view", req.Context.Key(), "error", qerr)
		} else {
			res.Reanchor = true
		}
	}
	s.logger.Info("view content stored", "view", req.Context.Key(), "format", format,
		"changed", res.Changed, "reanchor", res.Reanchor)
	return res, nil
}

// GetContent returns the stored text of a view.
func (s *Service) GetContent(ctx context.Context, vc entity.ViewContext) (_ *entity.Content, err error) {
	ctx, sp := s.startSpan(ctx, "annotation.GetContent")
	sp.SetAttributes(attribute.String("view", vc.Key()))
	defer func() { endSpan(sp, err) }()

	if err := validateContext(vc); err != nil {
		return nil, err
	}
	c, err := s.contents.Get(ctx, vc)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFound(fmt.Sprintf("no content for view %s", vc.Key()))
	}
	if err != nil {
		return nil, storeError(err, "failed to load view content")
	}
	return c, nil
}
