package annotation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/repository"
	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// ListSpans returns the persisted spans of a view, ordered by start.
func (s *Service) ListSpans(ctx context.Context, vc entity.ViewContext) (_ []entity.PersistedSpan, err error) {
	ctx, sp := s.startSpan(ctx, "annotation.ListSpans")
	sp.SetAttributes(attribute.String("view", vc.Key()))
	defer func() { endSpan(sp, err) }()

	if err := validateContext(vc); err != nil {
		return nil, err
	}
	rows, err := s.spans.List(ctx, vc)
	if err != nil {
		return nil, storeError(err, "failed to list spans")
	}
	out := make([]entity.PersistedSpan, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	sp.SetAttributes(attribute.Int("span_count", len(out)))
	return out, nil
}

// CreateSpan validates and stores a span, returning its server id.
func (s *Service) CreateSpan(ctx context.Context, vc entity.ViewContext, start, end int, comment, fullText string) (_ string, err error) {
	ctx, sp := s.startSpan(ctx, "annotation.CreateSpan")
	sp.SetAttributes(attribute.String("view", vc.Key()), attribute.Int("start", start), attribute.Int("end", end))
	defer func() { endSpan(sp, err) }()

	v := s.spanValidator(vc, start, end, comment, fullText)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Warn("rejected span", "view", vc.Key(), "error", err)
		return "", err
	}

	created, err := s.spans.Create(ctx, &repository.CreateSpanRequest{
		Context:  vc,
		Start:    start,
		End:      end,
		Comment:  strings.TrimSpace(comment),
		FullText: fullText,
	})
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			return "", common.InvalidInput(err.Error())
		}
		return "", storeError(err, "failed to create span")
	}
	s.logger.Info("span created", "span_id", created.ID, "view", vc.Key(), "start", start, "end", end)
	return created.ID, nil
}

// DeleteSpan removes a span. An unknown id is a not-found error.
func (s *Service) DeleteSpan(ctx context.Context, id string) (err error) {
	ctx, sp := s.startSpan(ctx, "annotation.DeleteSpan")
	sp.SetAttributes(attribute.String("span_id", id))
	defer func() { endSpan(sp, err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return common.InvalidInput("span id is required")
	}
	deleted, err := s.spans.Delete(ctx, id)
	if err != nil {
		return storeError(err, "failed to delete span")
	}
	if !deleted {
		return common.NotFound(fmt.Sprintf("span %s not found", id))
	}
	s.logger.Info("span deleted", "span_id", id)
	return nil
}

func (s *Service) spanValidator(vc entity.ViewContext, start, end int, comment, fullText string) *common.Validator {
	v := contextValidator(vc)
	v.Field("comment", comment, common.Required, common.MaxLen(s.limits.MaxCommentLength))
	v.Field("full_text", fullText, common.MaxLen(s.limits.MaxViewTextLength))
	n := span.RuneLen(fullText)
	v.Check(start >= 0 && start < end && end <= n, "range", fmt.Sprintf("[%d,%d)", start, end),
		fmt.Sprintf("must satisfy 0 <= start < end <= %d", n))
	return v
}

func contextValidator(vc entity.ViewContext) *common.Validator {
	v := common.NewValidator()
	v.Check(vc.FileID != uuid.Nil, "file_id", vc.FileID, "is required")
	v.Check(vc.JobID != uuid.Nil, "job_id", vc.JobID, "is required")
	v.Field("segment", vc.Segment, common.NonNegative)
	return v
}

func validateContext(vc entity.ViewContext) error {
	return common.ValidateAndReturnError(contextValidator(vc))
}
