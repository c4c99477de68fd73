// Package annotation is the server side of the span backend: it validates and
// persists spans, stores view texts and renders annotated views.
package annotation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/internal/async"
	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/relocate"
	"github.com/joseph-ayodele/extract-annotator/internal/repository"
	"github.com/joseph-ayodele/extract-annotator/internal/store"
)

const tracerName = "github.com/joseph-ayodele/extract-annotator/internal/services/annotation"

// Service handles span and view content business logic.
type Service struct {
	spans     repository.SpanRepository
	contents  repository.ContentRepository
	queue     async.Queue
	relocator *relocate.Relocator
	limits    common.LimitsConfig
	logger    *slog.Logger
	tracer    trace.Tracer

	renders       singleflight.Group
	renderTimeout time.Duration
}

var _ store.Backend = (*Service)(nil)

type Option func(*Service)

func WithLimits(l common.LimitsConfig) Option {
	return func(s *Service) {
		if l.MaxCommentLength > 0 {
			s.limits.MaxCommentLength = l.MaxCommentLength
		}
		if l.MaxViewTextLength > 0 {
			s.limits.MaxViewTextLength = l.MaxViewTextLength
		}
		if l.MaxImportBytes > 0 {
			s.limits.MaxImportBytes = l.MaxImportBytes
		}
	}
}

// WithRenderTimeout bounds a shared render. Zero means no bound.
func WithRenderTimeout(d time.Duration) Option {
	return func(s *Service) { s.renderTimeout = d }
}

func WithRelocator(r *relocate.Relocator) Option {
	return func(s *Service) {
		if r != nil {
			s.relocator = r
		}
	}
}

// NewService creates a new annotation service. queue may be nil, in which case
// replacing a view text does not re-anchor its spans.
func NewService(spans repository.SpanRepository, contents repository.ContentRepository, queue async.Queue, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		spans:     spans,
		contents:  contents,
		queue:     queue,
		relocator: relocate.Default(),
		limits: common.LimitsConfig{
			MaxCommentLength:  constants.MaxCommentLength,
			MaxViewTextLength: constants.MaxViewTextLength,
			MaxImportBytes:    8 << 20,
		},
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
		renderTimeout: constants.RenderTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Limits returns the effective limits.
func (s *Service) Limits() common.LimitsConfig { return s.limits }

// Spans exposes the span repository to exporters.
func (s *Service) Spans() repository.SpanRepository { return s.spans }

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

// endSpan records err on sp and ends it.
func endSpan(sp trace.Span, err error) {
	if err != nil {
		sp.RecordError(err)
		sp.SetStatus(otelcodes.Error, common.ErrorCode(err))
	}
	sp.End()
}

// storeError reports a repository failure. Failures the store marked as
// retryable stay unavailable; everything else is internal.
func storeError(err error, message string) *common.AppError {
	if common.ErrorCode(err) == common.CodeUnavailable {
		return common.NewAppError(common.CodeUnavailable, message+", retry later", err)
	}
	return common.NewAppError(common.CodeInternal, message, err)
}
