package annotation

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/internal/async"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/relocate"
	"github.com/joseph-ayodele/extract-annotator/internal/repository"
	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// Outcome is what re-anchoring did to one span.
type Outcome struct {
	SpanID   string                   `json:"span_id"`
	Status   constants.ReanchorStatus `json:"status"`
	Strategy string                   `json:"strategy"`
	Range    span.Range               `json:"range"`
}

// ReanchorReport lists the outcome for every span of a view.
type ReanchorReport struct {
	Context  entity.ViewContext `json:"context"`
	Outcomes []Outcome          `json:"outcomes"`
}

// Count returns how many spans ended with status.
func (r *ReanchorReport) Count(status constants.ReanchorStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Reanchorer rewrites stored anchors after a view text is replaced.
type Reanchorer struct {
	spans     repository.SpanRepository
	relocator *relocate.Relocator
	logger    *slog.Logger
	tracer    trace.Tracer
}

var _ async.Processor = (*Reanchorer)(nil)

func NewReanchorer(spans repository.SpanRepository, relocator *relocate.Relocator, logger *slog.Logger) *Reanchorer {
	if relocator == nil {
		relocator = relocate.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reanchorer{spans: spans, relocator: relocator, logger: logger, tracer: otel.Tracer(tracerName)}
}

// Process runs a queued job.
func (r *Reanchorer) Process(ctx context.Context, job async.Job) error {
	report, err := r.Reanchor(ctx, job.Context, job.Text)
	if err != nil {
		return err
	}
	if failed := report.Count(constants.ReanchorFailed); failed > 0 {
		r.logger.Warn("some spans could not be re-anchored", "view", job.Context.Key(), "failed", failed)
	}
	return nil
}

// Reanchor relocates every span of vc onto text. Spans found by a text search get
// their offsets and reference text rewritten; spans that only survive on their
// stale offsets keep the reference text they were created against.
func (r *Reanchorer) Reanchor(ctx context.Context, vc entity.ViewContext, text string) (_ *ReanchorReport, err error) {
	ctx, sp := r.tracer.Start(ctx, "annotation.Reanchor")
	sp.SetAttributes(attribute.String("view", vc.Key()))
	defer func() { endSpan(sp, err) }()

	rows, err := r.spans.List(ctx, vc)
	if err != nil {
		return nil, err
	}

	target := relocate.NewTarget(text)
	report := &ReanchorReport{Context: vc, Outcomes: make([]Outcome, 0, len(rows))}
	for _, row := range rows {
		res := r.relocator.RelocateTarget(relocate.Anchor{Start: row.Start, End: row.End, FullText: row.FullText}, target)
		o := Outcome{SpanID: row.ID, Strategy: res.Strategy, Range: res.Range}

		switch {
		case res.Range.IsEmpty():
			o.Status = constants.ReanchorDropped
		case res.Strategy == relocate.StrategyIdentical:
			o.Status = constants.ReanchorUnchanged
		case res.Strategy == relocate.StrategyStale:
			o.Status = constants.ReanchorStale
		default:
			if err := r.spans.UpdateAnchor(ctx, row.ID, res.Range.Start, res.Range.End, text); err != nil {
				r.logger.Error("failed to rewrite anchor", "span_id", row.ID, "view", vc.Key(), "error", err)
				o.Status = constants.ReanchorFailed
			} else {
				o.Status = constants.ReanchorMoved
			}
		}
		r.logger.Debug("span re-anchored", "span_id", row.ID, "status", o.Status, "strategy", o.Strategy)
		report.Outcomes = append(report.Outcomes, o)
	}

	sp.SetAttributes(
		attribute.Int("moved", report.Count(constants.ReanchorMoved)),
		attribute.Int("stale", report.Count(constants.ReanchorStale)),
	)
	r.logger.Info("view re-anchored", "view", vc.Key(), "spans", len(rows),
		"moved", report.Count(constants.ReanchorMoved),
		"unchanged", report.Count(constants.ReanchorUnchanged),
		"stale", report.Count(constants.ReanchorStale),
		"dropped", report.Count(constants.ReanchorDropped),
		"failed", report.Count(constants.ReanchorFailed))
	return report, nil
}
