package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

// CreateSpanRequest wraps parameters for creating a span.
type CreateSpanRequest struct {
	ID       string // optional; generated when empty
	Context  entity.ViewContext
	Start    int
	End      int
	Comment  string
	FullText string
}

type SpanRepository interface {
	List(ctx context.Context, vc entity.ViewContext) ([]*entity.PersistedSpan, error)
	ListByFile(ctx context.Context, fileID uuid.UUID) ([]*entity.PersistedSpan, error)
	Get(ctx context.Context, id string) (*entity.PersistedSpan, error)
	Create(ctx context.Context, req *CreateSpanRequest) (*entity.PersistedSpan, error)
	Delete(ctx context.Context, id string) (bool, error)
	UpdateAnchor(ctx context.Context, id string, start, end int, fullText string) error
}

var spanColumns = []string{
	"id", "file_id", "job_id", "segment", "start_offset", "end_offset",
	"comment", "full_text", "created_at", "updated_at",
}

type spanRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
	now    func() time.Time
}

func NewSpanRepository(db *DB, logger *slog.Logger) SpanRepository {
	return &spanRepository{
		drv:    db.Driver,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *spanRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *spanRepository) List(ctx context.Context, vc entity.ViewContext) ([]*entity.PersistedSpan, error) {
	b := r.builder()
	query, args := b.Select(spanColumns...).
		From(b.Table(spansTable)).
		Where(entsql.And(
			entsql.EQ("file_id", vc.FileID),
			entsql.EQ("job_id", vc.JobID),
			entsql.EQ("segment", vc.Segment),
		)).
		OrderBy("start_offset", "created_at").
		Query()
	spans, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to list spans", "view", vc.Key(), "error", err)
		return nil, dbError(err, "list spans")
	}
	return spans, nil
}

func (r *spanRepository) ListByFile(ctx context.Context, fileID uuid.UUID) ([]*entity.PersistedSpan, error) {
	b := r.builder()
	query, args := b.Select(spanColumns...).
		From(b.Table(spansTable)).
		Where(entsql.EQ("file_id", fileID)).
		OrderBy("job_id", "segment", "start_offset", "created_at").
		Query()
	spans, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to list spans by file", "file_id", fileID, "error", err)
		return nil, dbError(err, "list spans by file")
	}
	return spans, nil
}

func (r *spanRepository) Get(ctx context.Context, id string) (*entity.PersistedSpan, error) {
	b := r.builder()
	query, args := b.Select(spanColumns...).
		From(b.Table(spansTable)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()
	spans, err := r.query(ctx, query, args)
	if err != nil {
		r.logger.Error("failed to get span", "span_id", id, "error", err)
		return nil, dbError(err, "get span")
	}
	if len(spans) == 0 {
		return nil, fmt.Errorf("span %s: %w", id, common.ErrNotFound)
	}
	return spans[0], nil
}

func (r *spanRepository) Create(ctx context.Context, req *CreateSpanRequest) (*entity.PersistedSpan, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := r.now()
	values := map[string]any{
		"id":           id,
		"segment":      req.Context.Segment,
		"start_offset": req.Start,
		"end_offset":   req.End,
		"comment":      req.Comment,
		"full_text":    req.FullText,
	}
	if err := spanModel.validate(values); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	query, args := r.builder().Insert(spansTable).
		Columns(spanColumns...).
		Values(id, req.Context.FileID, req.Context.JobID, req.Context.Segment, req.Start, req.End,
			req.Comment, req.FullText, now, now).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to create span", "view", req.Context.Key(), "error", err)
		return nil, dbError(err, "create span")
	}
	r.logger.Debug("span created", "span_id", id, "view", req.Context.Key())
	return &entity.PersistedSpan{
		ID:        id,
		Context:   req.Context,
		Start:     req.Start,
		End:       req.End,
		Comment:   req.Comment,
		FullText:  req.FullText,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *spanRepository) Delete(ctx context.Context, id string) (bool, error) {
	query, args := r.builder().Delete(spansTable).
		Where(entsql.EQ("id", id)).
		Query()
	var res entsql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to delete span", "span_id", id, "error", err)
		return false, dbError(err, "delete span")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbError(err, "delete span")
	}
	return n > 0, nil
}

func (r *spanRepository) UpdateAnchor(ctx context.Context, id string, start, end int, fullText string) error {
	values := map[string]any{"start_offset": start, "end_offset": end}
	if err := spanModel.validate(values); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	query, args := r.builder().Update(spansTable).
		Set("start_offset", start).
		Set("end_offset", end).
		Set("full_text", fullText).
		Set("updated_at", r.now()).
		Where(entsql.EQ("id", id)).
		Query()
	var res entsql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("failed to update span anchor", "span_id", id, "error", err)
		return dbError(err, "update span anchor")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("span %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *spanRepository) query(ctx context.Context, query string, args []any) ([]*entity.PersistedSpan, error) {
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.PersistedSpan
	for rows.Next() {
		var s entity.PersistedSpan
		if err := rows.Scan(&s.ID, &s.Context.FileID, &s.Context.JobID, &s.Context.Segment,
			&s.Start, &s.End, &s.Comment, &s.FullText, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
