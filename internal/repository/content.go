package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

type ContentRepository interface {
	// Put stores the text of a view, replacing any previous version.
	Put(ctx context.Context, c *entity.Content) (*entity.Content, error)
	Get(ctx context.Context, vc entity.ViewContext) (*entity.Content, error)
}

type contentRepository struct {
	drv    *entsql.Driver
	logger *slog.Logger
	now    func() time.Time
}

func NewContentRepository(db *DB, logger *slog.Logger) ContentRepository {
	return &contentRepository{
		drv:    db.Driver,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *contentRepository) Put(ctx context.Context, c *entity.Content) (*entity.Content, error) {
	format := c.Format
	if format == "" {
		format = string(constants.DefaultFormat)
	}
	if err := contentModel.validate(map[string]any{"format": format, "segment": c.Context.Segment}); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	now := r.now()
	query, args := entsql.Dialect(r.drv.Dialect()).Insert(viewContentsTable).
		Columns("file_id", "job_id", "segment", "format", "text", "updated_at").
		Values(c.Context.FileID, c.Context.JobID, c.Context.Segment, format, c.Text, now).
		OnConflict(
			entsql.ConflictColumns("file_id", "job_id", "segment"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		r.logger.Error("failed to store view content", "view", c.Context.Key(), "error", err)
		return nil, dbError(err, "store view content")
	}
	r.logger.Debug("view content stored", "view", c.Context.Key(), "format", format, "text_len", len(c.Text))
	return &entity.Content{Context: c.Context, Format: format, Text: c.Text, UpdatedAt: now}, nil
}

func (r *contentRepository) Get(ctx context.Context, vc entity.ViewContext) (*entity.Content, error) {
	b := entsql.Dialect(r.drv.Dialect())
	query, args := b.Select("format", "text", "updated_at").
		From(b.Table(viewContentsTable)).
		Where(entsql.And(
			entsql.EQ("file_id", vc.FileID),
			entsql.EQ("job_id", vc.JobID),
			entsql.EQ("segment", vc.Segment),
		)).
		Limit(1).
		Query()

	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		r.logger.Error("failed to get view content", "view", vc.Key(), "error", err)
		return nil, dbError(err, "get view content")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, dbError(err, "get view content")
		}
		return nil, fmt.Errorf("view %s: %w", vc.Key(), common.ErrNotFound)
	}
	c := &entity.Content{Context: vc}
	if err := rows.Scan(&c.Format, &c.Text, &c.UpdatedAt); err != nil {
		return nil, dbError(err, "scan view content")
	}
	return c, nil
}
