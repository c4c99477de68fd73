package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/relocate"
	"github.com/joseph-ayodele/extract-annotator/internal/store"
)

// SpanLister lists every span of a file.
type SpanLister interface {
	ListByFile(ctx context.Context, fileID uuid.UUID) ([]*entity.PersistedSpan, error)
}

// Service produces workbook and JSON exports of a file's annotations and imports
// JSON documents back.
type Service struct {
	spans    SpanLister
	backend  store.Backend
	maxBytes int64
	logger   *slog.Logger
}

// NewService wires the exporter. backend receives imported spans so they pass the
// same validation as interactive ones.
func NewService(spans SpanLister, backend store.Backend, maxImportBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxImportBytes <= 0 {
		maxImportBytes = 8 << 20
	}
	return &Service{spans: spans, backend: backend, maxBytes: maxImportBytes, logger: logger}
}

const sheet = "Annotations"

// ExportXLSX returns an XLSX workbook (as bytes) with one row per span of fileID.
func (s *Service) ExportXLSX(ctx context.Context, fileID uuid.UUID) ([]byte, error) {
	start := time.Now()

	spans, err := s.spans.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Job",
		"Segment",
		"Start",
		"End",
		"Highlighted Text",
		"Comment",
		"Created At",
		"Span ID",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, sp := range spans {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, sp.Context.JobID.String())
		write(2, sp.Context.Segment)
		write(3, sp.Start)
		write(4, sp.End)
		write(5, truncate(quote(sp), 500))
		write(6, sp.Comment)
		if !sp.CreatedAt.IsZero() {
			write(7, sp.CreatedAt.UTC().Format(time.RFC3339))
		}
		write(8, sp.ID)
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // job
	_ = f.SetColWidth(sheet, "B", "D", 10) // segment, offsets
	_ = f.SetColWidth(sheet, "E", "E", 48) // text
	_ = f.SetColWidth(sheet, "F", "F", 48) // comment
	_ = f.SetColWidth(sheet, "G", "G", 22) // created
	_ = f.SetColWidth(sheet, "H", "H", 38) // id

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"file_id", fileID.String(),
		"rows", len(spans),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// quote returns the text a span covered when it was stored.
func quote(sp *entity.PersistedSpan) string {
	return relocate.Anchor{Start: sp.Start, End: sp.End, FullText: sp.FullText}.Quote()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
