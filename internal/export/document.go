package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

// DocumentVersion is the only interchange version understood.
const DocumentVersion = 1

// Document is the JSON interchange form of a file's annotations.
type Document struct {
	Version int            `json:"version"`
	FileID  string         `json:"file_id,omitempty"`
	Spans   []DocumentSpan `json:"spans"`
}

type DocumentSpan struct {
	ID        string `json:"id,omitempty"`
	JobID     string `json:"job_id"`
	Segment   int    `json:"segment"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Comment   string `json:"comment"`
	FullText  string `json:"full_text"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ImportResult counts what an import did. Errors holds one message per rejected
// span.
type ImportResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

var documentSchema = map[string]any{
	"type":     "object",
	"required": []any{"version", "spans"},
	"properties": map[string]any{
		"version": map[string]any{"const": DocumentVersion},
		"file_id": map[string]any{"type": "string"},
		"spans": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"job_id", "segment", "start", "end", "comment", "full_text"},
				"properties": map[string]any{
					"id":         map[string]any{"type": "string", "maxLength": 64},
					"job_id":     map[string]any{"type": "string", "pattern": "^[0-9a-fA-F-]{36}$"},
					"segment":    map[string]any{"type": "integer", "minimum": 0},
					"start":      map[string]any{"type": "integer", "minimum": 0},
					"end":        map[string]any{"type": "integer", "minimum": 1},
					"comment":    map[string]any{"type": "string", "minLength": 1},
					"full_text":  map[string]any{"type": "string"},
					"created_at": map[string]any{"type": "string"},
				},
				"additionalProperties": false,
			},
		},
	},
	"additionalProperties": false,
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(documentSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("annotations.schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("annotations.schema.json")
})

// ValidateDocument checks data against the interchange schema.
func ValidateDocument(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ExportJSON returns the interchange document for fileID.
func (s *Service) ExportJSON(ctx context.Context, fileID uuid.UUID) ([]byte, error) {
	spans, err := s.spans.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}
	doc := Document{Version: DocumentVersion, FileID: fileID.String(), Spans: make([]DocumentSpan, len(spans))}
	for i, sp := range spans {
		ds := DocumentSpan{
			ID:       sp.ID,
			JobID:    sp.Context.JobID.String(),
			Segment:  sp.Context.Segment,
			Start:    sp.Start,
			End:      sp.End,
			Comment:  sp.Comment,
			FullText: sp.FullText,
		}
		if !sp.CreatedAt.IsZero() {
			ds.CreatedAt = sp.CreatedAt.UTC().Format(time.RFC3339)
		}
		doc.Spans[i] = ds
	}
	s.logger.Info("export.json.ok", "file_id", fileID.String(), "spans", len(spans))
	return json.MarshalIndent(doc, "", "  ")
}

type spanKey struct {
	vc         entity.ViewContext
	start, end int
	comment    string
}

// Import creates the spans of a document under fileID. Spans identical to an
// existing one (same view, offsets and comment) are skipped, so importing the
// same document twice is harmless.
func (s *Service) Import(ctx context.Context, fileID uuid.UUID, data []byte) (*ImportResult, error) {
	if int64(len(data)) > s.maxBytes {
		return nil, common.InvalidInput(fmt.Sprintf("import document is %d bytes, limit is %d", len(data), s.maxBytes))
	}
	if err := ValidateDocument(data); err != nil {
		return nil, common.InvalidInput(err.Error())
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, common.InvalidInput(err.Error())
	}

	existing, err := s.spans.ListByFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("query spans: %w", err)
	}
	seen := make(map[spanKey]bool, len(existing))
	for _, sp := range existing {
		seen[spanKey{sp.Context, sp.Start, sp.End, sp.Comment}] = true
	}

	var (
		created, skipped atomic.Int64
		mu               sync.Mutex
		failures         []string
	)
	fail := func(i int, err error) {
		mu.Lock()
		failures = append(failures, fmt.Sprintf("spans[%d]: %s", i, common.PublicMessage(err)))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ds := range doc.Spans {
		jobID, err := uuid.Parse(ds.JobID)
		if err != nil {
			fail(i, common.InvalidInput("job_id must be a UUID"))
			continue
		}
		vc := entity.ViewContext{FileID: fileID, JobID: jobID, Segment: ds.Segment}
		key := spanKey{vc, ds.Start, ds.End, ds.Comment}
		if seen[key] {
			skipped.Add(1)
			continue
		}
		seen[key] = true

		g.Go(func() error {
			if _, err := s.backend.CreateSpan(gctx, vc, ds.Start, ds.End, ds.Comment, ds.FullText); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				fail(i, err)
				return nil
			}
			created.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(failures)

	res := &ImportResult{Created: int(created.Load()), Skipped: int(skipped.Load()), Errors: failures}
	s.logger.Info("import.json.ok", "file_id", fileID.String(),
		"created", res.Created, "skipped", res.Skipped, "rejected", len(res.Errors))
	return res, nil
}
