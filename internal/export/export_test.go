package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

var (
	fileID = uuid.MustParse("9d2c5f3e-1a4b-4c6d-8e7f-0a1b2c3d4e5f")
	jobID  = uuid.MustParse("5e6f7a8b-9c0d-4e1f-a2b3-c4d5e6f7a8b9")
)

type fakeSpans struct {
	spans []*entity.PersistedSpan
	err   error
}

func (f *fakeSpans) ListByFile(ctx context.Context, id uuid.UUID) ([]*entity.PersistedSpan, error) {
	return f.spans, f.err
}

type fakeBackend struct {
	mu      sync.Mutex
	created []entity.PersistedSpan
	reject  string
}

func (b *fakeBackend) ListSpans(ctx context.Context, vc entity.ViewContext) ([]entity.PersistedSpan, error) {
	return nil, nil
}

func (b *fakeBackend) CreateSpan(ctx context.Context, vc entity.ViewContext, start, end int, comment, fullText string) (string, error) {
	if comment == b.reject {
		return "", common.InvalidInput("comment rejected")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, entity.PersistedSpan{Context: vc, Start: start, End: end, Comment: comment, FullText: fullText})
	return uuid.NewString(), nil
}

func (b *fakeBackend) DeleteSpan(ctx context.Context, id string) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSpans() []*entity.PersistedSpan {
	created := time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)
	return []*entity.PersistedSpan{
		{ID: "a", Context: entity.ViewContext{FileID: fileID, JobID: jobID, Segment: 0}, Start: 4, End: 9,
			Comment: "adjective", FullText: "the quick brown fox", CreatedAt: created},
		{ID: "b", Context: entity.ViewContext{FileID: fileID, JobID: jobID, Segment: 1}, Start: 0, End: 3,
			Comment: "article", FullText: "the lazy dog"},
	}
}

func TestExportXLSX(t *testing.T) {
	svc := NewService(&fakeSpans{spans: sampleSpans()}, &fakeBackend{}, 0, discardLogger())

	b, err := svc.ExportXLSX(context.Background(), fileID)
	if err != nil {
		t.Fatalf("ExportXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][4] != "Highlighted Text" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][4] != "quick" || rows[1][5] != "adjective" || rows[1][6] != "2025-05-04T10:00:00Z" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][4] != "the" || rows[2][7] != "b" {
		t.Errorf("row 2 = %v", rows[2])
	}
}

func TestExportXLSX_ListError(t *testing.T) {
	svc := NewService(&fakeSpans{err: errors.New("down")}, &fakeBackend{}, 0, discardLogger())
	if _, err := svc.ExportXLSX(context.Background(), fileID); err == nil {
		t.Error("ExportXLSX() error = nil, want error")
	}
}

func TestExportJSON_RoundTrip(t *testing.T) {
	svc := NewService(&fakeSpans{spans: sampleSpans()}, &fakeBackend{}, 0, discardLogger())

	b, err := svc.ExportJSON(context.Background(), fileID)
	if err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}
	if err := ValidateDocument(b); err != nil {
		t.Fatalf("exported document fails its own schema: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Version != 1 || len(doc.Spans) != 2 || doc.Spans[0].CreatedAt != "2025-05-04T10:00:00Z" {
		t.Errorf("document = %+v", doc)
	}

	// Importing into a file that already holds these spans creates nothing.
	backend := &fakeBackend{}
	res, err := NewService(&fakeSpans{spans: sampleSpans()}, backend, 0, discardLogger()).Import(context.Background(), fileID, b)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Created != 0 || res.Skipped != 2 || len(backend.created) != 0 {
		t.Errorf("re-import = %+v", res)
	}
}

func TestImport(t *testing.T) {
	doc := `{"version":1,"spans":[
		{"job_id":"` + jobID.String() + `","segment":0,"start":4,"end":9,"comment":"keep","full_text":"the quick brown fox"},
		{"job_id":"` + jobID.String() + `","segment":0,"start":4,"end":9,"comment":"keep","full_text":"the quick brown fox"},
		{"job_id":"` + jobID.String() + `","segment":2,"start":0,"end":3,"comment":"nope","full_text":"abc"}
	]}`
	backend := &fakeBackend{reject: "nope"}
	svc := NewService(&fakeSpans{}, backend, 0, discardLogger())

	res, err := svc.Import(context.Background(), fileID, []byte(doc))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Created != 1 || res.Skipped != 1 || len(res.Errors) != 1 {
		t.Fatalf("Import() = %+v", res)
	}
	if !strings.HasPrefix(res.Errors[0], "spans[2]: ") {
		t.Errorf("error message = %q", res.Errors[0])
	}
	got := backend.created[0]
	if got.Context.FileID != fileID || got.Context.JobID != jobID || got.Start != 4 || got.End != 9 {
		t.Errorf("created span = %+v", got)
	}
}

func TestImport_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"version":`},
		{"wrong version", `{"version":2,"spans":[]}`},
		{"missing spans", `{"version":1}`},
		{"unknown field", `{"version":1,"spans":[],"extra":true}`},
		{"negative start", `{"version":1,"spans":[{"job_id":"` + jobID.String() + `","segment":0,"start":-1,"end":3,"comment":"c","full_text":"abc"}]}`},
		{"empty comment", `{"version":1,"spans":[{"job_id":"` + jobID.String() + `","segment":0,"start":0,"end":3,"comment":"","full_text":"abc"}]}`},
		{"bad job id", `{"version":1,"spans":[{"job_id":"nope","segment":0,"start":0,"end":3,"comment":"c","full_text":"abc"}]}`},
	}
	svc := NewService(&fakeSpans{}, &fakeBackend{}, 0, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Import(context.Background(), fileID, []byte(tt.doc))
			if common.ErrorCode(err) != common.CodeInvalidArgument {
				t.Errorf("Import() error = %v, want INVALID_ARGUMENT", err)
			}
		})
	}

	small := NewService(&fakeSpans{}, &fakeBackend{}, 10, discardLogger())
	if _, err := small.Import(context.Background(), fileID, []byte(`{"version":1,"spans":[]}`)); common.ErrorCode(err) != common.CodeInvalidArgument {
		t.Errorf("oversized Import() error = %v, want INVALID_ARGUMENT", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 3); got != "hé…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
