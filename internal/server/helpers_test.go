package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/export"
	"github.com/joseph-ayodele/extract-annotator/internal/repository"
	"github.com/joseph-ayodele/extract-annotator/internal/services/annotation"
)

var dbSeq atomic.Int64

type testStack struct {
	svc     *annotation.Service
	exports *export.Service
	logger  *slog.Logger
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", dbSeq.Add(1))
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: dsn}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repository.Close(db, logger) })
	if err := repository.Migrate(ctx, db, logger); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	spans := repository.NewSpanRepository(db, logger)
	svc := annotation.NewService(spans, repository.NewContentRepository(db, logger), nil, logger)
	return &testStack{
		svc:     svc,
		exports: export.NewService(spans, svc, svc.Limits().MaxImportBytes, logger),
		logger:  logger,
	}
}

var (
	testFile = uuid.MustParse("6f1c1c0e-3d2a-4c7e-9a51-1b2f3c4d5e60")
	testJob  = uuid.MustParse("0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d")
)

func testView() entity.ViewContext {
	return entity.ViewContext{FileID: testFile, JobID: testJob, Segment: 0}
}

func putPlain(vc entity.ViewContext, text string) annotation.PutContentRequest {
	return annotation.PutContentRequest{Context: vc, Format: "plain", Raw: []byte(text)}
}
