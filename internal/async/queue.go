package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for every span of a view to be re-anchored onto Text.
type Job struct {
	Context     entity.ViewContext
	Text        string
	SubmittedAt time.Time
	TraceID     string

	seq uint64
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs one job.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }
