package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ReanchorQueue runs re-anchoring jobs on a fixed worker pool. A job is skipped
// when a newer one for the same view was enqueued after it.
type ReanchorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and the channel send; seqMu guards the sequence map
	// so workers never wait on a blocked Enqueue.
	mu     sync.Mutex
	closed bool

	seqMu  sync.Mutex
	seq    uint64
	latest map[string]uint64
}

type Option func(*ReanchorQueue)

func WithWorkers(n int) Option {
	return func(q *ReanchorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ReanchorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *ReanchorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewReanchorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ReanchorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ReanchorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 30 * time.Second,
		ch:      make(chan Job, 64),
		latest:  make(map[string]uint64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ReanchorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ReanchorQueue) run(workerID int, job Job) {
	key := job.Context.Key()
	if q.superseded(key, job.seq) {
		q.logger.Info("skipping superseded re-anchor job", "worker_id", workerID, "view", key)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	start := time.Now()
	if err := q.proc.Process(ctx, job); err != nil {
		q.logger.Error("re-anchoring failed", "worker_id", workerID, "view", key, "trace_id", job.TraceID, "error", err)
	} else {
		q.logger.Info("re-anchored view", "worker_id", workerID, "view", key, "elapsed", time.Since(start))
	}

	q.seqMu.Lock()
	if q.latest[key] == job.seq {
		delete(q.latest, key)
	}
	q.seqMu.Unlock()
}

func (q *ReanchorQueue) superseded(key string, seq uint64) bool {
	q.seqMu.Lock()
	defer q.seqMu.Unlock()
	return q.latest[key] != seq
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ReanchorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "view", job.Context.Key())
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	key := job.Context.Key()

	q.seqMu.Lock()
	q.seq++
	job.seq = q.seq
	prev, hadPrev := q.latest[key]
	q.latest[key] = job.seq
	q.seqMu.Unlock()

	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "view", key)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.seqMu.Lock()
			if q.latest[key] == job.seq {
				if hadPrev {
					q.latest[key] = prev
				} else {
					delete(q.latest, key)
				}
			}
			q.seqMu.Unlock()
			return ctx.Err()
		}
	}
	q.logger.Info("queued view for re-anchoring", "view", key)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *ReanchorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
