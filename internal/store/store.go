// Package store holds the spans of the view text currently on screen.
//
// A Store is owned by one view. Load replaces its contents whenever the view text
// changes; Create and Delete keep it in step with a Backend. Backend calls run
// outside the lock, and their results are only applied while the store still
// shows the same view and text they were issued against.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/constants"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/relocate"
	"github.com/joseph-ayodele/extract-annotator/internal/span"
)

// ErrStale is returned by Reload when another Load replaced the view while spans
// were being fetched.
var ErrStale = errors.New("store: view changed during reload")

// Backend persists spans. Offsets passed to CreateSpan are relative to fullText.
type Backend interface {
	ListSpans(ctx context.Context, vc entity.ViewContext) ([]entity.PersistedSpan, error)
	CreateSpan(ctx context.Context, vc entity.ViewContext, start, end int, comment, fullText string) (string, error)
	DeleteSpan(ctx context.Context, id string) error
}

// DeleteMode selects when a deleted span leaves the collection.
type DeleteMode int

const (
	// DeleteOptimistic removes the span first, then calls the backend.
	DeleteOptimistic DeleteMode = iota
	// DeleteConfirmed calls the backend first and removes the span on success.
	DeleteConfirmed
)

func (m DeleteMode) String() string {
	if m == DeleteConfirmed {
		return "confirmed"
	}
	return "optimistic"
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRelocator replaces the default relocation chain.
func WithRelocator(r *relocate.Relocator) Option {
	return func(s *Store) {
		if r != nil {
			s.relocator = r
		}
	}
}

// WithDeleteMode chooses the delete discipline for the life of the store.
func WithDeleteMode(m DeleteMode) Option {
	return func(s *Store) { s.mode = m }
}

// WithIDGenerator replaces the temporary id source.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) {
		if f != nil {
			s.newID = f
		}
	}
}

// Store is the sorted span collection of one view. It is safe for concurrent use.
type Store struct {
	backend   Backend
	relocator *relocate.Relocator
	mode      DeleteMode
	logger    *slog.Logger
	newID     func() string

	mu         sync.RWMutex
	view       entity.ViewContext
	text       string
	textLen    int
	spans      []entity.Span
	generation uint64
	// inflight holds the local ids of creates awaiting the backend; true once the
	// span was deleted locally.
	inflight map[string]bool
}

// New creates an empty store.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		relocator: relocate.Default(),
		mode:      DeleteOptimistic,
		logger:    slog.Default(),
		newID:     func() string { return constants.LocalIDPrefix + uuid.NewString() },
		inflight:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the collection with persisted spans relocated onto viewText. Spans
// that relocate to zero width are dropped. Reloading the same view and text keeps
// spans that have not been persisted yet.
func (s *Store) Load(vc entity.ViewContext, persisted []entity.PersistedSpan, viewText string) {
	spans := s.relocateAll(persisted, viewText)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(vc, viewText, spans)
}

// Reload fetches the persisted spans of vc from the backend and loads them.
func (s *Store) Reload(ctx context.Context, vc entity.ViewContext, viewText string) error {
	gen := s.Generation()
	persisted, err := s.backend.ListSpans(ctx, vc)
	if err != nil {
		s.logger.Error("failed to list spans", "view", vc.Key(), "error", err)
		return fmt.Errorf("list spans: %w", err)
	}
	spans := s.relocateAll(persisted, viewText)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.logger.Debug("discarding reload for replaced view", "view", vc.Key())
		return ErrStale
	}
	s.replaceLocked(vc, viewText, spans)
	return nil
}

func (s *Store) replaceLocked(vc entity.ViewContext, viewText string, spans []entity.Span) {
	if s.isCurrentLocked(vc, viewText) {
		for _, sp := range s.spans {
			if !sp.Persisted && !containsID(spans, sp.ID) {
				spans = append(spans, sp)
			}
		}
		sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	}
	s.view = vc
	s.text = viewText
	s.textLen = span.RuneLen(viewText)
	s.spans = spans
	s.generation++
}

func (s *Store) isCurrentLocked(vc entity.ViewContext, viewText string) bool {
	return s.generation > 0 && s.view == vc && s.text == viewText
}

func containsID(spans []entity.Span, id string) bool {
	for i := range spans {
		if spans[i].ID == id {
			return true
		}
	}
	return false
}

func (s *Store) relocateAll(persisted []entity.PersistedSpan, viewText string) []entity.Span {
	target := relocate.NewTarget(viewText)
	spans := make([]entity.Span, 0, len(persisted))
	for _, p := range persisted {
		res := s.relocator.RelocateTarget(relocate.Anchor{Start: p.Start, End: p.End, FullText: p.FullText}, target)
		if res.Range.IsEmpty() {
			s.logger.Debug("dropping zero-width span", "span_id", p.ID, "strategy", res.Strategy)
			continue
		}
		spans = append(spans, entity.Span{
			ID:        p.ID,
			Start:     res.Range.Start,
			End:       res.Range.End,
			Comment:   p.Comment,
			Persisted: true,
			Strategy:  res.Strategy,
		})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans
}

// Create adds a span over [start, end) of the current view text and persists it.
// It reports false, adding nothing, when the comment is blank or the clamped range
// is empty. A backend failure keeps the span with Persisted false.
func (s *Store) Create(ctx context.Context, start, end int, comment string) (entity.Span, bool) {
	if strings.TrimSpace(comment) == "" {
		return entity.Span{}, false
	}

	s.mu.Lock()
	r := span.Clamp(start, end, s.textLen)
	if r.IsEmpty() {
		s.mu.Unlock()
		return entity.Span{}, false
	}
	sp := entity.Span{ID: s.newID(), Start: r.Start, End: r.End, Comment: comment}
	s.insertLocked(sp)
	s.inflight[sp.ID] = false
	vc, text := s.view, s.text
	s.mu.Unlock()

	serverID, err := s.backend.CreateSpan(ctx, vc, r.Start, r.End, comment, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := s.inflight[sp.ID]
	delete(s.inflight, sp.ID)
	if err != nil {
		s.logger.Error("failed to persist span", "view", vc.Key(), "span_id", sp.ID, "error", err)
		return sp, true
	}
	localID := sp.ID
	sp.ID, sp.Persisted = serverID, true
	if deleted {
		s.logger.Info("span removed before create completed", "view", vc.Key(), "span_id", serverID)
		go s.deleteOrphan(context.WithoutCancel(ctx), serverID)
		return sp, true
	}
	if !s.isCurrentLocked(vc, text) {
		s.logger.Debug("discarding create result for replaced view", "view", vc.Key(), "span_id", serverID)
		return sp, true
	}
	i := s.indexLocked(localID)
	switch {
	case s.indexLocked(serverID) >= 0:
		// a reload already brought in the persisted copy
		if i >= 0 {
			s.removeLocked(i)
		}
	case i >= 0:
		s.spans[i].ID = serverID
		s.spans[i].Persisted = true
		return s.spans[i], true
	default:
		s.insertLocked(sp)
	}
	return sp, true
}

func (s *Store) deleteOrphan(ctx context.Context, id string) {
	if err := s.backend.DeleteSpan(ctx, id); err != nil {
		s.logger.Warn("failed to delete orphaned span", "span_id", id, "error", err)
	}
}

// Delete removes a span. Unknown ids are a no-op. Spans that were never persisted
// are removed without a backend call. With DeleteOptimistic a backend failure is
// returned and the span stays removed; callers may Restore it.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	sp := s.spans[i]
	if !sp.Persisted || s.mode == DeleteOptimistic {
		s.removeLocked(i)
	}
	if _, ok := s.inflight[id]; ok {
		s.inflight[id] = true
	}
	vc, text := s.view, s.text
	s.mu.Unlock()

	if !sp.Persisted {
		return nil
	}
	if err := s.backend.DeleteSpan(ctx, id); err != nil {
		s.logger.Error("failed to delete span", "span_id", id, "mode", s.mode.String(), "error", err)
		return fmt.Errorf("delete span %s: %w", id, err)
	}
	if s.mode == DeleteOptimistic {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(vc, text) {
		return nil
	}
	if i := s.indexLocked(id); i >= 0 {
		s.removeLocked(i)
	}
	return nil
}

// Restore puts a span back, for example after a failed optimistic delete. It reports
// false if a span with the same id is already present.
func (s *Store) Restore(sp entity.Span) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(sp.ID) >= 0 {
		return false
	}
	r := span.Clamp(sp.Start, sp.End, s.textLen)
	if r.IsEmpty() {
		return false
	}
	sp.Start, sp.End = r.Start, r.End
	s.insertLocked(sp)
	return true
}

// FindByID returns the span with the given id.
func (s *Store) FindByID(id string) (entity.Span, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.spans[i], true
	}
	return entity.Span{}, false
}

// Spans returns a snapshot sorted by start.
func (s *Store) Spans() []entity.Span {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Span, len(s.spans))
	copy(out, s.spans)
	return out
}

// Len returns the number of spans.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spans)
}

// Generation increments on every Load.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// View returns the loaded context and view text.
func (s *Store) View() (entity.ViewContext, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view, s.text
}

// DeleteMode returns the configured discipline.
func (s *Store) DeleteMode() DeleteMode { return s.mode }

// insertLocked keeps spans sorted by start; equal starts keep insertion order.
func (s *Store) insertLocked(sp entity.Span) {
	i := sort.Search(len(s.spans), func(i int) bool { return s.spans[i].Start > sp.Start })
	s.spans = append(s.spans, entity.Span{})
	copy(s.spans[i+1:], s.spans[i:])
	s.spans[i] = sp
}

func (s *Store) removeLocked(i int) {
	s.spans = append(s.spans[:i], s.spans[i+1:]...)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.spans {
		if s.spans[i].ID == id {
			return i
		}
	}
	return -1
}
