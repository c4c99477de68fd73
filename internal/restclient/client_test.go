package restclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/store"
)

var testView = entity.ViewContext{
	FileID:  uuid.MustParse("6f1c1c0e-3d2a-4c7e-9a51-1b2f3c4d5e60"),
	JobID:   uuid.MustParse("0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d"),
	Segment: 3,
}

const spansPath = "/v1/files/6f1c1c0e-3d2a-4c7e-9a51-1b2f3c4d5e60/jobs/0a9b8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d/segments/3/spans"

// fakeAPI keeps spans in memory and speaks the server's JSON shapes.
type fakeAPI struct {
	mu    sync.Mutex
	seq   int
	spans map[string]entity.PersistedSpan
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	api := &fakeAPI{spans: make(map[string]entity.PersistedSpan)}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+spansPath, func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		out := []entity.PersistedSpan{}
		for _, sp := range api.spans {
			out = append(out, sp)
		}
		writeTestJSON(w, http.StatusOK, map[string]any{"spans": out})
	})
	mux.HandleFunc("POST "+spansPath, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Start    int    `json:"start"`
			End      int    `json:"end"`
			Comment  string `json:"comment"`
			FullText string `json:"full_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Comment == "" {
			writeTestJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"code": common.CodeInvalidArgument, "message": "comment: is required"}})
			return
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		api.seq++
		id := "srv-" + string(rune('0'+api.seq))
		api.spans[id] = entity.PersistedSpan{ID: id, Context: testView, Start: body.Start, End: body.End, Comment: body.Comment, FullText: body.FullText}
		writeTestJSON(w, http.StatusCreated, map[string]string{"id": id})
	})
	mux.HandleFunc("DELETE /v1/spans/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := api.spans[id]; !ok {
			writeTestJSON(w, http.StatusNotFound, map[string]any{"error": map[string]string{"code": common.CodeNotFound, "message": "span not found"}})
			return
		}
		delete(api.spans, id)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(srv *httptest.Server) *Client {
	return New(srv.URL+"/", WithHTTPClient(srv.Client()), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestClient_CreateListDelete(t *testing.T) {
	api, srv := newFakeAPI(t)
	c := newTestClient(srv)
	ctx := context.Background()

	id, err := c.CreateSpan(ctx, testView, 2, 6, "note", "some text here")
	if err != nil {
		t.Fatalf("CreateSpan: %v", err)
	}
	if id != "srv-1" {
		t.Fatalf("id = %q", id)
	}

	spans, err := c.ListSpans(ctx, testView)
	if err != nil {
		t.Fatalf("ListSpans: %v", err)
	}
	if len(spans) != 1 || spans[0].Start != 2 || spans[0].End != 6 || spans[0].FullText != "some text here" {
		t.Fatalf("spans = %+v", spans)
	}

	if err := c.DeleteSpan(ctx, id); err != nil {
		t.Fatalf("DeleteSpan: %v", err)
	}
	if err := c.DeleteSpan(ctx, id); err != nil {
		t.Fatalf("DeleteSpan of a deleted span: %v", err)
	}
	if len(api.spans) != 0 {
		t.Fatalf("spans left: %v", api.spans)
	}
}

func TestClient_Errors(t *testing.T) {
	_, srv := newFakeAPI(t)
	c := newTestClient(srv)
	ctx := context.Background()

	_, err := c.CreateSpan(ctx, testView, 0, 1, "", "x")
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != common.CodeInvalidArgument || appErr.Message != "comment: is required" {
		t.Fatalf("CreateSpan err = %v", err)
	}

	err = c.call(ctx, http.MethodGet, srv.URL+"/broken", nil, nil)
	if common.ErrorCode(err) != common.CodeInternal {
		t.Fatalf("broken code = %q (%v)", common.ErrorCode(err), err)
	}

	srv.Close()
	_, err = c.ListSpans(ctx, testView)
	if common.ErrorCode(err) != common.CodeUnavailable {
		t.Fatalf("closed server code = %q (%v)", common.ErrorCode(err), err)
	}
}

func TestClient_AsStoreBackend(t *testing.T) {
	api, srv := newFakeAPI(t)
	s := store.New(newTestClient(srv))
	ctx := context.Background()

	if err := s.Reload(ctx, testView, "hello world"); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	sp, ok := s.Create(ctx, 0, 5, "greeting")
	if !ok || !sp.Persisted || sp.ID != "srv-1" {
		t.Fatalf("Create = %+v, %v", sp, ok)
	}
	if got := api.spans["srv-1"]; got.FullText != "hello world" {
		t.Fatalf("stored = %+v", got)
	}
}

func TestCodeForStatus(t *testing.T) {
	tests := map[int]string{
		http.StatusBadRequest:          common.CodeInvalidArgument,
		http.StatusNotFound:            common.CodeNotFound,
		http.StatusTooManyRequests:     common.CodeRateLimited,
		http.StatusServiceUnavailable:  common.CodeUnavailable,
		http.StatusInternalServerError: common.CodeInternal,
		http.StatusTeapot:              common.CodeInternal,
	}
	for status, want := range tests {
		if got := codeForStatus(status); got != want {
			t.Errorf("codeForStatus(%d) = %q, want %q", status, got, want)
		}
	}
}
