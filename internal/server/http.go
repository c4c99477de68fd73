package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/export"
	"github.com/joseph-ayodele/extract-annotator/internal/highlight"
	"github.com/joseph-ayodele/extract-annotator/internal/services/annotation"
)

const (
	maxSpanBody = 1 << 20
	xlsxType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HealthFunc reports whether the backing stores are reachable.
type HealthFunc func(ctx context.Context) error

type HandlerOption func(*Handler)

// WithHealthCheck sets the check behind GET /health.
func WithHealthCheck(f HealthFunc) HandlerOption {
	return func(h *Handler) { h.health = f }
}

// WithRateLimit limits each client IP to rps requests per second. Zero disables.
func WithRateLimit(rps float64, burst int) HandlerOption {
	return func(h *Handler) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = newIPLimiter(rps, burst)
	}
}

// WithTrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP
// headers identify the client for rate limiting. Without it the peer address is
// always used.
func WithTrustedProxies(prefixes ...netip.Prefix) HandlerOption {
	return func(h *Handler) { h.proxies = append(h.proxies, prefixes...) }
}

// Handler serves the annotation HTTP API.
type Handler struct {
	svc     *annotation.Service
	exports *export.Service
	health  HealthFunc
	limiter *ipLimiter
	proxies []netip.Prefix
	logger  *slog.Logger
}

// NewHandler builds the HTTP API with its middleware chain.
func NewHandler(svc *annotation.Service, exports *export.Service, logger *slog.Logger, opts ...HandlerOption) http.Handler {
	h := &Handler{svc: svc, exports: exports, logger: logger}
	for _, opt := range opts {
		opt(h)
	}

	const view = "/v1/files/{file}/jobs/{job}/segments/{seg}"
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+view+"/spans", h.listSpans)
	mux.HandleFunc("POST "+view+"/spans", h.createSpan)
	mux.HandleFunc("DELETE /v1/spans/{id}", h.deleteSpan)
	mux.HandleFunc("PUT "+view+"/content", h.putContent)
	mux.HandleFunc("GET "+view+"/content", h.getContent)
	mux.HandleFunc("GET "+view+"/render", h.render)
	mux.HandleFunc("GET /v1/files/{file}/export.xlsx", h.exportXLSX)
	mux.HandleFunc("GET /v1/files/{file}/export.json", h.exportJSON)
	mux.HandleFunc("POST /v1/files/{file}/import", h.importSpans)
	mux.HandleFunc("GET /v1/style.css", h.styleCSS)
	mux.HandleFunc("GET /health", h.healthz)

	var handler http.Handler = mux
	handler = withRateLimit(h.limiter, h.proxies, handler)
	handler = withLogging(logger, handler)
	handler = withRecovery(logger, handler)
	return otelhttp.NewHandler(handler, "annotations-http")
}

type createSpanBody struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Comment  string `json:"comment"`
	FullText string `json:"full_text"`
}

type contentResponse struct {
	Content  *entity.Content `json:"content"`
	Changed  bool            `json:"changed"`
	Reanchor bool            `json:"reanchor"`
}

func (h *Handler) listSpans(w http.ResponseWriter, r *http.Request) {
	vc, err := viewFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	spans, err := h.svc.ListSpans(r.Context(), vc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if spans == nil {
		spans = []entity.PersistedSpan{}
	}
	writeJSON(w, http.StatusOK, ListSpansResponse{Spans: spans})
}

func (h *Handler) createSpan(w http.ResponseWriter, r *http.Request) {
	vc, err := viewFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := parseJSON[createSpanBody](r, maxSpanBody)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.svc.CreateSpan(r.Context(), vc, body.Start, body.End, body.Comment, body.FullText)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateSpanResponse{ID: id})
}

func (h *Handler) deleteSpan(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSpan(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type putContentBody struct {
	Text    string `json:"text"`
	Format  string `json:"format"`
	Charset string `json:"charset"`
}

// putContent accepts either a JSON body {text, format, charset} or the raw view
// text, with the charset from Content-Type and the format from ?format=.
func (h *Handler) putContent(w http.ResponseWriter, r *http.Request) {
	vc, err := viewFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var mediaType string
	params := map[string]string{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, params, err = mime.ParseMediaType(ct)
		if err != nil {
			h.writeError(w, r, common.InvalidInput("invalid Content-Type"))
			return
		}
	}
	// Four bytes per rune covers any encoding the service accepts.
	limit := int64(h.svc.Limits().MaxViewTextLength)*4 + 1

	req := annotation.PutContentRequest{Context: vc}
	if mediaType == "application/json" {
		body, err := parseJSON[putContentBody](r, limit)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		req.Format, req.Charset, req.Raw = body.Format, body.Charset, []byte(body.Text)
	} else {
		raw, err := io.ReadAll(io.LimitReader(r.Body, limit))
		if err != nil {
			h.writeError(w, r, common.InvalidInput("failed to read body"))
			return
		}
		if int64(len(raw)) >= limit {
			h.writeError(w, r, common.InvalidInput("view text too large"))
			return
		}
		req.Format, req.Charset, req.Raw = r.URL.Query().Get("format"), params["charset"], raw
	}

	res, err := h.svc.PutContent(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contentResponse{Content: res.Content, Changed: res.Changed, Reanchor: res.Reanchor})
}

func (h *Handler) getContent(w http.ResponseWriter, r *http.Request) {
	vc, err := viewFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.svc.GetContent(r.Context(), vc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// render returns the rendered view as JSON, or only the HTML fragment with
// ?as=html.
func (h *Handler) render(w http.ResponseWriter, r *http.Request) {
	vc, err := viewFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	v, err := h.svc.RenderView(r.Context(), vc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if r.URL.Query().Get("as") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, v.HTML)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	fileID, err := fileFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.exports.ExportXLSX(r.Context(), fileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeAttachment(w, xlsxType, fmt.Sprintf("annotations-%s.xlsx", fileID), data)
}

func (h *Handler) exportJSON(w http.ResponseWriter, r *http.Request) {
	fileID, err := fileFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.exports.ExportJSON(r.Context(), fileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeAttachment(w, "application/json", fmt.Sprintf("annotations-%s.json", fileID), data)
}

func (h *Handler) importSpans(w http.ResponseWriter, r *http.Request) {
	fileID, err := fileFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// One byte past the limit lets Import report the size error.
	data, err := io.ReadAll(io.LimitReader(r.Body, h.svc.Limits().MaxImportBytes+1))
	if err != nil {
		h.writeError(w, r, common.InvalidInput("failed to read body"))
		return
	}
	res, err := h.exports.Import(r.Context(), fileID, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) styleCSS(w http.ResponseWriter, r *http.Request) {
	style := r.URL.Query().Get("style")
	if style == "" {
		style = highlight.DefaultStyle
	}
	var buf bytes.Buffer
	if err := highlight.WriteCSS(&buf, style); err != nil {
		h.writeError(w, r, common.NewAppError(common.CodeInternal, "failed to write stylesheet", err))
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			common.LoggerFromContext(r.Context(), h.logger).Warn("health check failed", "error", err)
			writeErr(w, http.StatusServiceUnavailable, common.CodeUnavailable, "unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		common.LoggerFromContext(r.Context(), h.logger).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeErr(w, status, common.ErrorCode(err), common.PublicMessage(err))
}

func writeAttachment(w http.ResponseWriter, contentType, name string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func viewFromPath(r *http.Request) (entity.ViewContext, error) {
	seg, err := strconv.Atoi(r.PathValue("seg"))
	if err != nil {
		return entity.ViewContext{}, common.InvalidInput("segment must be an integer")
	}
	return parseViewRef(ViewRef{FileID: r.PathValue("file"), JobID: r.PathValue("job"), Segment: seg})
}

func fileFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("file"))
	if err != nil {
		return uuid.Nil, common.InvalidInput("file_id must be a valid UUID")
	}
	return id, nil
}
