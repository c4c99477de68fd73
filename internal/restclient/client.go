// Package restclient talks to the annotation HTTP API. Client satisfies
// store.Backend, so a Store can persist to a remote server.
package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/services/annotation"
	"github.com/joseph-ayodele/extract-annotator/internal/store"
)

type Client struct {
	baseURL string
	http    HTTPDoer
	logger  *slog.Logger
}

var _ store.Backend = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) { c.http = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) viewURL(vc entity.ViewContext, suffix string) string {
	return fmt.Sprintf("%s/v1/files/%s/jobs/%s/segments/%d/%s", c.baseURL, vc.FileID, vc.JobID, vc.Segment, suffix)
}

func (c *Client) ListSpans(ctx context.Context, vc entity.ViewContext) ([]entity.PersistedSpan, error) {
	var out struct {
		Spans []entity.PersistedSpan `json:"spans"`
	}
	if err := c.call(ctx, http.MethodGet, c.viewURL(vc, "spans"), nil, &out); err != nil {
		return nil, err
	}
	return out.Spans, nil
}

func (c *Client) CreateSpan(ctx context.Context, vc entity.ViewContext, start, end int, comment, fullText string) (string, error) {
	body := map[string]any{"start": start, "end": end, "comment": comment, "full_text": fullText}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, c.viewURL(vc, "spans"), body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteSpan treats an unknown id as already deleted.
func (c *Client) DeleteSpan(ctx context.Context, id string) error {
	err := c.call(ctx, http.MethodDelete, c.baseURL+"/v1/spans/"+url.PathEscape(id), nil, nil)
	if common.ErrorCode(err) == common.CodeNotFound {
		return nil
	}
	return err
}

// PutContent uploads the text of a view.
func (c *Client) PutContent(ctx context.Context, vc entity.ViewContext, format, text string) (*entity.Content, error) {
	var out struct {
		Content *entity.Content `json:"content"`
	}
	body := map[string]string{"text": text, "format": format}
	if err := c.call(ctx, http.MethodPut, c.viewURL(vc, "content"), body, &out); err != nil {
		return nil, err
	}
	return out.Content, nil
}

func (c *Client) RenderView(ctx context.Context, vc entity.ViewContext) (*annotation.RenderedView, error) {
	out := new(annotation.RenderedView)
	if err := c.call(ctx, http.MethodGet, c.viewURL(vc, "render"), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method, u string, body, out any) error {
	raw, status, err := sendJSON(ctx, c.http, method, u, body, c.logger)
	if err != nil {
		return common.NewAppError(common.CodeUnavailable, "annotation server unreachable", err)
	}
	if status/100 != 2 {
		return decodeError(status, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError turns an error envelope into an AppError with the server's code.
func decodeError(status int, raw []byte) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	cause := fmt.Errorf("http status %d", status)
	if err := json.Unmarshal(raw, &env); err != nil || env.Error.Code == "" {
		return common.NewAppError(codeForStatus(status), http.StatusText(status), cause)
	}
	return common.NewAppError(env.Error.Code, env.Error.Message, cause)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return common.CodeInvalidArgument
	case http.StatusNotFound:
		return common.CodeNotFound
	case http.StatusTooManyRequests:
		return common.CodeRateLimited
	case http.StatusServiceUnavailable:
		return common.CodeUnavailable
	}
	return common.CodeInternal
}
