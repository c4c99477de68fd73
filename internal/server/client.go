package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/services/annotation"
	"github.com/joseph-ayodele/extract-annotator/internal/store"
)

// Client calls the annotation service over gRPC. It satisfies store.Backend so
// a remote view can drive a local Store.
type Client struct {
	cc grpc.ClientConnInterface
}

var _ store.Backend = (*Client)(nil)

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) ListSpans(ctx context.Context, vc entity.ViewContext) ([]entity.PersistedSpan, error) {
	out := new(ListSpansResponse)
	if err := c.invoke(ctx, "ListSpans", &ListSpansRequest{View: viewRefOf(vc)}, out); err != nil {
		return nil, err
	}
	return out.Spans, nil
}

func (c *Client) CreateSpan(ctx context.Context, vc entity.ViewContext, start, end int, comment, fullText string) (string, error) {
	out := new(CreateSpanResponse)
	in := &CreateSpanRequest{View: viewRefOf(vc), Start: start, End: end, Comment: comment, FullText: fullText}
	if err := c.invoke(ctx, "CreateSpan", in, out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteSpan treats an unknown id as already deleted.
func (c *Client) DeleteSpan(ctx context.Context, id string) error {
	err := c.invoke(ctx, "DeleteSpan", &DeleteSpanRequest{ID: id}, new(emptypb.Empty))
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (c *Client) RenderView(ctx context.Context, vc entity.ViewContext) (*annotation.RenderedView, error) {
	out := new(annotation.RenderedView)
	if err := c.invoke(ctx, "RenderView", &RenderViewRequest{View: viewRefOf(vc)}, out); err != nil {
		return nil, err
	}
	return out, nil
}
