package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/entity"
	"github.com/joseph-ayodele/extract-annotator/internal/services/annotation"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "annotations.v1.AnnotationService"

type ViewRef struct {
	FileID  string `json:"file_id"`
	JobID   string `json:"job_id"`
	Segment int    `json:"segment"`
}

type ListSpansRequest struct {
	View ViewRef `json:"view"`
}

type ListSpansResponse struct {
	Spans []entity.PersistedSpan `json:"spans"`
}

type CreateSpanRequest struct {
	View     ViewRef `json:"view"`
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Comment  string  `json:"comment"`
	FullText string  `json:"full_text"`
}

type CreateSpanResponse struct {
	ID string `json:"id"`
}

type DeleteSpanRequest struct {
	ID string `json:"id"`
}

type RenderViewRequest struct {
	View ViewRef `json:"view"`
}

// AnnotationServer is the server API of the annotation service.
type AnnotationServer interface {
	ListSpans(context.Context, *ListSpansRequest) (*ListSpansResponse, error)
	CreateSpan(context.Context, *CreateSpanRequest) (*CreateSpanResponse, error)
	DeleteSpan(context.Context, *DeleteSpanRequest) (*emptypb.Empty, error)
	RenderView(context.Context, *RenderViewRequest) (*annotation.RenderedView, error)
}

// RegisterAnnotationServer registers srv on s.
func RegisterAnnotationServer(s grpc.ServiceRegistrar, srv AnnotationServer) {
	s.RegisterService(&annotationServiceDesc, srv)
}

// AnnotationService serves the annotation API over gRPC.
type AnnotationService struct {
	svc    *annotation.Service
	logger *slog.Logger
}

var _ AnnotationServer = (*AnnotationService)(nil)

func NewAnnotationService(svc *annotation.Service, logger *slog.Logger) *AnnotationService {
	return &AnnotationService{svc: svc, logger: logger}
}

func (s *AnnotationService) ListSpans(ctx context.Context, req *ListSpansRequest) (*ListSpansResponse, error) {
	vc, err := parseViewRef(req.View)
	if err != nil {
		s.logger.Error("invalid view for list spans", "file_id", req.View.FileID, "job_id", req.View.JobID, "error", err)
		return nil, common.ToGRPCError(err)
	}
	spans, err := s.svc.ListSpans(ctx, vc)
	if err != nil {
		s.logger.Error("failed to list spans", "view", vc.Key(), "error", err)
		return nil, common.ToGRPCError(err)
	}
	return &ListSpansResponse{Spans: spans}, nil
}

func (s *AnnotationService) CreateSpan(ctx context.Context, req *CreateSpanRequest) (*CreateSpanResponse, error) {
	vc, err := parseViewRef(req.View)
	if err != nil {
		s.logger.Error("invalid view for create span", "file_id", req.View.FileID, "job_id", req.View.JobID, "error", err)
		return nil, common.ToGRPCError(err)
	}
	id, err := s.svc.CreateSpan(ctx, vc, req.Start, req.End, req.Comment, req.FullText)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &CreateSpanResponse{ID: id}, nil
}

func (s *AnnotationService) DeleteSpan(ctx context.Context, req *DeleteSpanRequest) (*emptypb.Empty, error) {
	if err := s.svc.DeleteSpan(ctx, req.ID); err != nil {
		return nil, common.ToGRPCError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *AnnotationService) RenderView(ctx context.Context, req *RenderViewRequest) (*annotation.RenderedView, error) {
	vc, err := parseViewRef(req.View)
	if err != nil {
		return nil, common.ToGRPCError(err)
	}
	v, err := s.svc.RenderView(ctx, vc)
	if err != nil {
		s.logger.Error("failed to render view", "view", vc.Key(), "error", err)
		return nil, common.ToGRPCError(err)
	}
	return v, nil
}

// parseViewRef checks the id formats; range checks stay with the service.
func parseViewRef(ref ViewRef) (entity.ViewContext, error) {
	v := common.NewValidator()
	v.Field("file_id", strings.TrimSpace(ref.FileID), common.Required, common.UUID)
	v.Field("job_id", strings.TrimSpace(ref.JobID), common.Required, common.UUID)
	v.Field("segment", ref.Segment, common.NonNegative)
	if err := common.ValidateAndReturnError(v); err != nil {
		return entity.ViewContext{}, err
	}
	return entity.ViewContext{
		FileID:  uuid.MustParse(strings.TrimSpace(ref.FileID)),
		JobID:   uuid.MustParse(strings.TrimSpace(ref.JobID)),
		Segment: ref.Segment,
	}, nil
}

func viewRefOf(vc entity.ViewContext) ViewRef {
	return ViewRef{FileID: vc.FileID.String(), JobID: vc.JobID.String(), Segment: vc.Segment}
}

func _AnnotationService_ListSpans_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListSpansRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnnotationServer).ListSpans(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListSpans"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnnotationServer).ListSpans(ctx, req.(*ListSpansRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AnnotationService_CreateSpan_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateSpanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnnotationServer).CreateSpan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateSpan"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnnotationServer).CreateSpan(ctx, req.(*CreateSpanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AnnotationService_DeleteSpan_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeleteSpanRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnnotationServer).DeleteSpan(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/DeleteSpan"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnnotationServer).DeleteSpan(ctx, req.(*DeleteSpanRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _AnnotationService_RenderView_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RenderViewRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnnotationServer).RenderView(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/RenderView"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnnotationServer).RenderView(ctx, req.(*RenderViewRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var annotationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnnotationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSpans", Handler: _AnnotationService_ListSpans_Handler},
		{MethodName: "CreateSpan", Handler: _AnnotationService_CreateSpan_Handler},
		{MethodName: "DeleteSpan", Handler: _AnnotationService_DeleteSpan_Handler},
		{MethodName: "RenderView", Handler: _AnnotationService_RenderView_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "annotations/v1/annotations.json",
}
