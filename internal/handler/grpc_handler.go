package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-procurement-assistant/internal/document"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/middleware"
	"github.com/pesio-ai/be-procurement-assistant/internal/quotation"
	"github.com/pesio-ai/be-procurement-assistant/internal/report"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

// ReportServiceName is the fully qualified gRPC service name
const ReportServiceName = "procurement.v1.ReportService"

// ReportServiceServer is the server API for the report service. Messages are
// google.protobuf.Struct so no generated stubs are needed.
//
// RenderDocument takes {"document_json": string} or {"document": object} plus
// optional "title" and "kind", and answers {"blocks": [...]}.
// CompareQuotations takes {"quotations_json": string} or {"quotations": object}
// and answers {"vendors": [...], "rows": [...]}.
type ReportServiceServer interface {
	RenderDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompareQuotations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ReportServiceDesc describes the report service for grpc.Server.RegisterService
var ReportServiceDesc = grpc.ServiceDesc{
	ServiceName: ReportServiceName,
	HandlerType: (*ReportServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RenderDocument", Handler: renderDocumentHandler},
		{MethodName: "CompareQuotations", Handler: compareQuotationsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "procurement/v1/report.proto",
}

// RegisterReportServiceServer registers srv with s
func RegisterReportServiceServer(s grpc.ServiceRegistrar, srv ReportServiceServer) {
	s.RegisterService(&ReportServiceDesc, srv)
}

func renderDocumentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReportServiceServer).RenderDocument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ReportServiceName + "/RenderDocument"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReportServiceServer).RenderDocument(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func compareQuotationsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReportServiceServer).CompareQuotations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ReportServiceName + "/CompareQuotations"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReportServiceServer).CompareQuotations(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCHandler implements ReportServiceServer
type GRPCHandler struct {
	reports *service.ReportService
	logger  zerolog.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(reports *service.ReportService, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		reports: reports,
		logger:  logger.With().Str("handler", "grpc").Logger(),
	}
}

// RenderDocument renders a JSON document into report blocks
func (h *GRPCHandler) RenderDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	title := fields["title"].GetStringValue()
	kind := fields["kind"].GetStringValue()

	h.logger.Info().
		Str("title", title).
		Str("kind", kind).
		Msg("gRPC RenderDocument called")

	doc, err := documentField(fields, "document")
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}

	blocks := h.reports.RenderDocument(doc, title, kind)
	resp, err := structpb.NewStruct(map[string]interface{}{"blocks": report.Encode(blocks)})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode rendered blocks")
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// CompareQuotations builds the comparison matrix for a set of quotations
func (h *GRPCHandler) CompareQuotations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc, err := documentField(req.GetFields(), "quotations")
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	if doc.Kind() != document.Map {
		return nil, mapErrorToGRPC(errors.InvalidInput("quotations", "quotations must be an object of vendor to quotation"))
	}

	quotes := &quotation.Set{}
	for _, f := range doc.Fields() {
		quotes.Put(f.Key, quotation.FromDocument(f.Value))
	}

	h.logger.Info().
		Int("vendors", quotes.Len()).
		Msg("gRPC CompareQuotations called")

	matrix := h.reports.CompareQuotations(quotes)
	resp, err := structpb.NewStruct(matrix.Document().Interface().(map[string]interface{}))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode comparison")
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// documentField reads <name>_json, keeping key order, or falls back to the
// structured <name> field whose keys arrive unordered. A _json string that
// is not JSON is rendered as text.
func documentField(fields map[string]*structpb.Value, name string) (document.Value, error) {
	if raw, ok := fields[name+"_json"]; ok {
		text := raw.GetStringValue()
		doc, err := document.Parse([]byte(text))
		if err != nil {
			return document.StringValue(text), nil
		}
		return doc, nil
	}

	v, ok := fields[name]
	if !ok {
		return document.NullValue(), errors.InvalidInput(name, name+" or "+name+"_json is required")
	}
	data, err := json.Marshal(v.AsInterface())
	if err != nil {
		return document.NullValue(), errors.Wrap(err, errors.ErrCodeInvalidInput, "unreadable "+name)
	}
	return document.Parse(data)
}

// UnaryServerInterceptor logs every call with its request id, code and
// duration. The request id comes from incoming x-request-id metadata.
func UnaryServerInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		var requestID string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(middleware.RequestIDHeader); len(ids) > 0 {
				requestID = ids[0]
			}
		}

		resp, err := handler(ctx, req)

		code := status.Code(err)
		evt := logger.Info()
		if code != codes.OK {
			evt = logger.Warn().Err(err)
		}
		evt.
			Str("method", info.FullMethod).
			Str("request_id", requestID).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC request")

		return resp, err
	}
}

func mapErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return status.Error(codes.Internal, err.Error())
	}

	switch appErr.Code {
	case errors.ErrCodeInvalidInput:
		return status.Error(codes.InvalidArgument, appErr.Error())
	case errors.ErrCodeNotFound:
		return status.Error(codes.NotFound, appErr.Error())
	case errors.ErrCodeConflict:
		return status.Error(codes.AlreadyExists, appErr.Error())
	case errors.ErrCodePreconditionNotMet:
		return status.Error(codes.FailedPrecondition, appErr.Error())
	case errors.ErrCodeCollaboratorFailure:
		return status.Error(codes.Unavailable, appErr.Error())
	default:
		return status.Error(codes.Internal, appErr.Error())
	}
}
