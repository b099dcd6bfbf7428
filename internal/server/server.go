// Package server exposes the document pipeline over gRPC. Messages are
// google.protobuf.Struct so clients need no generated stubs.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/formscan/internal/common"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "formscan.v1.DocumentService"

// DocumentServiceServer is implemented by DocumentServer.
type DocumentServiceServer interface {
	ExtractDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunPipeline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Answer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IngestPath(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(DocumentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, call unaryMethod) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DocumentServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(DocumentServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes formscan.v1.DocumentService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		handler("ExtractDocument", DocumentServiceServer.ExtractDocument),
		handler("RunPipeline", DocumentServiceServer.RunPipeline),
		handler("Answer", DocumentServiceServer.Answer),
		handler("GetDocument", DocumentServiceServer.GetDocument),
		handler("ProcessDocument", DocumentServiceServer.ProcessDocument),
		handler("IngestPath", DocumentServiceServer.IngestPath),
		handler("ExportDocuments", DocumentServiceServer.ExportDocuments),
	},
	Metadata: "formscan/v1/document_service",
}

// NewGRPCServer registers svc with health checks and reflection.
func NewGRPCServer(svc DocumentServiceServer, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	gs.RegisterService(&ServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Reflection for grpcurl
	reflection.Register(gs)
	return gs, hs
}

// loggingInterceptor tags each call with a request id, logs it and maps
// errors onto gRPC status codes.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := uuid.NewString()
		ctx = common.WithRequestID(ctx, reqID)

		resp, err := next(ctx, req)
		if err != nil {
			err = common.ToStatus(err)
			logger.Warn("grpc.call.failed", "method", info.FullMethod, "req_id", reqID, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds())
			return nil, err
		}
		logger.Info("grpc.call.ok", "method", info.FullMethod, "req_id", reqID,
			"elapsed_ms", time.Since(start).Milliseconds())
		return resp, nil
	}
}

// toStruct converts any JSON-marshalable value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func stringField(in *structpb.Struct, key string) string {
	if in == nil {
		return ""
	}
	return in.GetFields()[key].GetStringValue()
}

func numberField(in *structpb.Struct, key string) int {
	if in == nil {
		return 0
	}
	return int(in.GetFields()[key].GetNumberValue())
}

func boolField(in *structpb.Struct, key string) bool {
	if in == nil {
		return false
	}
	return in.GetFields()[key].GetBoolValue()
}
