package handlers

import (
	"context"
	"fmt"
	"math"

	"github.com/asakaida/reviewlab/internal/services"
	"github.com/asakaida/reviewlab/internal/services/serializer"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// RecordServiceName is the fully qualified gRPC service name
const RecordServiceName = "reviewlab.v1.RecordService"

// RecordServiceServer is the server API for the record service. Requests
// carry {"id": n}; responses are serialized records.
type RecordServiceServer interface {
	GetCustomer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type recordMethod func(RecordServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call recordMethod) grpc.MethodDesc {
	fullMethod := "/" + RecordServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RecordServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RecordServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// RecordServiceDesc describes the record service for grpc.Server.RegisterService
var RecordServiceDesc = grpc.ServiceDesc{
	ServiceName: RecordServiceName,
	HandlerType: (*RecordServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("GetCustomer", RecordServiceServer.GetCustomer),
		unaryHandler("GetItem", RecordServiceServer.GetItem),
		unaryHandler("GetReview", RecordServiceServer.GetReview),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reviewlab/v1/record_service.proto",
}

// RegisterRecordServiceServer registers srv with s
func RegisterRecordServiceServer(s grpc.ServiceRegistrar, srv RecordServiceServer) {
	s.RegisterService(&RecordServiceDesc, srv)
}

// RecordServiceClient calls the record service over a client connection
type RecordServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewRecordServiceClient creates a client on cc
func NewRecordServiceClient(cc grpc.ClientConnInterface) *RecordServiceClient {
	return &RecordServiceClient{cc: cc}
}

func (c *RecordServiceClient) invoke(ctx context.Context, method string, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+RecordServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCustomer fetches a serialized customer
func (c *RecordServiceClient) GetCustomer(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCustomer", id, opts...)
}

// GetItem fetches a serialized item
func (c *RecordServiceClient) GetItem(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetItem", id, opts...)
}

// GetReview fetches a serialized review
func (c *RecordServiceClient) GetReview(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetReview", id, opts...)
}

// RecordHandler implements RecordServiceServer on top of the catalog service
type RecordHandler struct {
	catalog services.CatalogServiceInterface
	log     *logrus.Logger
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(catalog services.CatalogServiceInterface, log *logrus.Logger) *RecordHandler {
	return &RecordHandler{catalog: catalog, log: log}
}

var _ RecordServiceServer = (*RecordHandler)(nil)

// GetCustomer handles the GetCustomer RPC
func (h *RecordHandler) GetCustomer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.get(ctx, req, h.catalog.GetCustomer)
}

// GetItem handles the GetItem RPC
func (h *RecordHandler) GetItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.get(ctx, req, h.catalog.GetItem)
}

// GetReview handles the GetReview RPC
func (h *RecordHandler) GetReview(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return h.get(ctx, req, h.catalog.GetReview)
}

func (h *RecordHandler) get(
	ctx context.Context,
	req *structpb.Struct,
	load func(context.Context, int64) (map[string]any, error),
) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	record, err := load(ctx, id)
	if err != nil {
		return nil, h.fail(ctx, err)
	}

	plain, err := serializer.Plain(record)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	out, err := structpb.NewStruct(plain)
	if err != nil {
		return nil, h.fail(ctx, fmt.Errorf("failed to convert record: %w", err))
	}
	return out, nil
}

// fail converts err to a status error, logging server faults
func (h *RecordHandler) fail(ctx context.Context, err error) error {
	st := grpcError(err)
	if status.Code(st) == codes.Internal {
		h.log.WithError(err).WithField("request_id", RequestIDFromContext(ctx)).Error("record request failed")
	}
	return st
}

// requestID extracts the positive integer "id" field of a request
func requestID(req *structpb.Struct) (int64, error) {
	v, ok := req.GetFields()["id"]
	if !ok {
		return 0, fmt.Errorf("id is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("id must be a number")
	}
	f := n.NumberValue
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, fmt.Errorf("id must be a positive integer, got %v", f)
	}
	return int64(f), nil
}
