package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader carries the request ID in gRPC metadata
const RequestIDHeader = "x-request-id"

type requestIDKey struct{}

// RequestIDFromContext returns the request ID set by RequestIDInterceptor
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDInterceptor assigns every call a request ID, taken from the
// incoming x-request-id metadata or generated, echoes it in the response
// header and logs the call.
func RequestIDInterceptor(log *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDHeader); len(vals) > 0 && vals[0] != "" {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		ctx = context.WithValue(ctx, requestIDKey{}, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))

		start := time.Now()
		resp, err := handler(ctx, req)

		entry := log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     info.FullMethod,
			"code":       status.Code(err).String(),
			"duration":   time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("grpc request failed")
		} else {
			entry.Info("grpc request")
		}
		return resp, err
	}
}
