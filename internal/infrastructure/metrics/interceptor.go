package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"google.golang.org/grpc"
)

// observe records one finished request in the collector and, when set, the exporter.
func observe(collector *Collector, exporter *PrometheusExporter, transport, operation string, start time.Time, failed bool) {
	duration := time.Since(start).Seconds()

	collector.RecordRequest(operation)
	collector.RecordDuration(operation, duration)
	if failed {
		collector.RecordError(operation)
	}

	if exporter != nil {
		exporter.RecordRequest(transport, operation)
		exporter.RecordDuration(transport, operation, duration)
		if failed {
			exporter.RecordError(transport, operation)
		}
	}
}

// UnaryServerInterceptor returns a gRPC interceptor that records metrics for each request.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observe(collector, exporter, TransportGRPC, info.FullMethod, start, err != nil)
		return resp, err
	}
}

// HTTPMiddleware returns chi middleware that records metrics for each request,
// keyed by method and route pattern. Responses with status >= 500 count as errors.
func HTTPMiddleware(collector *Collector, exporter *PrometheusExporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			observe(collector, exporter, TransportHTTP, r.Method+" "+pattern, start, status >= http.StatusInternalServerError)
		})
	}
}
