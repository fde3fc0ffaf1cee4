// Package httpmiddleware contains net/http middlewares shared by the
// checkout server.
package httpmiddleware

import (
	"net/http"
	"net/url"

	"github.com/felixge/httpsnoop"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Telemetry provides the OpenTelemetry providers for instrumentation.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
	TextMapPropagator() propagation.TextMapPropagator
}

// RouteFinder resolves the operation name served at method and u.
type RouteFinder func(method string, u *url.URL) (string, bool)

// MakeRouteFinder returns a RouteFinder for routes, a map of exact paths to
// operation names.
func MakeRouteFinder(routes map[string]string) RouteFinder {
	return func(_ string, u *url.URL) (string, bool) {
		op, ok := routes[u.Path]
		return op, ok
	}
}

// InjectLogger sets lg as the request context logger, tagged with the
// request id when RequestID ran before it.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := zctx.Base(r.Context(), lg)
			if id := RequestIDFromContext(ctx); id != "" {
				ctx = zctx.With(ctx, zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Instrument traces and measures requests with otelhttp. Spans of known
// routes are named "<service>.<operation>".
func Instrument(serviceName string, find RouteFinder, m Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "",
			otelhttp.WithPropagators(m.TextMapPropagator()),
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
			otelhttp.WithServerName(serviceName),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				if op, ok := find(r.Method, r.URL); ok {
					return serviceName + "." + op
				}
				return operation
			}),
		)
	}
}

// LogRequests logs every served request with its status and duration.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lg := zctx.From(r.Context())
			m := httpsnoop.CaptureMetrics(next, w, r)

			fields := []zap.Field{
				zap.String("http.method", r.Method),
				zap.String("http.path", r.URL.Path),
				zap.Int("http.status", m.Code),
				zap.Int64("http.written", m.Written),
				zap.Duration("duration", m.Duration),
			}
			if op, ok := find(r.Method, r.URL); ok {
				fields = append(fields, zap.String("operation", op))
			}

			if m.Code >= http.StatusInternalServerError {
				lg.Warn("Request failed", fields...)
				return
			}
			lg.Info("Request served", fields...)
		})
	}
}

// Labeler adds the operation name to the otelhttp metric labels. It must run
// inside Instrument.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if op, ok := find(r.Method, r.URL); ok {
				labeler, _ := otelhttp.LabelerFromContext(r.Context())
				labeler.Add(
					attribute.String("operation", op),
					attribute.String("http.route", r.URL.Path),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
