package tracing

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPMiddleware wraps next so every request gets a server span named after
// the matched route pattern, with context propagated from incoming headers.
func HTTPMiddleware(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "sahara.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}
