package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/gentle-alert/internal/logger"
)

// requestLogger logs every request through the context logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			ctx     = logger.WithKV(r.Context(), "request_id", middleware.GetReqID(r.Context()))
			wrapped = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started = time.Now()
		)

		r = r.WithContext(ctx)

		defer func() {
			logger.DebugKV(ctx, "HTTP request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"bytes", wrapped.BytesWritten(),
				"duration", time.Since(started).String(),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(wrapped, r)
	})
}
