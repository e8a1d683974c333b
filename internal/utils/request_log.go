package utils

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"ms-booking/internal/logger"
)

// RequestLogger emits one API log line per request with the final
// status code and wall time.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}
