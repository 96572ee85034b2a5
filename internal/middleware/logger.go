package middleware

import (
	"net/http"
	"time"

	"futuretask/internal/logger"
)

// LoggerMiddleware logs incoming HTTP requests.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		logger := logger.New()
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
