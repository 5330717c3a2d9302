package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID accepts an inbound request id or mints one, echoes it back on the
// response, and binds it to the context logger.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, requestID)
			ctx := logg.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
