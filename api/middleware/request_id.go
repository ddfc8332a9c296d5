package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/types"
)

const (
	RequestIDHeader    = types.RequestIDHeader
	maxRequestIDLength = 128
)

// RequestID keeps a caller supplied id when it is short printable ASCII and
// mints a uuid otherwise. The id is echoed on the response and attached to
// every log line of the request.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if !acceptableRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := withRequestID(r.Context(), id)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}
	return true
}
