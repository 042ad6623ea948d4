package middleware

import (
	"net/http"
	"time"

	"deedbook/pkg/requestcontext"
)

// RequestTime captures one timestamp at the start of the request so every
// write within it (ledger record, audit event) carries the same "now".
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
