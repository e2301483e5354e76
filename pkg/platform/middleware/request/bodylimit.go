package request

import (
	"net/http"
)

// DefaultMaxBodyBytes fits the largest policy document plus JSON framing.
const DefaultMaxBodyBytes int64 = 1 << 20

// BodyLimit caps request bodies with http.MaxBytesReader. Decoders see a
// *http.MaxBytesError once the limit is crossed.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
