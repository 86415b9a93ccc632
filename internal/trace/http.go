package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware continues (or starts) a trace per request and echoes the trace
// ID back in the response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := Remote(r.Header.Get(TraceIDKey), r.Header.Get(SpanIDKey))
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// FromFrame reads an optional trace_id field from a JSON bridge frame.
func FromFrame(data []byte) (Context, bool) {
	var frame struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &frame); err != nil || frame.TraceID == "" {
		return New(), false
	}
	return Remote(frame.TraceID, ""), true
}
