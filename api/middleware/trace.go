package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	TraceIDKey   contextKey = "trace_id"
	SessionIDKey contextKey = "session_id"
)

// TraceID stamps every request with its correlation identity: the trace
// ID (propagated from X-Trace-ID, minted otherwise) and the session the
// caller presented. The trace ID is echoed back so a client can tie a
// whole submit-and-poll sequence together; the one minted at submission
// travels with the request row and the task lifecycle events.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), TraceIDKey, traceID)
		if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
			ctx = context.WithValue(ctx, SessionIDKey, sessionID)
		}
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}
