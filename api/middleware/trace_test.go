package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTraceID_MintsAndEchoes(t *testing.T) {
	var gotTrace, gotSession string
	handler := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = GetTraceID(r.Context())
		gotSession = GetSessionID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/tasks/t1", nil)
	req.Header.Set("X-Session-ID", "session-1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if gotTrace == "" {
		t.Error("Expected a minted trace ID in the context")
	}
	if rec.Header().Get("X-Trace-ID") != gotTrace {
		t.Errorf("Expected response header %q, got %q", gotTrace, rec.Header().Get("X-Trace-ID"))
	}
	if gotSession != "session-1" {
		t.Errorf("Expected session-1 in the context, got %q", gotSession)
	}
}

func TestTraceID_PropagatesHeader(t *testing.T) {
	var gotTrace string
	handler := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = GetTraceID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/tasks/t1", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if gotTrace != "trace-123" {
		t.Errorf("Expected propagated trace ID, got %q", gotTrace)
	}
}
