package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware_LogsRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var fromCtx *zap.Logger

	h := Middleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = WithContext(r.Context())
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/files/upload", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-1" {
		t.Errorf("X-Request-ID = %q", got)
	}
	if fromCtx == nil || fromCtx == L() {
		t.Error("handler did not get the request logger from its context")
	}

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/files/upload" || fields["status"] != int64(http.StatusCreated) {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields["request_id"] != "req-1" || fields["size"] != int64(11) {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	h := Middleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}
}

func TestWithContext_FallsBackToGlobal(t *testing.T) {
	if WithContext(context.Background()) != L() {
		t.Error("expected the global logger")
	}
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.log")
	if err := Init(Config{Level: "loud", Format: "json", OutputPath: out}); err != nil {
		t.Fatal(err)
	}
	core := L().Core()
	if !core.Enabled(zapcore.InfoLevel) || core.Enabled(zapcore.DebugLevel) {
		t.Error("expected the info level")
	}
}
