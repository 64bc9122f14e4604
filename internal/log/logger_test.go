package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q expected %v, got %v", in, want, got)
		}
	}
}

func TestWithComponentTagsOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Component: ComponentApp}).WithComponent(ComponentLedger)
	l.ErrorOp(context.Background(), "persist failed", OpPersist, errors.New("disk full"), FieldKey, "transactions")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") {
		t.Fatalf("missing component in %q", out)
	}
	if !strings.Contains(out, "operation=persist") || !strings.Contains(out, `error="disk full"`) {
		t.Fatalf("missing fields in %q", out)
	}
	if l.Component() != ComponentLedger {
		t.Fatalf("unexpected component %q", l.Component())
	}
}

func TestRequestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Component: ComponentHTTP})
	mw := RequestMiddleware(l,
		func(*http.Request) string { return "req-1" },
		func(*http.Request) string { return "10.0.0.1" })

	var seen *Logger
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x?y=1", nil))

	if seen == nil || seen.Component() != ComponentHTTP {
		t.Fatalf("request logger not stored in context")
	}
	out := buf.String()
	for _, want := range []string{"request_id=req-1", "status_code=418", "level=WARN", "client_ip=10.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
