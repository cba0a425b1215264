package log

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareInjectsLogger(t *testing.T) {
	logger := New(ComponentHTTP, 0)

	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != logger {
		t.Fatalf("FromContext = %p, want the middleware logger %p", got, logger)
	}
	if got.component != ComponentHTTP {
		t.Errorf("component = %q, want %q", got.component, ComponentHTTP)
	}
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Logger == nil {
		t.Fatal("fallback logger must be usable")
	}
	if l.component != ComponentApp {
		t.Errorf("fallback component = %q, want %q", l.component, ComponentApp)
	}
}
