package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFromOrFallbacks(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if got := FromOr(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}
	if got := FromOr(context.Background(), nil); got != slog.Default() {
		t.Fatalf("expected default logger")
	}

	scoped := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if got := FromOr(With(context.Background(), scoped), fallback); got != scoped {
		t.Fatalf("expected context logger to win")
	}
}

func TestMiddlewareScopesRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/calls/:session_id", func(c *gin.Context) {
		c.Set("user_id", "alice")
		if FromGin(c) == slog.Default() {
			t.Errorf("expected request logger on gin context")
		}
		From(c.Request.Context()).Info("inside")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/calls/s-1", nil)
	req.Header.Set(headerRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(headerRequestID); got != "rid-1" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	dec := json.NewDecoder(&buf)
	lines := 0
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if rec["request_id"] != "rid-1" || rec["session_id"] != "s-1" {
			t.Fatalf("expected request_id and session_id on every line, got %v", rec)
		}
		lines++
		if rec["msg"] == "request" && rec["user_id"] != "alice" {
			t.Fatalf("expected user_id on the summary line, got %v", rec)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 log lines, got %d", lines)
	}
}

func TestMiddlewareGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get(headerRequestID) == "" {
		t.Fatalf("expected generated request id")
	}
}
