package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"call-platform/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func gatewayServer(t *testing.T, g *Gateway, userID string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if userID != "" {
			ctx := auth.WithIdentity(c.Request.Context(), userID, "ws1", "member")
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, g.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestGateway_StreamsUserChannel(t *testing.T) {
	bus := NewMemoryBus()
	srv := gatewayServer(t, NewGateway(bus, nil, nil), "bob")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	env, _ := Encode(Message{SessionID: "s1", Version: 1, Event: IncomingCall{InitiatedBy: "alice", Kind: "DIRECT"}})
	if err := bus.Publish(context.Background(), "bob", env); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// Another user's events never reach bob.
	other, _ := Encode(Message{SessionID: "s2", Event: CallEnded{EndedBy: "x"}})
	_ = bus.Publish(context.Background(), "carol", other)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Envelope
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := Decode(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ic, ok := msg.Event.(IncomingCall); !ok || ic.InitiatedBy != "alice" || msg.SessionID != "s1" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestGateway_RequiresIdentity(t *testing.T) {
	srv := gatewayServer(t, NewGateway(NewMemoryBus(), nil, nil), "")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestGateway_RejectsForeignOrigin(t *testing.T) {
	srv := gatewayServer(t, NewGateway(NewMemoryBus(), []string{"https://app.example"}, nil), "bob")
	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	if _, _, err := websocket.DefaultDialer.Dial(wsURL(srv), h); err == nil {
		t.Fatalf("expected origin check failure")
	}
}

type fakeLimiter struct {
	mu       sync.Mutex
	allow    bool
	released int
}

func (f *fakeLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allow, nil
}

func (f *fakeLimiter) Release(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeLimiter) releases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func TestGateway_ConnectionLimit(t *testing.T) {
	lim := &fakeLimiter{}
	srv := gatewayServer(t, NewGateway(NewMemoryBus(), nil, nil).WithLimiter(lim), "bob")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v %+v", err, resp)
	}

	lim.mu.Lock()
	lim.allow = true
	lim.mu.Unlock()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for lim.releases() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("slot was not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
