package signaling

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"call-platform/internal/auth"
	"call-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxClientMessage = 4096
)

// Gateway streams a user's channel to a websocket. Clients only listen; the
// call operations themselves go through the HTTP API.
type Gateway struct {
	bus      Bus
	log      *slog.Logger
	upgrader websocket.Upgrader
	limiter  ConnLimiter
}

// WithLimiter caps concurrent streams per user.
func (g *Gateway) WithLimiter(l ConnLimiter) *Gateway {
	g.limiter = l
	return g
}

// NewGateway builds a gateway. An empty allowedOrigins accepts any origin.
func NewGateway(bus Bus, allowedOrigins []string, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Gateway{
		bus: bus,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// ServeWS upgrades the request and pumps events until either side goes away.
// The caller must be authenticated.
func (g *Gateway) ServeWS(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	log := logger.FromOr(c.Request.Context(), g.log).With("user_id", userID)

	if g.limiter != nil {
		ok, err := g.limiter.Acquire(c.Request.Context(), userID)
		if err != nil {
			log.Error("signaling: connection limiter failed", "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "signaling unavailable"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many signaling connections"})
			return
		}
		defer func() {
			if err := g.limiter.Release(context.WithoutCancel(c.Request.Context()), userID); err != nil {
				log.Warn("signaling: connection release failed", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := g.bus.Subscribe(ctx, userID)
	if err != nil {
		log.Error("signaling: subscribe failed", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "signaling unavailable"})
		return
	}
	defer sub.Close()

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("signaling: upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	log.Info("signaling: client connected")

	go g.writePump(ctx, cancel, conn, sub, log)
	g.readPump(cancel, conn)
	log.Info("signaling: client disconnected")
}

// readPump only services control frames and detects disconnects.
func (g *Gateway) readPump(cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub Subscription, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		_ = conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				log.Warn("signaling: write failed", "type", env.Type, "session_id", env.SessionID, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
