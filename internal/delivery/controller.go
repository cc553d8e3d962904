package delivery

import (
	"net/http"
	"time"

	"codoleet/internal/common/http/middleware"
	pkgerrors "codoleet/pkg/errors"
	"codoleet/pkg/utils/logger"
	"codoleet/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// Controller upgrades authenticated sessions to websockets and streams
// their events.
type Controller struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewController(hub *Hub) *Controller {
	return &Controller{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser sessions connect from the frontend origin; the
			// reverse proxy in front of us enforces origin policy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the websocket endpoint on the given router.
func (ct *Controller) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", ct.Serve)
}

// Serve subscribes the session to its user's events and writes them out
// until the peer disconnects.
func (ct *Controller) Serve(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.AbortWithError(c, pkgerrors.New(pkgerrors.Unauthorized))
		return
	}

	conn, err := ct.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	sub := ct.hub.Subscribe(userID)
	defer ct.hub.Unsubscribe(sub)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
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
