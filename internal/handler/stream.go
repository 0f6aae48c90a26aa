package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"polyfolio/internal/stream"
)

// StreamHandler pushes copy-trading events to websocket subscribers as they
// are emitted.
type StreamHandler struct {
	Hub    *stream.Hub
	Logger *zap.Logger
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/events/stream", h.stream)
}

func (h *StreamHandler) stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	events, cancel := h.Hub.Subscribe()
	defer cancel()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}

const writeTimeout = 5 * time.Second
