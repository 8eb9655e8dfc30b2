// File: internal/monitoring/live.go
package monitoring

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultLiveInterval is how often the live feed pushes a metrics frame.
const DefaultLiveInterval = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // internal endpoint, origin enforced upstream
	},
}

// LiveMetrics upgrades the connection to a websocket and streams the
// metrics report on a fixed interval until the client disconnects.
func (h *Handler) LiveMetrics(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("Live metrics client connected",
		zap.String("remote_addr", r.RemoteAddr),
	)

	// Reader goroutine: drains control frames and signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(DefaultLiveInterval)
	defer ticker.Stop()

	// Send an immediate frame so clients don't wait a full interval.
	if err := conn.WriteJSON(h.pipeline.Report()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			h.logger.Debug("Live metrics client disconnected",
				zap.String("remote_addr", r.RemoteAddr),
			)
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(h.pipeline.Report()); err != nil {
				h.logger.Debug("Live metrics write failed", zap.Error(err))
				return
			}
		}
	}
}
