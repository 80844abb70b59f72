package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are enforced by the CORS middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage frame sent for every journaled trade.
type wsMessage struct {
	Type  string `json:"type"`
	Index uint64 `json:"index"`
	Data  any    `json:"data"`
}

// streamTradesWS pushes journaled trade events over a websocket. ?since= resumes after an index.
func (s *Server) streamTradesWS(c *gin.Context) {
	if s.deps.Trades == nil {
		c.String(http.StatusServiceUnavailable, "trade journal not available")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	lastIndex := parseLastEventID("", c.Query("since"))
	done := make(chan struct{})

	// reader drains control frames and notices the client going away
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	poll := time.NewTicker(streamPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	send := func() error {
		records, err := s.deps.Trades.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsMessage{Type: "trade", Index: record.Index, Data: record.Event}); err != nil {
				return err
			}
			lastIndex = record.Index
		}
		return nil
	}

	if err := send(); err != nil {
		s.logger.Warn("websocket initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-done:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			if err := send(); err != nil {
				s.logger.Debug("websocket send failed", zap.Error(err))
				return
			}
		}
	}
}
