package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 控制面只在内网暴露
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsPushInterval = time.Second

// handleWS 每秒推一帧完整状态快照，客户端断开即止
func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	// 读泵只为探测断开
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	tick := time.NewTicker(wsPushInterval)
	defer tick.Stop()

	if err := conn.WriteJSON(s.ctrl.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-s.done:
			return
		case <-tick.C:
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(s.ctrl.Snapshot()); err != nil {
				return
			}
		}
	}
}
