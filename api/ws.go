package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const statusPushInterval = 1 * time.Second

// handleRunWS 推送运行状态快照，运行进入终态后发送最终快照并关闭连接
func (s *Server) handleRunWS(c *gin.Context) {
	runID := c.Param("id")
	runner, ok := s.mgr.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "run not found",
			"code":  "RUN_NOT_FOUND",
		})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		payload := runner.StatusPayload()
		if err := conn.WriteJSON(payload); err != nil {
			return
		}
		if payload.State.Terminal() {
			return
		}
		<-ticker.C
	}
}
