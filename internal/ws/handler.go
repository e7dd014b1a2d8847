package ws

import (
	"net/http"

	"trivia_backend/internal/logger"
	"trivia_backend/internal/week"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS upgrades /ws/pool. The feed is public, ?weekId= narrows it to one week.
// An empty allowedOrigin accepts any origin.
func HandleWS(hub *Hub, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		weekID := c.Query("weekId")
		if weekID != "" {
			if _, err := week.Start(weekID); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week id"})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}

		NewClient(conn, hub, weekID).Run()
	}
}
