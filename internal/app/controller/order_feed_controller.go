package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ikkim/quickcart-backend/internal/middleware"
	ws "github.com/ikkim/quickcart-backend/internal/websocket"
)

type OrderFeedController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewOrderFeedController only upgrades requests whose Origin is listed;
// requests without an Origin header (non-browser clients) are accepted.
func NewOrderFeedController(hub *ws.Hub, allowedOrigins []string) *OrderFeedController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &OrderFeedController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Stream pushes order events to a back-office session (Admin only)
// GET /api/v1/admin/orders/feed
func (ctrl *OrderFeedController) Stream(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	userID, _ := middleware.GetUserID(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err, map[string]interface{}{
			"user_id": userID,
		})
		return
	}

	ws.NewClient(ctrl.hub, conn, userID).Serve()
}
