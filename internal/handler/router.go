package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/middleware"
)

const (
	routeWebSocket = "/ws"
	routeHealth    = "/health"
)

// NewRouter mounts the gateway's HTTP surface. The history endpoint uses
// the same bearer credential as the socket handshake.
func NewRouter(logger zerolog.Logger, ws *WSHandler, httpHandler *HTTPHandler, verify middleware.VerifyFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(logger, routeHealth))

	r.GET(routeWebSocket, ws.HandleWebSocket)
	r.GET(routeHealth, httpHandler.HealthCheck)

	api := r.Group("/api/chat")
	api.Use(middleware.RequireAuth(verify))
	{
		api.GET("/:roomId/messages", httpHandler.GetMessages)
	}

	return r
}
