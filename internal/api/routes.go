package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		channels := v1.Group("/channels")
		{
			channels.GET("", handler.ListChannels)           // GET /api/v1/channels
			channels.POST("/subscribe", handler.Subscribe)   // POST /api/v1/channels/subscribe
		}

		messages := v1.Group("/messages")
		{
			messages.GET("", handler.RecentMessages)        // GET /api/v1/messages?hours=N
			messages.GET("/latest", handler.LatestMessages) // GET /api/v1/messages/latest?limit=N
		}
	}
}
