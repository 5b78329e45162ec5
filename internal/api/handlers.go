// Package api exposes the monitor's HTTP surface.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
)

// MonitorService is the subset of the monitor the API depends on.
type MonitorService interface {
	Subscribe(ctx context.Context, ref string) (bool, string)
	Recent(ctx context.Context, hours int) []domain.CanonicalMessageRecord
	Last(ctx context.Context, limit int) []domain.CanonicalMessageRecord
	Channels() []domain.Channel
}

// Handler handles HTTP requests for the monitor API.
type Handler struct {
	monitor MonitorService
	version string
	logger  logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(monitor MonitorService, version string, log logger.Logger) *Handler {
	return &Handler{
		monitor: monitor,
		version: version,
		logger:  log,
	}
}

// SubscribeRequest represents a channel subscription request.
type SubscribeRequest struct {
	Channel string `json:"channel" binding:"required"`
}

// SubscribeResponse reports the subscription outcome.
type SubscribeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessagesResponse wraps a list of stored messages.
type MessagesResponse struct {
	Messages []domain.CanonicalMessageRecord `json:"messages"`
	Count    int                             `json:"count"`
}

// ChannelsResponse lists the channels under active monitoring.
type ChannelsResponse struct {
	Channels []domain.Channel `json:"channels"`
	Count    int              `json:"count"`
}

// Subscribe handles POST /api/v1/channels/subscribe.
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid subscribe request", logger.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("subscribing to channel", logger.String("channel", req.Channel))

	ok, msg := h.monitor.Subscribe(c.Request.Context(), req.Channel)
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, SubscribeResponse{Success: ok, Message: msg})
}

// ListChannels handles GET /api/v1/channels.
func (h *Handler) ListChannels(c *gin.Context) {
	channels := h.monitor.Channels()
	c.JSON(http.StatusOK, ChannelsResponse{Channels: channels, Count: len(channels)})
}

// RecentMessages handles GET /api/v1/messages.
func (h *Handler) RecentMessages(c *gin.Context) {
	hours := intQuery(c, "hours", 1)
	msgs := h.monitor.Recent(c.Request.Context(), hours)
	c.JSON(http.StatusOK, MessagesResponse{Messages: msgs, Count: len(msgs)})
}

// LatestMessages handles GET /api/v1/messages/latest.
func (h *Handler) LatestMessages(c *gin.Context) {
	limit := intQuery(c, "limit", 10)
	msgs := h.monitor.Last(c.Request.Context(), limit)
	c.JSON(http.StatusOK, MessagesResponse{Messages: msgs, Count: len(msgs)})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "channel-monitor",
		"version": h.version,
	})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
