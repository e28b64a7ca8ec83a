package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"habita/internal/app/policies"
)

const defaultFeedLimit = 50

// NotificationHandler serves the caller's own notification feed.
type NotificationHandler struct {
	Feed   policies.NotificationFeed
	Logger *slog.Logger
}

func (h *NotificationHandler) Mine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	limit := defaultFeedLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be between 1 and 500", Field: "limit"})
			return
		}
		limit = parsed
	}
	items, err := h.Feed.Recent(c.Request.Context(), string(actor.ID), limit)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if items == nil {
		items = []policies.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
