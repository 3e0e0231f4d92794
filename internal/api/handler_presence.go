package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guest-presence-backend/internal/paging"
	"guest-presence-backend/internal/presence"
)

// GetCurrentPresence handles GET /api/presence/current.
func (h *Handler) GetCurrentPresence(c *gin.Context) {
	sessions, err := h.presence.ListCurrentlyPresent(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// GetTodayStats handles GET /api/presence/stats.
func (h *Handler) GetTodayStats(c *gin.Context) {
	stats, err := h.presence.ComputeTodayStats(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetPresenceHistory handles GET /api/presence/history?guestId=&page=&limit=.
func (h *Handler) GetPresenceHistory(c *gin.Context) {
	res, err := h.presence.History(c.Request.Context(), presence.HistoryQuery{
		GuestID: c.Query("guestId"),
		Page:    paging.CoercePage(c.Query("page"), paging.DefaultPage),
		Limit:   paging.CoerceLimit(c.Query("limit"), paging.DefaultLimit, paging.MaxLimit),
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
