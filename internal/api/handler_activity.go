package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guest-presence-backend/internal/activity"
	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/export"
	"guest-presence-backend/internal/model"
	"guest-presence-backend/internal/mw"
	"guest-presence-backend/internal/parse"
)

// PutActivityLog handles PUT /api/activity-logs.
func (h *Handler) PutActivityLog(c *gin.Context) {
	var req activity.UpsertInput
	if err := bindJSON(c, &req); err != nil {
		h.renderError(c, err)
		return
	}
	entry, err := h.activity.UpsertLog(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetActivityLogs handles GET /api/activity-logs?date=. The date defaults to
// the current facility day.
func (h *Handler) GetActivityLogs(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = h.slots.LocalDate(time.Now())
	}
	entries, err := h.activity.GetLogsForDate(c.Request.Context(), date)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "entries": entries})
}

// ExportActivityLogs handles
// GET /api/activity-logs/export?startDate=&endDate=&categories=&format=.
func (h *Handler) ExportActivityLogs(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		h.renderError(c, apperr.Validation("format", err.Error()))
		return
	}

	q := activity.ExportQuery{
		StartDate:  c.Query("startDate"),
		EndDate:    c.Query("endDate"),
		Categories: parse.List(c.Query("categories")),
	}
	rows, err := h.activity.ExportLogs(c.Request.Context(), q)
	if err != nil {
		h.renderError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, rows); err != nil {
		h.renderError(c, apperr.Internal(err, "failed to render export"))
		return
	}

	filename := fmt.Sprintf("activity-logs_%s_%s.%s", q.StartDate, q.EndDate, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// DeleteActivityLog handles DELETE /api/activity-logs/:id.
func (h *Handler) DeleteActivityLog(c *gin.Context) {
	role := mw.Principal(c).Role
	if err := h.activity.DeleteLog(c.Request.Context(), c.Param("id"), role); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetCategories handles GET /api/categories.
func (h *Handler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":    model.CategoryCatalogVersion,
		"categories": h.activity.Categories(),
	})
}
