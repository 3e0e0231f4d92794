package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/guest"
	"guest-presence-backend/internal/paging"
	"guest-presence-backend/internal/parse"
)

// CreateGuest handles POST /api/guests.
func (h *Handler) CreateGuest(c *gin.Context) {
	var req guest.RegisterInput
	if err := bindJSON(c, &req); err != nil {
		h.renderError(c, err)
		return
	}
	g, err := h.guests.Register(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// ListGuests handles GET /api/guests?q=&page=&limit=.
func (h *Handler) ListGuests(c *gin.Context) {
	res, err := h.guests.Search(c.Request.Context(), guest.SearchQuery{
		Query: c.Query("q"),
		Page:  paging.CoercePage(c.Query("page"), paging.DefaultPage),
		Limit: paging.CoerceLimit(c.Query("limit"), paging.DefaultLimit, paging.MaxLimit),
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetGuest handles GET /api/guests/:id.
func (h *Handler) GetGuest(c *gin.Context) {
	g, err := h.guests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// DeleteGuest handles DELETE /api/guests/:id.
func (h *Handler) DeleteGuest(c *gin.Context) {
	if err := h.presence.DeleteGuest(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transitionRequest struct {
	At string `json:"at"`
}

// at parses the optional transition instant.
func (h *Handler) at(c *gin.Context) (*time.Time, error) {
	var req transitionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		return nil, err
	}
	if req.At == "" {
		return nil, nil
	}
	t, err := parse.Instant(req.At, h.slots.Location())
	if err != nil {
		return nil, apperr.InvalidTimestamp("at", err)
	}
	return &t, nil
}

// CheckIn handles POST /api/guests/:id/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	at, err := h.at(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	session, err := h.presence.CheckIn(c.Request.Context(), c.Param("id"), at)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// CheckOut handles POST /api/guests/:id/check-out.
func (h *Handler) CheckOut(c *gin.Context) {
	at, err := h.at(c)
	if err != nil {
		h.renderError(c, err)
		return
	}
	session, err := h.presence.CheckOut(c.Request.Context(), c.Param("id"), at)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
