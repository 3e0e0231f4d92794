package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"guest-presence-backend/internal/activity"
	"guest-presence-backend/internal/apperr"
	"guest-presence-backend/internal/guest"
	"guest-presence-backend/internal/presence"
	"guest-presence-backend/internal/timeslot"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	guests   *guest.Service
	presence *presence.Service
	activity *activity.Service
	slots    *timeslot.Normalizer
	db       *gorm.DB
	log      *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(guests *guest.Service, presence *presence.Service, activity *activity.Service, slots *timeslot.Normalizer, db *gorm.DB, log *zap.Logger) *Handler {
	return &Handler{
		guests:   guests,
		presence: presence,
		activity: activity,
		slots:    slots,
		db:       db,
		log:      log,
	}
}

type errorResponse struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
}

// renderError writes err with the status of its kind. Internal failures are
// logged and their details withheld from the client.
func (h *Handler) renderError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	resp := errorResponse{Error: kind, Field: apperr.FieldOf(err)}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		resp.Message = appErr.Message
	} else {
		resp.Message = string(kind)
	}

	if kind == apperr.KindInternal {
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		resp.Message = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(kind.Status(), resp)
}

// bindOptionalJSON decodes the body into dst. An empty body leaves dst untouched.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("body", "malformed JSON body")
	}
	return nil
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation("body", "malformed JSON body")
	}
	return nil
}

// Healthz handles GET /healthz by pinging the database.
func (h *Handler) Healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
