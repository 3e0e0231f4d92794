package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"guest-presence-backend/config"
	"guest-presence-backend/internal/auth"
	"guest-presence-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, h *Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(log))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	// Short-lived response cache for read-mostly endpoints, emptied by any write.
	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	authCfg := auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Authenticate(authCfg, log), mw.RequireRole(auth.RoleStaff), mw.FlushOnWrite(cacheStore))
	{
		api.POST("/guests", h.CreateGuest)
		api.GET("/guests", h.ListGuests)
		api.GET("/guests/:id", h.GetGuest)
		api.DELETE("/guests/:id", h.DeleteGuest)
		api.POST("/guests/:id/check-in", h.CheckIn)
		api.POST("/guests/:id/check-out", h.CheckOut)

		api.GET("/presence/current", h.GetCurrentPresence)
		api.GET("/presence/stats", caching, h.GetTodayStats)
		api.GET("/presence/history", h.GetPresenceHistory)

		api.PUT("/activity-logs", h.PutActivityLog)
		api.GET("/activity-logs", h.GetActivityLogs)
		api.GET("/activity-logs/export", h.ExportActivityLogs)
		api.DELETE("/activity-logs/:id", h.DeleteActivityLog)

		api.GET("/categories", caching, h.GetCategories)
	}

	return r
}
