// ===========================================
// Router
// ===========================================
// Global middleware runs in this order:
// 1. Recovery:  panics become 500
// 2. Logger:    one slog record per request
// 3. Security:  response headers
// 4. CORS
//
// Only TrustedProxies may set X-Forwarded-For; with none, the client
// IP used for click records and rate limiting is the peer address.
//
// Health routes skip auth and rate limiting. The redirect route is
// rate limited per client IP. The admin API authenticates first, so
// the limiter can count per key instead of per IP.
// ===========================================

package handler

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/user/linkshortener/internal/middleware"
)

// RouterDeps is everything NewRouter wires together.
type RouterDeps struct {
	Links       *LinkHandler
	Analytics   *AnalyticsHandler
	Health      *HealthHandler
	Auth        *middleware.AdminAuth
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger

	// TrustedProxies are IPs or CIDRs; nil trusts no proxy.
	TrustedProxies []string
}

// NewRouter builds the gin engine. Call gin.SetMode before this.
func NewRouter(d RouterDeps) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	router.GET("/health", d.Health.Health)
	router.GET("/ready", d.Health.Ready)
	router.GET("/live", d.Health.Live)

	limit := d.RateLimiter.Middleware()

	router.GET("/:shortCode", limit, d.Links.Redirect)

	api := router.Group("/api")
	api.Use(d.Auth.RequireKey(), limit)
	{
		api.POST("/links", d.Links.Create)
		api.GET("/links", d.Links.List)
		api.GET("/links/:id", d.Links.Get)
		api.PATCH("/links/:id", d.Links.Update)
		api.DELETE("/links/:id", d.Links.Delete)
		api.POST("/links/:id/disable", d.Links.Disable)
		api.POST("/links/:id/enable", d.Links.Enable)
		api.GET("/links/:id/analytics", d.Analytics.Link)

		api.GET("/analytics", d.Analytics.All)
	}

	return router, nil
}
