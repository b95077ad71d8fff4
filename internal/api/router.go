package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"venue-booking-backend/config"
	"venue-booking-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. Metrics are served from gatherer.
func NewRouter(handler *Handler, cfg config.ServerConfig, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	// Status and day lists change with the date, so entries never outlive it.
	caching := mw.CacheBy(cacheStore, ttl, func(c *gin.Context) string {
		return handler.clock.Now().Format(dateLayout)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/venues/:venue_id/status", caching, handler.GetVenueStatus)
		api.GET("/venues/:venue_id/days", caching, handler.GetVenueDays)
		api.GET("/venues/:venue_id/slots", handler.GetVenueSlots)
		api.POST("/venues/:venue_id/reservation-check", handler.PostReservationCheck)

		api.GET("/users/:user_id/reservations", handler.GetUserReservations)
		api.POST("/reservations/:reservation_id/status", handler.PostReservationStatus)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
