package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"hostel-allocation-backend/config"
	"hostel-allocation-backend/internal/allocation"
	"hostel-allocation-backend/internal/matching"
	"hostel-allocation-backend/internal/mw"
	"hostel-allocation-backend/internal/scorer"
	"hostel-allocation-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, s store.Store, m *allocation.Manager, e *matching.Engine, sc *scorer.Service, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, m, e, sc, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	// Cache only the read-model endpoints; allocation state must always be
	// served fresh.
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/rooms", handler.CreateRoom)
		api.GET("/rooms", caching, handler.GetRooms)
		api.GET("/rooms/:room_id", handler.GetRoom)
		api.PUT("/rooms/:room_id/maintenance", handler.SetMaintenance)

		api.PUT("/students/:student_id/profile", handler.PutProfile)

		api.POST("/pool", handler.JoinPool)
		api.DELETE("/pool/:student_id", handler.LeavePool)
		api.GET("/pool", caching, handler.GetPool)

		api.POST("/matching/run", handler.RunMatching)
		api.GET("/matching/preview", handler.PreviewMatches)

		api.POST("/allocations/holds", handler.PlaceHold)
		api.GET("/allocations/:allocation_id", handler.GetAllocation)
		api.POST("/allocations/:allocation_id/release", handler.ReleaseAllocation)
		api.POST("/payments/events", handler.PaymentEvent)

		api.POST("/transfers", handler.RequestTransfer)
		api.POST("/transfers/:allocation_id/cancel", handler.CancelTransfer)
		api.POST("/deallocations", handler.Deallocate)

		api.GET("/wallets/:student_id", handler.GetWallet)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
