package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"libreserve-backend/config"
	"libreserve-backend/internal/mw"
	"libreserve-backend/internal/token"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, verifier mw.TokenVerifier, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(logger))
	// Matric numbers contain slashes; clients send them as %2F within one segment.
	r.UseRawPath = true

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, cfg.RequestIPHeader)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 10*time.Minute)
	caching := mw.Cache(cacheStore, ttl)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	// Public: students have no token. PUT proves ownership with a reservation code.
	{
		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	desk := api.Group("")
	desk.Use(mw.RequireRole(verifier, token.RoleLibrarian, logger), mw.Invalidate(cacheStore))
	{
		desk.POST("/admissions/students/matric/:matric", h.SignInByMatricNumber)
		desk.POST("/admissions/students/code/:code", h.SignInByReservationCode)
		desk.POST("/admissions/students/matric/:matric/sign-out", h.SignOutStudent)

		desk.GET("/occupancy/students", h.StudentsInLibrary)
		desk.DELETE("/occupancy/students/matric/:matric", h.KickOutByMatricNumber)
		desk.DELETE("/occupancy/students/code/:code", h.KickOutByReservationCode)

		desk.POST("/students/:matric/blacklist", h.BlacklistStudent)
		desk.GET("/students/:matric/reservations", h.StudentReservations)
		desk.GET("/students/:matric/reservations/today", h.StudentReservationsForToday)

		desk.GET("/reservations/code/:code", h.VerifyReservationCode)
		desk.GET("/reservations/today", caching, h.ReservationsForToday)

		desk.POST("/librarians/sign-in", h.SignInLibrarian)
		desk.POST("/librarians/sign-out", h.SignOutLibrarian)
	}

	return r
}
