package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/ruz-auth/internal/idempotency"
	"github.com/Proton-105/ruz-auth/internal/middleware"
)

// DefaultIdempotencyTTL is how long a registration response is replayed for the same key.
const DefaultIdempotencyTTL = 24 * time.Hour

// Deps holds the collaborators of the router. Idempotency, RateLimit and MetricsPath are optional.
type Deps struct {
	Auth        *AuthHandler
	Ruz         *RuzHandler
	User        *UserHandler
	Health      *HealthHandler
	Tokens      middleware.TokenParser
	Idempotency idempotency.Manager
	RateLimit   *middleware.RateLimitMiddleware
	MetricsPath string
	Log         *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics())

	r.GET("/health/liveness", d.Health.Liveness)
	r.GET("/health/readiness", d.Health.Readiness)
	if d.MetricsPath != "" {
		r.GET(d.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	authGroup := r.Group("/auth")
	if d.RateLimit != nil {
		authGroup.Use(d.RateLimit.Handle())
	}
	authGroup.POST("/register", middleware.Idempotency(d.Idempotency, DefaultIdempotencyTTL, log), d.Auth.Register)
	authGroup.POST("/verify-otp", d.Auth.VerifyOtp)
	authGroup.POST("/forgot-password", d.Auth.ForgotPassword)
	authGroup.POST("/reset-password", d.Auth.ResetPassword)
	authGroup.POST("/login", d.Auth.Login)

	authenticated := middleware.Authenticate(d.Tokens, log)

	r.GET("/user/me", authenticated, d.User.Me)

	ruzGroup := r.Group("/ruz")
	ruzGroup.GET("/decode", d.Ruz.Decode)
	ruzGroup.POST("/decode-batch", d.Ruz.DecodeBatch)
	ruzGroup.GET("/company/me/decoded", authenticated, d.Ruz.CompanyMeDecoded)
	ruzGroup.GET("/company/:id/decoded", d.Ruz.CompanyDecoded)

	return r
}
