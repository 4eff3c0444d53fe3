package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/wso2/consent-ledger-api/internal/config"
	"github.com/wso2/consent-ledger-api/internal/handlers"
	"github.com/wso2/consent-ledger-api/internal/metrics"
	"github.com/wso2/consent-ledger-api/internal/models"
)

// HealthChecker reports whether the backing database is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options carries everything the router wires together
type Options struct {
	ConsentHandler *handlers.ConsentHandler
	AdminHandler   *handlers.AdminHandler
	Health         HealthChecker
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Identity       config.IdentityConfig
	RequestTimeout time.Duration
	Logger         *logrus.Logger
}

// SetupRouter configures all API routes
func SetupRouter(opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(correlationID())
	router.Use(requestLogger(opts.Logger))
	router.Use(requestMetrics(opts.Metrics))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := opts.Health.HealthCheck(ctx); err != nil {
			opts.Logger.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, models.HealthResponse{Status: "unhealthy", Database: "down"})
			return
		}
		c.JSON(http.StatusOK, models.HealthResponse{Status: "healthy", Database: "up"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(requestTimeout(opts.RequestTimeout), identity(opts.Identity))
	{
		consents := v1.Group("/consents")
		{
			consents.POST("", opts.ConsentHandler.CaptureConsent)
			consents.GET("", opts.ConsentHandler.ListConsents)
			consents.GET("/:consentId", opts.ConsentHandler.GetConsent)
			consents.POST("/:consentId/revoke", opts.ConsentHandler.RevokeConsent)
			consents.GET("/:consentId/chain", opts.ConsentHandler.GetChain)
		}

		admin := v1.Group("/admin", requireAdmin())
		{
			admin.GET("/consents", opts.AdminHandler.ListConsents)
			admin.GET("/consents/:consentId/audit", opts.AdminHandler.GetAuditTrail)
		}
	}

	return router
}
