package router

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wso2/consent-ledger-api/internal/config"
	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/metrics"
	"github.com/wso2/consent-ledger-api/internal/utils"
	pkgutils "github.com/wso2/consent-ledger-api/pkg/utils"
)

// Correlation headers, checked in order
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

// correlationID propagates the caller's correlation ID or mints one
func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderCorrelationID)
		if id == "" {
			id = c.GetHeader(HeaderRequestID)
		}
		if id == "" {
			id = pkgutils.GenerateID()
		}
		c.Set(utils.ContextKeyCorrelationID, id)
		c.Header(HeaderCorrelationID, id)
		c.Next()
	}
}

// requestLogger logs one line per request
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"latency_ms":     time.Since(start).Milliseconds(),
			"correlation_id": utils.GetCorrelationIDFromContext(c),
		}).Debug("Request handled")
	}
}

// requestMetrics records latency by matched route
func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequestLatency(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// requestTimeout bounds the request context, and so every ledger
// transaction started from it
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// identity turns the headers set by the upstream auth collaborator into a
// ledger.Caller. The subject header is mandatory.
func identity(cfg config.IdentityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		subjectID := strings.TrimSpace(c.GetHeader(cfg.SubjectHeader))
		if subjectID == "" {
			utils.SendUnauthorizedError(c, "Missing "+cfg.SubjectHeader+" header")
			c.Abort()
			return
		}

		isAdmin := false
		if raw := strings.TrimSpace(c.GetHeader(cfg.AdminHeader)); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				utils.SendBadRequestError(c, "Invalid "+cfg.AdminHeader+" header", "expected true or false")
				c.Abort()
				return
			}
			isAdmin = parsed
		}

		c.Set(utils.ContextKeyCaller, ledger.Caller{SubjectID: subjectID, IsAdmin: isAdmin})
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := utils.GetCallerFromContext(c)
		if !ok || !caller.IsAdmin {
			utils.SendForbiddenError(c, "Administrator privilege required")
			c.Abort()
			return
		}
		c.Next()
	}
}
