package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	webhookRatePerSecond = 50
	webhookBurst         = 100
)

// WebhookRateLimit caps webhook deliveries per provider. A misconfigured
// provider retry loop should not starve the reconciler. Allows everything
// when redis is not configured.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
		key := "webhook:" + provider

		result, err := s.limiter.Allow(c.Request.Context(), key, webhookRatePerSecond, webhookBurst)
		if err != nil {
			// Redis trouble must not drop provider deliveries.
			c.Next()
			return
		}
		if !result.Allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "billing_webhook")
			}
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate_limited",
			})
			return
		}
		c.Next()
	}
}
