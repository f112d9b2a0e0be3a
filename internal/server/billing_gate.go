package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/rentfolio/rentfolio/internal/billing/domain"
)

// BillingRequired blocks portfolio writes and reads for tenants whose
// subscription state does not permit access. The verdict is evaluated on
// every request because grace expiry is driven by the clock, not by
// events. Must run after OrgContext.
func (s *Server) BillingRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, ok := currentOrgID(c)
		if !ok {
			AbortWithError(c, ErrForbidden)
			return
		}

		record, verdict, err := s.billingSvc.Check(c.Request.Context(), orgID)
		if err != nil {
			// Do not lock every tenant out because the billing store
			// hiccupped. Surface a retryable error instead.
			if errors.Is(err, billingdomain.ErrStoreUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
					"error": "billing_check_failed",
				})
				return
			}
			AbortWithError(c, err)
			return
		}

		if !verdict.Allowed {
			payload := gin.H{
				"error":  "subscription_inactive",
				"status": record.Status,
				"reason": verdict.Reason,
			}
			if verdict.GraceUntil != nil {
				payload["grace_until"] = verdict.GraceUntil
			}
			c.AbortWithStatusJSON(http.StatusForbidden, payload)
			return
		}

		// Downstream quota checks (property limit on create) read this
		// instead of hitting the store a second time.
		c.Request = c.Request.WithContext(billingdomain.WithCheck(c.Request.Context(), record, verdict))
		c.Next()
	}
}
