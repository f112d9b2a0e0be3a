package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rentfolio/rentfolio/internal/billing/catalog"
)

// GetBillingRecord returns the tenant's billing record together with the
// verdict evaluated at the current time.
func (s *Server) GetBillingRecord(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	record, verdict, err := s.billingSvc.Check(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":  record,
		"verdict": verdict,
	})
}

type checkoutSessionRequest struct {
	PriceID string `json:"price_id"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req checkoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.PriceID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	url, err := s.billingSvc.CreateCheckoutSession(c.Request.Context(), orgID, req.PriceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) CreatePortalSession(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	url, err := s.billingSvc.CreatePortalSession(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ListPlans exposes the plan catalog for the upgrade page.
func (s *Server) ListPlans(c *gin.Context) {
	plans := make(map[string]catalog.PlanSpec)
	for _, priceID := range s.catalog.PriceIDs() {
		plans[priceID] = s.catalog.Resolve(priceID)
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}
