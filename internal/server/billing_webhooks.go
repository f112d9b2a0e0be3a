package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/rentfolio/rentfolio/internal/billing/domain"
)

// HandleBillingWebhook ingests one provider webhook delivery. Signature
// and payload failures return 400 so the provider stops retrying garbage;
// transient errors return 500 so it redelivers.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err = s.webhookSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		switch {
		case errors.Is(err, billingdomain.ErrEventAlreadyProcessed):
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		case errors.Is(err, billingdomain.ErrInvalidProvider),
			errors.Is(err, billingdomain.ErrInvalidSignature),
			errors.Is(err, billingdomain.ErrInvalidPayload),
			errors.Is(err, billingdomain.ErrInvalidEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			AbortWithError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
