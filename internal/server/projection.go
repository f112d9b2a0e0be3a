package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// GetPropertyProjection returns the cashflow and financing report for one
// property. Pass ?schedule=true to include the amortization table.
func (s *Server) GetPropertyProjection(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	includeSchedule, _ := strconv.ParseBool(c.Query("schedule"))

	report, err := s.projectionSvc.ProjectProperty(c.Request.Context(), orgID, id, includeSchedule)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) GetPortfolioProjection(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	summary, err := s.projectionSvc.ProjectPortfolio(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
