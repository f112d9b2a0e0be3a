package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	loandomain "github.com/rentfolio/rentfolio/internal/loan/domain"
)

func (s *Server) ListLoans(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	ctx := c.Request.Context()
	if raw := c.Query("property_id"); raw != "" {
		propertyID, err := snowflake.ParseString(raw)
		if err != nil || propertyID == 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		loans, err := s.loanSvc.ListByProperty(ctx, orgID, propertyID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"loans": loans})
		return
	}

	loans, err := s.loanSvc.List(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}

func (s *Server) CreateLoan(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req loandomain.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	loan, err := s.loanSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, loan)
}

func (s *Server) GetLoanByID(c *gin.Context) {
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

	loan, err := s.loanSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, loan)
}

func (s *Server) DeleteLoan(c *gin.Context) {
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

	if err := s.loanSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
