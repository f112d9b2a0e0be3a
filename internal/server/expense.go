package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	expensedomain "github.com/rentfolio/rentfolio/internal/expense/domain"
)

func (s *Server) ListExpenses(c *gin.Context) {
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
		expenses, err := s.expenseSvc.ListByProperty(ctx, orgID, propertyID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"expenses": expenses})
		return
	}

	expenses, err := s.expenseSvc.List(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenses": expenses})
}

func (s *Server) CreateExpense(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req expensedomain.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	expense, err := s.expenseSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, expense)
}

func (s *Server) GetExpenseByID(c *gin.Context) {
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

	expense, err := s.expenseSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, expense)
}

func (s *Server) DeleteExpense(c *gin.Context) {
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

	if err := s.expenseSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
