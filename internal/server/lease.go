package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	leasedomain "github.com/rentfolio/rentfolio/internal/lease/domain"
)

func (s *Server) ListLeases(c *gin.Context) {
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
		leases, err := s.leaseSvc.ListByProperty(ctx, orgID, propertyID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"leases": leases})
		return
	}

	leases, err := s.leaseSvc.List(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leases": leases})
}

func (s *Server) CreateLease(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req leasedomain.CreateLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	lease, err := s.leaseSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lease)
}

func (s *Server) GetLeaseByID(c *gin.Context) {
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

	lease, err := s.leaseSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, lease)
}

type endLeaseRequest struct {
	EndDate time.Time `json:"end_date"`
}

func (s *Server) EndLease(c *gin.Context) {
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

	var req endLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.EndDate.IsZero() {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	lease, err := s.leaseSvc.End(c.Request.Context(), orgID, id, req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, lease)
}

func (s *Server) DeleteLease(c *gin.Context) {
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

	if err := s.leaseSvc.Delete(c.Request.Context(), orgID, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
