package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	organizationdomain "github.com/rentfolio/rentfolio/internal/organization/domain"
)

type createOrgRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateOrganization(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), user.ID, organizationdomain.CreateOrganizationRequest{
		Name: req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) ListUserOrgs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.organizationSvc.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": items})
}

func (s *Server) GetOrganization(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) ListOrganizationMembers(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	members, err := s.organizationSvc.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

type addMemberRequest struct {
	UserID snowflake.ID `json:"user_id"`
	Role   string       `json:"role"`
}

func (s *Server) AddOrganizationMember(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.UserID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	member, err := s.organizationSvc.AddMember(c.Request.Context(), orgID, req.UserID, req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (s *Server) RemoveOrganizationMember(c *gin.Context) {
	orgID, ok := currentOrgID(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	userID, err := snowflake.ParseString(c.Param("userId"))
	if err != nil || userID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.organizationSvc.RemoveMember(c.Request.Context(), orgID, userID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
