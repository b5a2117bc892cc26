package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashwanth-3000/find.ai/internal/domain"
	"github.com/yashwanth-3000/find.ai/internal/repository"
)

// ProfileHandler exposes the minimal profile surface the import boundary
// reports through.
type ProfileHandler struct {
	repo *repository.ProfileRepository
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(repo *repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{repo: repo}
}

// GetProfile handles GET /api/v1/profiles/:id.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	profile, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type createProfileRequest struct {
	ID          string `json:"id" binding:"required"`
	LinkedInURL string `json:"linkedin_url"`
}

// CreateProfile handles POST /api/v1/profiles.
func (h *ProfileHandler) CreateProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	profile := &domain.ApplicantProfile{
		ID:           req.ID,
		ImportStatus: domain.ImportStatusIdle,
	}
	if req.LinkedInURL != "" {
		profile.LinkedInURL = &req.LinkedInURL
	}

	if err := h.repo.Create(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, profile)
}
