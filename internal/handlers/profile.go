package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/learnloop-backend/internal/services"
)

type ProfileHandler struct {
	svc services.LearnerProfileService
}

func NewProfileHandler(svc services.LearnerProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.svc.Get(c.Request.Context())
	if err != nil {
		respondCourseError(c, err)
		return
	}
	if profile == nil {
		RespondError(c, http.StatusNotFound, "not_found", services.ErrProfileNotFound)
		return
	}
	RespondOK(c, gin.H{"profile": profile})
}

// PUT /api/profile
func (h *ProfileHandler) Put(c *gin.Context) {
	var input services.UpsertProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	profile, err := h.svc.Upsert(c.Request.Context(), input)
	if err != nil {
		respondCourseError(c, err)
		return
	}
	RespondOK(c, gin.H{"profile": profile})
}
