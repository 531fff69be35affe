package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/services"
)

type CourseHandler struct {
	svc services.CourseService
}

func NewCourseHandler(svc services.CourseService) *CourseHandler {
	return &CourseHandler{svc: svc}
}

// POST /api/courses
func (h *CourseHandler) Create(c *gin.Context) {
	var input services.CreateCourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	course, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		respondCourseError(c, err)
		return
	}
	RespondCreated(c, gin.H{"course": course})
}

// GET /api/courses?status=
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondCourseError(c, err)
		return
	}
	RespondOK(c, gin.H{"courses": courses})
}

// GET /api/courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid course id"))
		return
	}
	course, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondCourseError(c, err)
		return
	}
	RespondOK(c, gin.H{"course": course})
}

// DELETE /api/courses/:id
func (h *CourseHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid course id"))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondCourseError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// PATCH /api/courses/:id/state
func (h *CourseHandler) PatchState(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid course id"))
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Status == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("status is required"))
		return
	}
	course, err := h.svc.TransitionState(c.Request.Context(), id, body.Status)
	if err != nil {
		respondCourseError(c, err)
		return
	}
	RespondOK(c, gin.H{"course": course})
}

// respondCourseError maps service errors shared across the course-shaped
// endpoints onto consistent status codes.
func respondCourseError(c *gin.Context, err error) {
	var invalid *services.InvalidTransitionError
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrCatalogNotFound),
		errors.Is(err, services.ErrActivityNotFound),
		errors.Is(err, services.ErrAssessmentNotFound),
		errors.Is(err, services.ErrProfileNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrObjectivesMissing):
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
	case errors.As(err, &invalid):
		RespondError(c, http.StatusBadRequest, "invalid_transition", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
