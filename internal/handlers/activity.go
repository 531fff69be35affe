package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/services"
)

type ActivityHandler struct {
	svc services.ActivityService
}

func NewActivityHandler(svc services.ActivityService) *ActivityHandler {
	return &ActivityHandler{svc: svc}
}

// POST /api/activities/:id/submit
func (h *ActivityHandler) Submit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid activity id"))
		return
	}
	var body struct {
		Submission string `json:"submission"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Submission == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("submission is required"))
		return
	}
	result, err := h.svc.Submit(c.Request.Context(), id, body.Submission)
	if err != nil {
		respondCourseError(c, err)
		return
	}
	RespondOK(c, result)
}
