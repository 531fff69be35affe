package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/services"
	"github.com/yungbote/learnloop-backend/internal/sse"
	"github.com/yungbote/learnloop-backend/internal/types"
)

type AssessmentHandler struct {
	log           *logger.Logger
	courseSvc     services.CourseService
	genSvc        services.AssessmentGenerationService
	assessmentSvc services.AssessmentService
	registry      *jobs.Registry
	bus           *sse.Bus
}

func NewAssessmentHandler(
	log *logger.Logger,
	courseSvc services.CourseService,
	genSvc services.AssessmentGenerationService,
	assessmentSvc services.AssessmentService,
	registry *jobs.Registry,
	bus *sse.Bus,
) *AssessmentHandler {
	return &AssessmentHandler{
		log:           log.With("handler", "AssessmentHandler"),
		courseSvc:     courseSvc,
		genSvc:        genSvc,
		assessmentSvc: assessmentSvc,
		registry:      registry,
		bus:           bus,
	}
}

// POST /api/assessments/:courseID/generate
func (h *AssessmentHandler) Generate(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid course id"))
		return
	}
	if err := h.genSvc.Start(c.Request.Context(), courseID); err != nil {
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			RespondError(c, http.StatusConflict, "already_running", err)
			return
		}
		respondCourseError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"status": types.CourseStatusGeneratingAssessment})
}

// POST /api/assessments/:id/submit
func (h *AssessmentHandler) Submit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid assessment id"))
		return
	}
	var body struct {
		Submissions []services.AssessmentSubmission `json:"submissions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.assessmentSvc.Submit(c.Request.Context(), id, body.Submissions)
	if err != nil {
		respondCourseError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/assessments/:courseID/stream
//
// Terminal frames are assessment_complete and assessment_error; either one
// closes the stream.
func (h *AssessmentHandler) Stream(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid course id"))
		return
	}
	course, err := h.courseSvc.Get(c.Request.Context(), courseID)
	if err != nil {
		respondCourseError(c, err)
		return
	}

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(c, http.StatusInternalServerError, "streaming_unsupported", fmt.Errorf("streaming unsupported"))
		return
	}
	sse.SetStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	key := jobs.AssessmentKey(courseID.String())

	switch course.Status {
	case types.CourseStatusGeneratingAssessment:
		if !h.registry.IsRunning(key) {
			fresh, err := h.courseSvc.Get(c.Request.Context(), courseID)
			if err == nil && fresh != nil && fresh.Status != types.CourseStatusGeneratingAssessment {
				h.writeFinished(w, flusher, fresh)
				return
			}
			_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventAssessmentError, Data: map[string]any{
				"message": "no assessment generation in progress",
			}})
			return
		}
	case types.CourseStatusAssessmentReady, types.CourseStatusCompleted:
		h.writeFinished(w, flusher, course)
		return
	default:
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventAssessmentError, Data: map[string]any{
			"message": "no assessment generation in progress",
		}})
		return
	}

	sub := h.bus.Subscribe(key)
	defer h.bus.Unsubscribe(key, sub)

	_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventGeneratingAssessment, Data: map[string]any{
		"caught_up": true,
	}})

	ctx := c.Request.Context()
	keepalive := time.NewTicker(streamKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if err := sse.WriteKeepalive(w, flusher); err != nil {
				return
			}
			if h.registry.IsRunning(key) {
				continue
			}
			fresh, err := h.courseSvc.Get(ctx, courseID)
			if err != nil || fresh == nil {
				return
			}
			h.writeFinished(w, flusher, fresh)
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := sse.WriteEvent(w, flusher, ev); err != nil {
				return
			}
			if ev.Name == sse.EventAssessmentComplete || ev.Name == sse.EventAssessmentError {
				return
			}
		}
	}
}

// writeFinished synthesizes the terminal frame from persisted state.
func (h *AssessmentHandler) writeFinished(w http.ResponseWriter, flusher http.Flusher, course *types.CourseInstance) {
	var latest *types.Assessment
	for _, a := range course.Assessments {
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventAssessmentError, Data: map[string]any{
			"message": "assessment generation failed",
		}})
		return
	}
	_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventAssessmentComplete, Data: map[string]any{
		"assessment_id": latest.ID.String(),
		"caught_up":     true,
	}})
}
