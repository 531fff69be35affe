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

const streamKeepaliveInterval = 15 * time.Second

type CourseGenHandler struct {
	log       *logger.Logger
	courseSvc services.CourseService
	genSvc    services.CourseGenerationService
	registry  *jobs.Registry
	bus       *sse.Bus
}

func NewCourseGenHandler(log *logger.Logger, courseSvc services.CourseService, genSvc services.CourseGenerationService, registry *jobs.Registry, bus *sse.Bus) *CourseGenHandler {
	return &CourseGenHandler{
		log:       log.With("handler", "CourseGenHandler"),
		courseSvc: courseSvc,
		genSvc:    genSvc,
		registry:  registry,
		bus:       bus,
	}
}

// POST /api/courses/:id/generate
func (h *CourseGenHandler) Generate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid course id"))
		return
	}
	if err := h.genSvc.Start(c.Request.Context(), id); err != nil {
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			RespondError(c, http.StatusConflict, "already_running", err)
			return
		}
		respondCourseError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"status": types.CourseStatusGenerating})
}

// GET /api/courses/:id/generate/stream
//
// The stream replays already-persisted progress on connect, then relays live
// events. generation_complete is the terminal frame; writing it always closes
// the stream.
func (h *CourseGenHandler) Stream(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid course id"))
		return
	}
	course, err := h.courseSvc.Get(c.Request.Context(), id)
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

	switch course.Status {
	case types.CourseStatusGenerating:
		// fallthrough to the live loop below
	case types.CourseStatusDraft:
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventGenerationError, Data: map[string]any{
			"message": "no generation in progress",
		}})
		return
	case types.CourseStatusGenerationFailed:
		h.writeFinished(w, flusher, course)
		return
	default:
		// Generation already finished; replay outcome and close.
		h.writeFinished(w, flusher, course)
		return
	}

	key := id.String()
	if !h.registry.IsRunning(key) {
		// Status says generating but no job is live (for example after a
		// restart). Re-read once in case the job just finished.
		fresh, err := h.courseSvc.Get(c.Request.Context(), id)
		if err == nil && fresh != nil && fresh.Status != types.CourseStatusGenerating {
			h.writeFinished(w, flusher, fresh)
			return
		}
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventGenerationError, Data: map[string]any{
			"message": "no generation in progress",
		}})
		return
	}

	// Subscribe before the catch-up read so nothing published in between is
	// lost. The course loaded above predates the subscription, so re-read it
	// here; a lesson committed in that window may then appear both in the
	// replay and live, which clients dedupe by objective_index.
	sub := h.bus.Subscribe(key)
	defer h.bus.Unsubscribe(key, sub)

	if fresh, err := h.courseSvc.Get(c.Request.Context(), id); err == nil && fresh != nil {
		course = fresh
	}
	h.replayFinishedLessons(w, flusher, course)
	h.liveLoop(c, w, flusher, id, key, sub)
}

// replayFinishedLessons emits the trio of progress events for every lesson
// already fully generated, marked so clients can distinguish replay from
// live progress.
func (h *CourseGenHandler) replayFinishedLessons(w http.ResponseWriter, flusher http.Flusher, course *types.CourseInstance) {
	for _, lesson := range course.Lessons {
		if !lesson.HasContent() || !lesson.Activity.HasSpec() {
			continue
		}
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventLessonPlanned, Data: map[string]any{
			"objective_index": lesson.ObjectiveIndex, "caught_up": true,
		}})
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventLessonWritten, Data: map[string]any{
			"objective_index": lesson.ObjectiveIndex, "lesson_id": lesson.ID.String(), "caught_up": true,
		}})
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventActivityCreated, Data: map[string]any{
			"objective_index": lesson.ObjectiveIndex, "activity_id": lesson.Activity.ID.String(), "caught_up": true,
		}})
	}
}

func (h *CourseGenHandler) liveLoop(c *gin.Context, w http.ResponseWriter, flusher http.Flusher, id uuid.UUID, key string, sub *sse.Subscriber) {
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
			// The job ended but its terminal event was missed (dropped or
			// raced). Re-read once and synthesize the outcome.
			fresh, err := h.courseSvc.Get(ctx, id)
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
			if ev.Name == sse.EventGenerationComplete {
				return
			}
		}
	}
}

// writeFinished emits the terminal frames for a course whose generation is
// not live: a failure explanation when it failed, then generation_complete.
func (h *CourseGenHandler) writeFinished(w http.ResponseWriter, flusher http.Flusher, course *types.CourseInstance) {
	count := 0
	for _, lesson := range course.Lessons {
		if lesson.HasContent() && lesson.Activity.HasSpec() {
			count++
		}
	}
	if course.Status == types.CourseStatusGenerationFailed {
		_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventGenerationError, Data: map[string]any{
			"message": "course generation failed",
		}})
	}
	_ = sse.WriteEvent(w, flusher, sse.Event{Name: sse.EventGenerationComplete, Data: map[string]any{
		"lesson_count": count,
		"status":       course.Status,
	}})
}
