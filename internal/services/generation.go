package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/jobs"
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
	"github.com/yungbote/learnloop-backend/internal/requestdata"
	"github.com/yungbote/learnloop-backend/internal/sse"
	"github.com/yungbote/learnloop-backend/internal/types"
)

var ErrCourseNotFound = errors.New("course not found")

// genSnapshot carries plain copied values across the detached-goroutine
// boundary. The pipeline never reads request-scoped state.
type genSnapshot struct {
	UserID      uuid.UUID
	CourseID    uuid.UUID
	Objectives  []string
	Description string
	Profile     map[string]any
}

type CourseGenerationService interface {
	// Start validates ownership and lifecycle, snapshots the pipeline
	// inputs and registers the detached generation job. It returns before
	// any generation work happens.
	Start(ctx context.Context, courseID uuid.UUID) error
}

type courseGenerationService struct {
	db  *gorm.DB
	log *logger.Logger

	bus      *sse.Bus
	registry *jobs.Registry

	courseRepo   repos.CourseRepo
	lessonRepo   repos.LessonRepo
	activityRepo repos.ActivityRepo
	profileRepo  repos.LearnerProfileRepo

	progression ProgressionService
	agents      AgentService
}

func NewCourseGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bus *sse.Bus,
	registry *jobs.Registry,
	courseRepo repos.CourseRepo,
	lessonRepo repos.LessonRepo,
	activityRepo repos.ActivityRepo,
	profileRepo repos.LearnerProfileRepo,
	progression ProgressionService,
	agents AgentService,
) CourseGenerationService {
	return &courseGenerationService{
		db:           db,
		log:          baseLog.With("service", "CourseGenerationService"),
		bus:          bus,
		registry:     registry,
		courseRepo:   courseRepo,
		lessonRepo:   lessonRepo,
		activityRepo: activityRepo,
		profileRepo:  profileRepo,
		progression:  progression,
		agents:       agents,
	}
}

func (s *courseGenerationService) Start(ctx context.Context, courseID uuid.UUID) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return ErrNotAuthenticated
	}

	key := courseID.String()
	if s.registry.IsRunning(key) {
		return jobs.ErrAlreadyRunning
	}

	course, err := s.courseRepo.GetWithChildren(ctx, nil, courseID)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	if course == nil || course.UserID != rd.UserID {
		return ErrCourseNotFound
	}

	// draft -> generating, or generation_failed -> generating on retry.
	if err := s.progression.Transition(ctx, nil, course, types.CourseStatusGenerating); err != nil {
		return err
	}

	snap := genSnapshot{
		UserID:      rd.UserID,
		CourseID:    course.ID,
		Objectives:  course.Objectives(),
		Description: course.InputDescription,
		Profile:     s.profileSnapshot(ctx, rd.UserID),
	}

	if err := s.registry.Start(key, func(jobCtx context.Context) {
		s.run(jobCtx, snap)
	}); err != nil {
		return err
	}
	return nil
}

// profileSnapshot flattens the learner profile into a plain map so the
// job goroutine owns its own copy.
func (s *courseGenerationService) profileSnapshot(ctx context.Context, userID uuid.UUID) map[string]any {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		s.log.Warn("failed to load learner profile, generating without it", "user_id", userID, "error", err)
		return nil
	}
	if profile == nil {
		return nil
	}
	out := map[string]any{
		"experience_level": profile.ExperienceLevel,
		"learning_style":   profile.LearningStyle,
		"tone_preference":  profile.TonePreference,
	}
	var goals, interests []string
	_ = json.Unmarshal(profile.LearningGoals, &goals)
	_ = json.Unmarshal(profile.Interests, &interests)
	out["learning_goals"] = goals
	out["interests"] = interests
	return out
}

func (s *courseGenerationService) publish(courseID uuid.UUID, event string, data map[string]any) {
	s.bus.Publish(courseID.String(), event, data)
}

// run is the pipeline body, executed on the registry's detached goroutine.
// It commits each lesson/activity before publishing the matching event, so
// a catch-up read never races ahead of persisted state.
func (s *courseGenerationService) run(ctx context.Context, snap genSnapshot) {
	log := s.log.With("course_id", snap.CourseID)
	log.Info("course generation started", "objectives", len(snap.Objectives))

	course, err := s.courseRepo.GetWithChildren(ctx, nil, snap.CourseID)
	if err != nil || course == nil {
		log.Error("fatal: cannot load course for generation", "error", err)
		s.rollbackToDraft(ctx, snap.CourseID)
		s.publish(snap.CourseID, sse.EventGenerationError, map[string]any{
			"message": "course generation failed to start",
		})
		s.publish(snap.CourseID, sse.EventGenerationComplete, map[string]any{
			"lesson_count": 0,
		})
		return
	}

	byIndex := make(map[int]*types.Lesson, len(course.Lessons))
	for _, l := range course.Lessons {
		byIndex[l.ObjectiveIndex] = l
	}

	succeeded := 0
	for i, objective := range snap.Objectives {
		lesson := byIndex[i]

		if lesson.HasContent() && lesson.Activity.HasSpec() {
			// Unit finished on a previous run; retries are cheap.
			s.publish(snap.CourseID, sse.EventLessonPlanned, map[string]any{
				"objective_index": i, "skipped": true,
			})
			s.publish(snap.CourseID, sse.EventLessonWritten, map[string]any{
				"objective_index": i, "lesson_id": lesson.ID.String(), "skipped": true,
			})
			s.publish(snap.CourseID, sse.EventActivityCreated, map[string]any{
				"objective_index": i, "activity_id": lesson.Activity.ID.String(), "skipped": true,
			})
			succeeded++
			continue
		}

		if err := s.generateUnit(ctx, snap, i, objective, lesson); err != nil {
			log.Warn("objective generation failed", "objective_index", i, "error", err)
			s.publish(snap.CourseID, sse.EventGenerationError, map[string]any{
				"objective_index": i,
				"message":         fmt.Sprintf("generation failed for objective %d", i),
			})
			continue
		}
		succeeded++
	}

	s.finalize(ctx, snap, succeeded)
}

// generateUnit runs plan -> write -> create-activity for one objective,
// skipping steps whose output already exists from a previous run.
func (s *courseGenerationService) generateUnit(ctx context.Context, snap genSnapshot, index int, objective string, lesson *types.Lesson) error {
	meta := AgentMeta{UserID: snap.UserID, CourseInstanceID: &snap.CourseID}

	plan, err := s.agents.PlanLesson(ctx, meta, objective, snap.Description, snap.Objectives, snap.Profile)
	if err != nil {
		return fmt.Errorf("plan lesson %d: %w", index, err)
	}
	s.publish(snap.CourseID, sse.EventLessonPlanned, map[string]any{
		"objective_index": index,
		"lesson_title":    plan.LessonTitle,
	})

	if !lesson.HasContent() {
		content, err := s.agents.WriteLesson(ctx, meta, plan, snap.Description, snap.Profile)
		if err != nil {
			return fmt.Errorf("write lesson %d: %w", index, err)
		}

		now := time.Now()
		if lesson == nil {
			status := types.LessonStatusLocked
			if index == 0 {
				status = types.LessonStatusUnlocked
			}
			lesson = &types.Lesson{
				ID:               uuid.New(),
				CourseInstanceID: snap.CourseID,
				ObjectiveIndex:   index,
				LessonContent:    &content.LessonBody,
				Status:           status,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if _, err := s.lessonRepo.Create(ctx, nil, []*types.Lesson{lesson}); err != nil {
				return fmt.Errorf("create lesson %d: %w", index, err)
			}
		} else {
			// Regeneration fills the existing row; a lesson is never
			// re-created for an index that already has one.
			if err := s.lessonRepo.UpdateFields(ctx, nil, lesson.ID, map[string]interface{}{
				"lesson_content": content.LessonBody,
				"updated_at":     now,
			}); err != nil {
				return fmt.Errorf("update lesson %d: %w", index, err)
			}
			lesson.LessonContent = &content.LessonBody
		}
		s.publish(snap.CourseID, sse.EventLessonWritten, map[string]any{
			"objective_index": index,
			"lesson_id":       lesson.ID.String(),
		})
	} else {
		s.publish(snap.CourseID, sse.EventLessonWritten, map[string]any{
			"objective_index": index,
			"lesson_id":       lesson.ID.String(),
			"skipped":         true,
		})
	}

	if !lesson.Activity.HasSpec() {
		spec, err := s.agents.CreateActivity(ctx, meta, plan.SuggestedActivity, objective, plan.MasteryCriteria, snap.Profile)
		if err != nil {
			return fmt.Errorf("create activity %d: %w", index, err)
		}

		activity := &types.Activity{
			ID:           uuid.New(),
			LessonID:     lesson.ID,
			ActivitySpec: types.MustJSON(spec),
			Submissions:  types.MustJSON([]any{}),
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if _, err := s.activityRepo.Create(ctx, nil, []*types.Activity{activity}); err != nil {
			return fmt.Errorf("persist activity %d: %w", index, err)
		}
		s.publish(snap.CourseID, sse.EventActivityCreated, map[string]any{
			"objective_index": index,
			"activity_id":     activity.ID.String(),
		})
	} else {
		s.publish(snap.CourseID, sse.EventActivityCreated, map[string]any{
			"objective_index": index,
			"activity_id":     lesson.Activity.ID.String(),
			"skipped":         true,
		})
	}

	return nil
}

// finalize commits the terminal lifecycle transition, then publishes the
// final complete event so a client that queries on receipt sees consistent
// rows.
func (s *courseGenerationService) finalize(ctx context.Context, snap genSnapshot, succeeded int) {
	log := s.log.With("course_id", snap.CourseID)

	// Reload so the guards see the lessons committed above.
	course, err := s.courseRepo.GetWithChildren(ctx, nil, snap.CourseID)
	if err != nil || course == nil {
		log.Error("fatal: cannot reload course to finalize", "error", err)
		s.publish(snap.CourseID, sse.EventGenerationError, map[string]any{
			"message": "course generation failed to finalize",
		})
		s.publish(snap.CourseID, sse.EventGenerationComplete, map[string]any{
			"lesson_count": succeeded,
		})
		return
	}

	if succeeded > 0 {
		if err := s.ensureFirstLessonUnlocked(ctx, course); err != nil {
			log.Warn("failed to unlock first lesson", "error", err)
		}
		if err := s.progression.Transition(ctx, nil, course, types.CourseStatusActive); err != nil {
			log.Error("transition to active failed", "error", err)
		} else if err := s.progression.Transition(ctx, nil, course, types.CourseStatusInProgress); err != nil {
			log.Error("transition to in_progress failed", "error", err)
		}
		if err := s.courseRepo.UpdateFields(ctx, nil, course.ID, map[string]interface{}{
			"generated_description": snap.Description,
			"updated_at":            time.Now(),
		}); err != nil {
			log.Warn("failed to store generated description", "error", err)
		}
	} else {
		if err := s.progression.Transition(ctx, nil, course, types.CourseStatusGenerationFailed); err != nil {
			log.Error("transition to generation_failed failed", "error", err)
		}
	}

	s.publish(snap.CourseID, sse.EventGenerationComplete, map[string]any{
		"lesson_count": succeeded,
	})
	log.Info("course generation finished", "succeeded", succeeded, "status", course.Status)
}

// ensureFirstLessonUnlocked covers the resume case where index 0 failed but
// a later objective succeeded: the course still needs a playable entry point.
func (s *courseGenerationService) ensureFirstLessonUnlocked(ctx context.Context, course *types.CourseInstance) error {
	for _, l := range course.Lessons {
		if l.Status != types.LessonStatusLocked {
			return nil
		}
	}
	_, err := s.progression.UnlockNextLesson(ctx, nil, course.ID)
	return err
}

// rollbackToDraft is the best-effort status rollback for fatal failures
// before any unit ran.
func (s *courseGenerationService) rollbackToDraft(ctx context.Context, courseID uuid.UUID) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil || course == nil {
		return
	}
	if course.Status != types.CourseStatusGenerating {
		return
	}
	if err := s.progression.Transition(ctx, nil, course, types.CourseStatusDraft); err != nil {
		s.log.Warn("rollback to draft failed", "course_id", courseID, "error", err)
	}
}
