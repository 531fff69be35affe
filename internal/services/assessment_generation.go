package services

import (
	"context"
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

// assessmentSnapshot is the detached job's copy of everything the generator
// needs, including the per-objective activity scores that shape difficulty.
type assessmentSnapshot struct {
	UserID      uuid.UUID
	CourseID    uuid.UUID
	Objectives  []string
	Description string
	Scores      []ActivityScorePoint
	Profile     map[string]any
}

type AssessmentGenerationService interface {
	// Start kicks off final assessment generation for a course that has
	// finished all lessons. Regeneration from assessment_ready is allowed;
	// a second concurrent start returns jobs.ErrAlreadyRunning.
	Start(ctx context.Context, courseID uuid.UUID) error
}

type assessmentGenerationService struct {
	db  *gorm.DB
	log *logger.Logger

	bus      *sse.Bus
	registry *jobs.Registry

	courseRepo     repos.CourseRepo
	assessmentRepo repos.AssessmentRepo
	profileRepo    repos.LearnerProfileRepo

	progression ProgressionService
	agents      AgentService
}

func NewAssessmentGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bus *sse.Bus,
	registry *jobs.Registry,
	courseRepo repos.CourseRepo,
	assessmentRepo repos.AssessmentRepo,
	profileRepo repos.LearnerProfileRepo,
	progression ProgressionService,
	agents AgentService,
) AssessmentGenerationService {
	return &assessmentGenerationService{
		db:             db,
		log:            baseLog.With("service", "AssessmentGenerationService"),
		bus:            bus,
		registry:       registry,
		courseRepo:     courseRepo,
		assessmentRepo: assessmentRepo,
		profileRepo:    profileRepo,
		progression:    progression,
		agents:         agents,
	}
}

func (s *assessmentGenerationService) Start(ctx context.Context, courseID uuid.UUID) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return ErrNotAuthenticated
	}

	key := jobs.AssessmentKey(courseID.String())
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

	// awaiting_assessment -> generating_assessment, or a regenerate from
	// assessment_ready.
	if err := s.progression.Transition(ctx, nil, course, types.CourseStatusGeneratingAssessment); err != nil {
		return err
	}

	snap := assessmentSnapshot{
		UserID:      rd.UserID,
		CourseID:    course.ID,
		Objectives:  course.Objectives(),
		Description: course.InputDescription,
		Scores:      collectScores(course),
		Profile:     s.profileSnapshot(ctx, rd.UserID),
	}

	if err := s.registry.Start(key, func(jobCtx context.Context) {
		s.run(jobCtx, snap)
	}); err != nil {
		return err
	}
	return nil
}

// collectScores walks the course's lessons and pulls each activity's latest
// score so the assessment can weight weaker objectives.
func collectScores(course *types.CourseInstance) []ActivityScorePoint {
	objectives := course.Objectives()
	var out []ActivityScorePoint
	for _, l := range course.Lessons {
		if l.Activity == nil || l.Activity.LatestScore == nil {
			continue
		}
		objective := ""
		if l.ObjectiveIndex >= 0 && l.ObjectiveIndex < len(objectives) {
			objective = objectives[l.ObjectiveIndex]
		}
		out = append(out, ActivityScorePoint{
			Objective: objective,
			Score:     *l.Activity.LatestScore,
			Mastery:   l.Activity.MasteryDecision,
		})
	}
	return out
}

func (s *assessmentGenerationService) profileSnapshot(ctx context.Context, userID uuid.UUID) map[string]any {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil || profile == nil {
		return nil
	}
	return map[string]any{
		"experience_level": profile.ExperienceLevel,
		"learning_style":   profile.LearningStyle,
		"tone_preference":  profile.TonePreference,
	}
}

func (s *assessmentGenerationService) run(ctx context.Context, snap assessmentSnapshot) {
	log := s.log.With("course_id", snap.CourseID)
	log.Info("assessment generation started")

	// Same key the stream handler subscribes on; the plain course-id key
	// belongs to content generation.
	key := jobs.AssessmentKey(snap.CourseID.String())
	s.bus.Publish(key, sse.EventGeneratingAssessment, map[string]any{})

	meta := AgentMeta{UserID: snap.UserID, CourseInstanceID: &snap.CourseID}
	spec, err := s.agents.CreateAssessment(ctx, meta, snap.Objectives, snap.Description, snap.Scores, snap.Profile)
	if err != nil {
		log.Error("assessment generation failed", "error", err)
		s.rollback(ctx, snap.CourseID)
		s.bus.Publish(key, sse.EventAssessmentError, map[string]any{
			"message": "assessment generation failed",
		})
		return
	}

	now := time.Now()
	assessment := &types.Assessment{
		ID:               uuid.New(),
		CourseInstanceID: snap.CourseID,
		AssessmentSpec:   types.MustJSON(spec),
		Status:           types.AssessmentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.assessmentRepo.Create(ctx, nil, []*types.Assessment{assessment}); err != nil {
		log.Error("failed to persist assessment", "error", err)
		s.rollback(ctx, snap.CourseID)
		s.bus.Publish(key, sse.EventAssessmentError, map[string]any{
			"message": "assessment generation failed",
		})
		return
	}

	course, err := s.courseRepo.GetWithChildren(ctx, nil, snap.CourseID)
	if err != nil || course == nil {
		log.Error("cannot reload course to finalize assessment", "error", err)
		s.bus.Publish(key, sse.EventAssessmentError, map[string]any{
			"message": "assessment generation failed",
		})
		return
	}
	if err := s.progression.Transition(ctx, nil, course, types.CourseStatusAssessmentReady); err != nil {
		log.Error("transition to assessment_ready failed", "error", err)
	}

	s.bus.Publish(key, sse.EventAssessmentComplete, map[string]any{
		"assessment_id": assessment.ID.String(),
	})
	log.Info("assessment generation finished", "assessment_id", assessment.ID)
}

// rollback returns the course to awaiting_assessment so the learner can
// trigger generation again.
func (s *assessmentGenerationService) rollback(ctx context.Context, courseID uuid.UUID) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil || course == nil {
		return
	}
	if course.Status != types.CourseStatusGeneratingAssessment {
		return
	}
	if err := s.progression.Transition(ctx, nil, course, types.CourseStatusAwaitingAssessment); err != nil {
		s.log.Warn("rollback to awaiting_assessment failed", "course_id", courseID, "error", err)
	}
}
