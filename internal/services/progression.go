package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
	"github.com/yungbote/learnloop-backend/internal/types"
)

// InvalidTransitionError is returned for a missing edge or a failed guard.
// Call sites that retry blindly (the assessment self-loop) are expected to
// detect "already at target" themselves and swallow it.
type InvalidTransitionError struct {
	From  string
	To    string
	Guard string
}

func (e *InvalidTransitionError) Error() string {
	if e.Guard != "" {
		return fmt.Sprintf("guard %q failed for transition %q -> %q", e.Guard, e.From, e.To)
	}
	return fmt.Sprintf("cannot transition from %q to %q", e.From, e.To)
}

type statusPair struct {
	from string
	to   string
}

// Guard names. Each (from, to) edge maps to exactly one guard; unlisted
// pairs are rejected unconditionally.
const (
	guardAlways              = "always"
	guardHasObjectives       = "has_objectives"
	guardAllContentGenerated = "all_content_generated"
	guardAllLessonsCompleted = "all_lessons_completed"
	guardAssessmentGenerated = "assessment_generated"
	guardAssessmentPassed    = "assessment_passed"
)

var courseTransitions = map[statusPair]string{
	{types.CourseStatusDraft, types.CourseStatusGenerating}:                          guardHasObjectives,
	{types.CourseStatusGenerating, types.CourseStatusActive}:                         guardAllContentGenerated,
	{types.CourseStatusGenerating, types.CourseStatusGenerationFailed}:               guardAlways,
	{types.CourseStatusGenerating, types.CourseStatusDraft}:                          guardAlways, // fatal-pipeline rollback
	{types.CourseStatusGenerationFailed, types.CourseStatusGenerating}:               guardHasObjectives,
	{types.CourseStatusActive, types.CourseStatusInProgress}:                         guardAlways,
	{types.CourseStatusInProgress, types.CourseStatusAwaitingAssessment}:             guardAllLessonsCompleted,
	{types.CourseStatusAwaitingAssessment, types.CourseStatusGeneratingAssessment}:   guardAlways,
	{types.CourseStatusGeneratingAssessment, types.CourseStatusAssessmentReady}:      guardAssessmentGenerated,
	{types.CourseStatusGeneratingAssessment, types.CourseStatusAwaitingAssessment}:   guardAlways, // rollback on generation failure
	{types.CourseStatusAssessmentReady, types.CourseStatusGeneratingAssessment}:      guardAlways, // regenerate
	{types.CourseStatusAssessmentReady, types.CourseStatusAssessmentReady}:           guardAlways, // retry after a failed attempt
	{types.CourseStatusAssessmentReady, types.CourseStatusCompleted}:                 guardAssessmentPassed,
}

type ProgressionService interface {
	// Transition validates the (current, target) edge and its guard against
	// the course's loaded associations, then persists the new status.
	// Associations must be fresh; callers that just mutated children reload
	// the course before calling.
	Transition(ctx context.Context, tx *gorm.DB, course *types.CourseInstance, target string) error
	UnlockNextLesson(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Lesson, error)
	AllLessonsCompleted(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (bool, error)
}

type progressionService struct {
	db         *gorm.DB
	log        *logger.Logger
	courseRepo repos.CourseRepo
	lessonRepo repos.LessonRepo
}

func NewProgressionService(db *gorm.DB, baseLog *logger.Logger, courseRepo repos.CourseRepo, lessonRepo repos.LessonRepo) ProgressionService {
	return &progressionService{
		db:         db,
		log:        baseLog.With("service", "ProgressionService"),
		courseRepo: courseRepo,
		lessonRepo: lessonRepo,
	}
}

func (s *progressionService) Transition(ctx context.Context, tx *gorm.DB, course *types.CourseInstance, target string) error {
	guard, ok := courseTransitions[statusPair{course.Status, target}]
	if !ok {
		return &InvalidTransitionError{From: course.Status, To: target}
	}
	if !checkGuard(course, guard) {
		return &InvalidTransitionError{From: course.Status, To: target, Guard: guard}
	}

	if err := s.courseRepo.UpdateFields(ctx, tx, course.ID, map[string]interface{}{
		"status":     target,
		"updated_at": time.Now(),
	}); err != nil {
		return fmt.Errorf("persist status %q: %w", target, err)
	}

	s.log.Debug("course transitioned", "course_id", course.ID, "from", course.Status, "to", target, "guard", guard)
	course.Status = target
	return nil
}

func checkGuard(course *types.CourseInstance, guard string) bool {
	switch guard {
	case guardAlways:
		return true
	case guardHasObjectives:
		return len(course.Objectives()) > 0
	case guardAllContentGenerated:
		if len(course.Lessons) == 0 {
			return false
		}
		for _, l := range course.Lessons {
			if !l.HasContent() {
				return false
			}
		}
		return true
	case guardAllLessonsCompleted:
		if len(course.Lessons) == 0 {
			return false
		}
		for _, l := range course.Lessons {
			if l.Status != types.LessonStatusCompleted {
				return false
			}
		}
		return true
	case guardAssessmentGenerated:
		return len(course.Assessments) > 0
	case guardAssessmentPassed:
		for _, a := range course.Assessments {
			if a.Passed != nil && *a.Passed {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (s *progressionService) UnlockNextLesson(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (*types.Lesson, error) {
	lesson, err := s.lessonRepo.FirstLocked(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, nil
	}
	if err := s.lessonRepo.UpdateFields(ctx, tx, lesson.ID, map[string]interface{}{
		"status":     types.LessonStatusUnlocked,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	lesson.Status = types.LessonStatusUnlocked
	return lesson, nil
}

func (s *progressionService) AllLessonsCompleted(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (bool, error) {
	lessons, err := s.lessonRepo.GetByCourseID(ctx, tx, courseID)
	if err != nil {
		return false, err
	}
	if len(lessons) == 0 {
		return false, nil
	}
	for _, l := range lessons {
		if l.Status != types.LessonStatusCompleted {
			return false, nil
		}
	}
	return true, nil
}
