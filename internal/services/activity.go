package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
	"github.com/yungbote/learnloop-backend/internal/requestdata"
	"github.com/yungbote/learnloop-backend/internal/types"
)

var ErrActivityNotFound = errors.New("activity not found")

// activitySubmissionRecord is the shape appended to the activity's
// submissions JSON array, one entry per attempt.
type activitySubmissionRecord struct {
	Submission  string          `json:"submission"`
	Score       int             `json:"score"`
	Mastery     string          `json:"mastery"`
	Feedback    *ActivityReview `json:"feedback"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// ActivitySubmissionResult is what the handler returns to the client after
// a graded attempt.
type ActivitySubmissionResult struct {
	Review          *ActivityReview `json:"review"`
	LessonCompleted bool            `json:"lesson_completed"`
	UnlockedLesson  *types.Lesson   `json:"unlocked_lesson,omitempty"`
	CourseStatus    string          `json:"course_status"`
}

type ActivityService interface {
	// Submit grades one attempt. A meets/exceeds mastery decision completes
	// the lesson, unlocks the next one, and, when the course has no lessons
	// left, moves it to awaiting_assessment. Progression failures after a
	// successful grade are logged, not returned.
	Submit(ctx context.Context, activityID uuid.UUID, submission string) (*ActivitySubmissionResult, error)
}

type activityService struct {
	db  *gorm.DB
	log *logger.Logger

	activityRepo repos.ActivityRepo
	lessonRepo   repos.LessonRepo
	courseRepo   repos.CourseRepo

	progression ProgressionService
	agents      AgentService
}

func NewActivityService(
	db *gorm.DB,
	baseLog *logger.Logger,
	activityRepo repos.ActivityRepo,
	lessonRepo repos.LessonRepo,
	courseRepo repos.CourseRepo,
	progression ProgressionService,
	agents AgentService,
) ActivityService {
	return &activityService{
		db:           db,
		log:          baseLog.With("service", "ActivityService"),
		activityRepo: activityRepo,
		lessonRepo:   lessonRepo,
		courseRepo:   courseRepo,
		progression:  progression,
		agents:       agents,
	}
}

func (s *activityService) Submit(ctx context.Context, activityID uuid.UUID, submission string) (*ActivitySubmissionResult, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if submission == "" {
		return nil, fmt.Errorf("submission must not be empty")
	}

	activity, err := s.activityRepo.GetByID(ctx, nil, activityID)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	lesson, err := s.lessonRepo.GetByID(ctx, nil, activity.LessonID)
	if err != nil || lesson == nil {
		return nil, fmt.Errorf("load lesson for activity: %w", err)
	}
	course, err := s.courseRepo.GetWithChildren(ctx, nil, lesson.CourseInstanceID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil || course.UserID != rd.UserID {
		return nil, ErrCourseNotFound
	}

	var spec ActivitySpec
	if err := json.Unmarshal(activity.ActivitySpec, &spec); err != nil {
		return nil, fmt.Errorf("decode activity spec: %w", err)
	}
	objective := ""
	if objectives := course.Objectives(); lesson.ObjectiveIndex < len(objectives) {
		objective = objectives[lesson.ObjectiveIndex]
	}

	meta := AgentMeta{UserID: rd.UserID, CourseInstanceID: &course.ID}
	review, err := s.agents.ReviewActivity(ctx, meta, submission, objective, spec.Prompt, spec.ScoringRubric)
	if err != nil {
		return nil, fmt.Errorf("review activity: %w", err)
	}

	if err := s.recordAttempt(ctx, activity, submission, review); err != nil {
		return nil, err
	}

	result := &ActivitySubmissionResult{Review: review, CourseStatus: course.Status}
	if review.MasteryDecision == "meets" || review.MasteryDecision == "exceeds" {
		s.advance(ctx, course, lesson, result)
	}
	return result, nil
}

func (s *activityService) recordAttempt(ctx context.Context, activity *types.Activity, submission string, review *ActivityReview) error {
	var history []activitySubmissionRecord
	if len(activity.Submissions) > 0 {
		_ = json.Unmarshal(activity.Submissions, &history)
	}
	history = append(history, activitySubmissionRecord{
		Submission:  submission,
		Score:       review.Score,
		Mastery:     review.MasteryDecision,
		Feedback:    review,
		SubmittedAt: time.Now(),
	})

	score := float64(review.Score)
	updates := map[string]interface{}{
		"submissions":      types.MustJSON(history),
		"latest_score":     score,
		"latest_feedback":  types.MustJSON(review),
		"mastery_decision": review.MasteryDecision,
		"attempt_count":    activity.AttemptCount + 1,
		"updated_at":       time.Now(),
	}
	if err := s.activityRepo.UpdateFields(ctx, nil, activity.ID, updates); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// advance completes the lesson and moves the course forward. Everything here
// is best-effort: the attempt is already graded and recorded.
func (s *activityService) advance(ctx context.Context, course *types.CourseInstance, lesson *types.Lesson, result *ActivitySubmissionResult) {
	if lesson.Status != types.LessonStatusCompleted {
		if err := s.lessonRepo.UpdateFields(ctx, nil, lesson.ID, map[string]interface{}{
			"status":     types.LessonStatusCompleted,
			"updated_at": time.Now(),
		}); err != nil {
			s.log.Warn("failed to complete lesson", "lesson_id", lesson.ID, "error", err)
			return
		}
	}
	result.LessonCompleted = true

	unlocked, err := s.progression.UnlockNextLesson(ctx, nil, course.ID)
	if err != nil {
		s.log.Warn("failed to unlock next lesson", "course_id", course.ID, "error", err)
	}
	result.UnlockedLesson = unlocked

	if unlocked == nil && course.Status == types.CourseStatusInProgress {
		fresh, err := s.courseRepo.GetWithChildren(ctx, nil, course.ID)
		if err != nil || fresh == nil {
			s.log.Warn("failed to reload course after lesson completion", "course_id", course.ID, "error", err)
			return
		}
		if err := s.progression.Transition(ctx, nil, fresh, types.CourseStatusAwaitingAssessment); err != nil {
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				s.log.Warn("transition to awaiting_assessment failed", "course_id", course.ID, "error", err)
			}
			result.CourseStatus = fresh.Status
			return
		}
		result.CourseStatus = fresh.Status
	}
}
