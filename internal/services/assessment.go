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

var ErrAssessmentNotFound = errors.New("assessment not found")

// AssessmentSubmissionResult is returned after the reviewer grades a final
// assessment attempt.
type AssessmentSubmissionResult struct {
	Review       *AssessmentReview `json:"review"`
	Passed       bool              `json:"passed"`
	CourseStatus string            `json:"course_status"`
}

type AssessmentService interface {
	// Submit grades the learner's answers against the stored assessment
	// spec. A pass moves the course to completed; a fail leaves it at
	// assessment_ready so the learner can retry.
	Submit(ctx context.Context, assessmentID uuid.UUID, submissions []AssessmentSubmission) (*AssessmentSubmissionResult, error)
}

type assessmentService struct {
	db  *gorm.DB
	log *logger.Logger

	assessmentRepo repos.AssessmentRepo
	courseRepo     repos.CourseRepo

	progression ProgressionService
	agents      AgentService
}

func NewAssessmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	assessmentRepo repos.AssessmentRepo,
	courseRepo repos.CourseRepo,
	progression ProgressionService,
	agents AgentService,
) AssessmentService {
	return &assessmentService{
		db:             db,
		log:            baseLog.With("service", "AssessmentService"),
		assessmentRepo: assessmentRepo,
		courseRepo:     courseRepo,
		progression:    progression,
		agents:         agents,
	}
}

func (s *assessmentService) Submit(ctx context.Context, assessmentID uuid.UUID, submissions []AssessmentSubmission) (*AssessmentSubmissionResult, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if len(submissions) == 0 {
		return nil, fmt.Errorf("submissions must not be empty")
	}

	assessment, err := s.assessmentRepo.GetByID(ctx, nil, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("load assessment: %w", err)
	}
	if assessment == nil {
		return nil, ErrAssessmentNotFound
	}
	course, err := s.courseRepo.GetByID(ctx, nil, assessment.CourseInstanceID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil || course.UserID != rd.UserID {
		return nil, ErrCourseNotFound
	}

	var spec AssessmentSpec
	if err := json.Unmarshal(assessment.AssessmentSpec, &spec); err != nil {
		return nil, fmt.Errorf("decode assessment spec: %w", err)
	}

	meta := AgentMeta{UserID: rd.UserID, CourseInstanceID: &course.ID}
	review, err := s.agents.ReviewAssessment(ctx, meta, &spec, submissions)
	if err != nil {
		return nil, fmt.Errorf("review assessment: %w", err)
	}

	passed := review.PassDecision == "pass"
	score := float64(review.OverallScore)
	if err := s.assessmentRepo.UpdateFields(ctx, nil, assessment.ID, map[string]interface{}{
		"submissions": types.MustJSON(submissions),
		"score":       score,
		"passed":      passed,
		"feedback":    types.MustJSON(review),
		"status":      types.AssessmentStatusReviewed,
		"updated_at":  time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("record assessment review: %w", err)
	}

	result := &AssessmentSubmissionResult{Review: review, Passed: passed, CourseStatus: course.Status}
	if passed {
		// Reload so the pass guard sees the review committed above.
		fresh, err := s.courseRepo.GetWithChildren(ctx, nil, course.ID)
		if err != nil || fresh == nil {
			s.log.Warn("failed to reload course after passed assessment", "course_id", course.ID, "error", err)
			return result, nil
		}
		if err := s.progression.Transition(ctx, nil, fresh, types.CourseStatusCompleted); err != nil {
			s.log.Warn("transition to completed failed", "course_id", course.ID, "error", err)
		}
		result.CourseStatus = fresh.Status
	}
	s.log.Info("assessment reviewed", "assessment_id", assessment.ID, "passed", passed, "score", review.OverallScore)
	return result, nil
}
