package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/catalog"
	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
	"github.com/yungbote/learnloop-backend/internal/requestdata"
	"github.com/yungbote/learnloop-backend/internal/types"
)

const (
	CourseSourceCustom  = "custom"
	CourseSourceCatalog = "catalog"
)

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrCatalogNotFound   = errors.New("catalog course not found")
	ErrObjectivesMissing = errors.New("at least one objective is required")
)

// CreateCourseInput is the request body for course creation. For catalog
// courses the description and objectives come from the catalog entry and
// the input fields are ignored.
type CreateCourseInput struct {
	SourceType     string   `json:"source_type"`
	SourceCourseID string   `json:"source_course_id"`
	Description    string   `json:"description"`
	Objectives     []string `json:"objectives"`
}

type CourseService interface {
	Create(ctx context.Context, input CreateCourseInput) (*types.CourseInstance, error)
	List(ctx context.Context, status string) ([]*types.CourseInstance, error)
	Get(ctx context.Context, id uuid.UUID) (*types.CourseInstance, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// TransitionState applies one explicit lifecycle transition on behalf of
	// the client (PATCH state). Pipeline-owned statuses are still reachable
	// only through the pipelines; the transition table rejects the rest.
	TransitionState(ctx context.Context, id uuid.UUID, target string) (*types.CourseInstance, error)
}

type courseService struct {
	db          *gorm.DB
	log         *logger.Logger
	courseRepo  repos.CourseRepo
	catalog     catalog.Service
	progression ProgressionService
}

func NewCourseService(db *gorm.DB, baseLog *logger.Logger, courseRepo repos.CourseRepo, cat catalog.Service, progression ProgressionService) CourseService {
	return &courseService{
		db:          db,
		log:         baseLog.With("service", "CourseService"),
		courseRepo:  courseRepo,
		catalog:     cat,
		progression: progression,
	}
}

func (s *courseService) Create(ctx context.Context, input CreateCourseInput) (*types.CourseInstance, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	sourceType := input.SourceType
	if sourceType == "" {
		sourceType = CourseSourceCustom
	}

	description := input.Description
	objectives := input.Objectives
	sourceCourseID := ""

	if sourceType == CourseSourceCatalog {
		entry := s.catalog.Get(input.SourceCourseID)
		if entry == nil {
			return nil, ErrCatalogNotFound
		}
		description = entry.Description
		objectives = entry.Objectives
		sourceCourseID = entry.ID
	}

	if len(objectives) == 0 {
		return nil, ErrObjectivesMissing
	}

	now := time.Now()
	course := &types.CourseInstance{
		ID:               uuid.New(),
		UserID:           rd.UserID,
		SourceType:       sourceType,
		SourceCourseID:   sourceCourseID,
		InputDescription: description,
		InputObjectives:  types.MustJSON(objectives),
		Status:           types.CourseStatusDraft,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := s.courseRepo.Create(ctx, nil, []*types.CourseInstance{course}); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	s.log.Info("course created", "course_id", course.ID, "source_type", sourceType, "objectives", len(objectives))
	return course, nil
}

func (s *courseService) List(ctx context.Context, status string) ([]*types.CourseInstance, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.courseRepo.ListByUser(ctx, nil, rd.UserID, status)
}

func (s *courseService) Get(ctx context.Context, id uuid.UUID) (*types.CourseInstance, error) {
	course, err := s.ownedCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (s *courseService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.ownedCourse(ctx, id); err != nil {
		return err
	}
	return s.courseRepo.Delete(ctx, nil, id)
}

func (s *courseService) TransitionState(ctx context.Context, id uuid.UUID, target string) (*types.CourseInstance, error) {
	course, err := s.ownedCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.progression.Transition(ctx, nil, course, target); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *courseService) ownedCourse(ctx context.Context, id uuid.UUID) (*types.CourseInstance, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	course, err := s.courseRepo.GetWithChildren(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil || course.UserID != rd.UserID {
		return nil, ErrCourseNotFound
	}
	return course, nil
}
