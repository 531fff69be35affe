package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/repos"
	"github.com/yungbote/learnloop-backend/internal/requestdata"
	"github.com/yungbote/learnloop-backend/internal/types"
)

var ErrProfileNotFound = errors.New("learner profile not found")

// UpsertProfileInput replaces the learner's profile wholesale. The agents
// consume a flattened snapshot of these fields, so partial updates are not
// worth the merge complexity.
type UpsertProfileInput struct {
	DisplayName     string   `json:"display_name"`
	ExperienceLevel string   `json:"experience_level"`
	LearningGoals   []string `json:"learning_goals"`
	Interests       []string `json:"interests"`
	LearningStyle   string   `json:"learning_style"`
	TonePreference  string   `json:"tone_preference"`
}

type LearnerProfileService interface {
	// Get returns the caller's profile, or nil when none has been saved.
	Get(ctx context.Context) (*types.LearnerProfile, error)
	Upsert(ctx context.Context, input UpsertProfileInput) (*types.LearnerProfile, error)
}

type learnerProfileService struct {
	db          *gorm.DB
	log         *logger.Logger
	profileRepo repos.LearnerProfileRepo
}

func NewLearnerProfileService(db *gorm.DB, baseLog *logger.Logger, profileRepo repos.LearnerProfileRepo) LearnerProfileService {
	return &learnerProfileService{
		db:          db,
		log:         baseLog.With("service", "LearnerProfileService"),
		profileRepo: profileRepo,
	}
}

func (s *learnerProfileService) Get(ctx context.Context) (*types.LearnerProfile, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return s.profileRepo.GetByUserID(ctx, nil, rd.UserID)
}

func (s *learnerProfileService) Upsert(ctx context.Context, input UpsertProfileInput) (*types.LearnerProfile, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}

	existing, err := s.profileRepo.GetByUserID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, err
	}
	profile := &types.LearnerProfile{
		ID:              uuid.New(),
		UserID:          rd.UserID,
		DisplayName:     input.DisplayName,
		ExperienceLevel: input.ExperienceLevel,
		LearningGoals:   types.MustJSON(input.LearningGoals),
		Interests:       types.MustJSON(input.Interests),
		LearningStyle:   input.LearningStyle,
		TonePreference:  input.TonePreference,
		Version:         1,
		UpdatedAt:       time.Now(),
	}
	if existing != nil {
		profile.ID = existing.ID
		profile.Version = existing.Version + 1
	}
	saved, err := s.profileRepo.Upsert(ctx, nil, profile)
	if err != nil {
		return nil, err
	}
	return saved, nil
}
