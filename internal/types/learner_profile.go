package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type LearnerProfile struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	DisplayName     string         `gorm:"column:display_name" json:"display_name"`
	ExperienceLevel string         `gorm:"column:experience_level" json:"experience_level"`
	LearningGoals   datatypes.JSON `gorm:"column:learning_goals;type:jsonb" json:"learning_goals"`
	Interests       datatypes.JSON `gorm:"column:interests;type:jsonb" json:"interests"`
	LearningStyle   string         `gorm:"column:learning_style" json:"learning_style"`
	TonePreference  string         `gorm:"column:tone_preference" json:"tone_preference"`
	Version         int            `gorm:"column:version;not null;default:1" json:"version"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LearnerProfile) TableName() string { return "learner_profile" }
