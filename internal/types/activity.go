package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Activity struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LessonID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"lesson_id"`
	ActivitySpec    datatypes.JSON `gorm:"column:activity_spec;type:jsonb" json:"activity_spec"`
	Submissions     datatypes.JSON `gorm:"column:submissions;type:jsonb" json:"submissions"`
	LatestScore     *float64       `gorm:"column:latest_score" json:"latest_score,omitempty"`
	LatestFeedback  datatypes.JSON `gorm:"column:latest_feedback;type:jsonb" json:"latest_feedback,omitempty"`
	MasteryDecision string         `gorm:"column:mastery_decision" json:"mastery_decision,omitempty"` // not_yet|meets|exceeds
	AttemptCount    int            `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Activity) TableName() string { return "activity" }

// HasSpec reports whether the generated activity spec is present. A lesson
// counts as fully generated only once its activity has a spec.
func (a *Activity) HasSpec() bool {
	return a != nil && len(a.ActivitySpec) > 0 && string(a.ActivitySpec) != "null"
}
