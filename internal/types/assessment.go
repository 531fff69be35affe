package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AssessmentStatusPending  = "pending"
	AssessmentStatusReviewed = "reviewed"
)

type Assessment struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CourseInstanceID uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_instance_id"`
	AssessmentSpec   datatypes.JSON `gorm:"column:assessment_spec;type:jsonb" json:"assessment_spec"`
	Submissions      datatypes.JSON `gorm:"column:submissions;type:jsonb" json:"submissions,omitempty"`
	Score            *float64       `gorm:"column:score" json:"score,omitempty"`
	Passed           *bool          `gorm:"column:passed" json:"passed,omitempty"`
	Feedback         datatypes.JSON `gorm:"column:feedback;type:jsonb" json:"feedback,omitempty"`
	Status           string         `gorm:"column:status;not null;default:pending" json:"status"`
	CreatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Assessment) TableName() string { return "assessment" }
