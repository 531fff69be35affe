package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course lifecycle statuses. Transitions between them are owned by
// services.ProgressionService, nothing else writes Status directly.
const (
	CourseStatusDraft                = "draft"
	CourseStatusGenerating           = "generating"
	CourseStatusGenerationFailed     = "generation_failed"
	CourseStatusActive               = "active"
	CourseStatusInProgress           = "in_progress"
	CourseStatusAwaitingAssessment   = "awaiting_assessment"
	CourseStatusGeneratingAssessment = "generating_assessment"
	CourseStatusAssessmentReady      = "assessment_ready"
	CourseStatusCompleted            = "completed"
)

type CourseInstance struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User                 *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	SourceType           string         `gorm:"column:source_type;not null" json:"source_type"` // custom|catalog
	SourceCourseID       string         `gorm:"column:source_course_id" json:"source_course_id,omitempty"`
	InputDescription     string         `gorm:"column:input_description;type:text" json:"input_description"`
	InputObjectives      datatypes.JSON `gorm:"column:input_objectives;type:jsonb" json:"input_objectives"`
	GeneratedDescription string         `gorm:"column:generated_description;type:text" json:"generated_description"`
	Status               string         `gorm:"column:status;not null;default:draft;index" json:"status"`
	CreatedAt            time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Lessons     []*Lesson     `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseInstanceID;references:ID" json:"lessons,omitempty"`
	Assessments []*Assessment `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseInstanceID;references:ID" json:"assessments,omitempty"`
}

func (CourseInstance) TableName() string { return "course_instance" }

// Objectives decodes the immutable objectives list captured at creation.
func (c *CourseInstance) Objectives() []string {
	return decodeStringSlice(c.InputObjectives)
}
