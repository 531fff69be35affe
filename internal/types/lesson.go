package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	LessonStatusLocked    = "locked"
	LessonStatusUnlocked  = "unlocked"
	LessonStatusCompleted = "completed"
)

type Lesson struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseInstanceID uuid.UUID `gorm:"type:uuid;not null;index:idx_lesson_course_objective,unique" json:"course_instance_id"`
	ObjectiveIndex   int       `gorm:"column:objective_index;not null;index:idx_lesson_course_objective,unique" json:"objective_index"`
	LessonContent    *string   `gorm:"column:lesson_content;type:text" json:"lesson_content,omitempty"`
	Status           string    `gorm:"column:status;not null;default:locked" json:"status"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Activity *Activity `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"activity,omitempty"`
}

func (Lesson) TableName() string { return "lesson" }

// HasContent reports whether generation produced a body for this lesson.
func (l *Lesson) HasContent() bool {
	return l != nil && l.LessonContent != nil && *l.LessonContent != ""
}
