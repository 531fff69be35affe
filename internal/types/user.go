package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Password    string     `gorm:"column:password" json:"-"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	LastLoginAt *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`

	LearnerProfile  *LearnerProfile   `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"learner_profile,omitempty"`
	CourseInstances []*CourseInstance `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"course_instances,omitempty"`
}

func (User) TableName() string { return "user" }
