package types

import (
	"time"

	"github.com/google/uuid"
)

type AgentLog struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	CourseInstanceID *uuid.UUID `gorm:"type:uuid;index" json:"course_instance_id,omitempty"`
	AgentName        string     `gorm:"column:agent_name;not null;index" json:"agent_name"`
	Status           string     `gorm:"column:status;not null;default:running" json:"status"` // running|succeeded|failed
	Error            string     `gorm:"column:error" json:"error,omitempty"`
	DurationMS       int64      `gorm:"column:duration_ms" json:"duration_ms"`
	ModelName        string     `gorm:"column:model_name" json:"model_name"`
	CreatedAt        time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AgentLog) TableName() string { return "agent_log" }
