package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/types"
)

type AgentLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, logs []*types.AgentLog) ([]*types.AgentLog, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type agentLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAgentLogRepo(db *gorm.DB, baseLog *logger.Logger) AgentLogRepo {
	return &agentLogRepo{db: db, log: baseLog.With("repo", "AgentLogRepo")}
}

func (r *agentLogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.AgentLog) ([]*types.AgentLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(logs) == 0 {
		return []*types.AgentLog{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *agentLogRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.AgentLog{}).
		Where("id = ?", id).
		Updates(updates).Error
}
