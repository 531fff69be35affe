package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/learnloop-backend/internal/logger"
	"github.com/yungbote/learnloop-backend/internal/types"
)

type CourseRepo interface {
	Create(ctx context.Context, tx *gorm.DB, courses []*types.CourseInstance) ([]*types.CourseInstance, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CourseInstance, error)
	// GetWithChildren loads the course plus lessons (ordered by objective
	// index, with activities) and assessments, for guard evaluation and
	// catch-up reads.
	GetWithChildren(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CourseInstance, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string) ([]*types.CourseInstance, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(ctx context.Context, tx *gorm.DB, courses []*types.CourseInstance) ([]*types.CourseInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(courses) == 0 {
		return []*types.CourseInstance{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CourseInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var course types.CourseInstance
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) GetWithChildren(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CourseInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var course types.CourseInstance
	err := transaction.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("objective_index ASC")
		}).
		Preload("Lessons.Activity").
		Preload("Assessments").
		Where("id = ?", id).
		First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string) ([]*types.CourseInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("objective_index ASC")
		}).
		Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var courses []*types.CourseInstance
	if err := q.Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.CourseInstance{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *courseRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.CourseInstance{}).Error
}
