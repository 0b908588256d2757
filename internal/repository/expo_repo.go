package repository

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/model"

	"gorm.io/gorm"
)

var ErrExpoNotFound = errors.New("展会不存在")

type ExpoRepository struct {
	db *gorm.DB
}

func NewExpoRepository(db *gorm.DB) *ExpoRepository {
	return &ExpoRepository{db: db}
}

func (r *ExpoRepository) Create(ctx context.Context, tx *gorm.DB, expo *model.Expo) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(expo).Error
}

func (r *ExpoRepository) GetByID(ctx context.Context, id int64) (*model.Expo, error) {
	var expo model.Expo
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&expo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExpoNotFound
		}
		return nil, err
	}
	return &expo, nil
}

func (r *ExpoRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Expo{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{Entity: "expo", Op: "updateStatus", Current: fromStatus}
	}
	return nil
}

func (r *ExpoRepository) BulkPublish(ctx context.Context, today time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Expo{}).
		Where("status = ? AND start_date <= ?", model.ExpoStatusPendingPublish, today).
		Update("status", model.ExpoStatusPublished)
	return result.RowsAffected, result.Error
}

func (r *ExpoRepository) BulkComplete(ctx context.Context, today time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Expo{}).
		Where("status = ? AND end_date < ?", model.ExpoStatusPublished, today).
		Update("status", model.ExpoStatusCompleted)
	return result.RowsAffected, result.Error
}
