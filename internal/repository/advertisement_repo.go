package repository

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/model"

	"gorm.io/gorm"
)

var ErrAdNotFound = errors.New("广告不存在")

type AdvertisementRepository struct {
	db *gorm.DB
}

func NewAdvertisementRepository(db *gorm.DB) *AdvertisementRepository {
	return &AdvertisementRepository{db: db}
}

func (r *AdvertisementRepository) Create(ctx context.Context, tx *gorm.DB, ad *model.Advertisement) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(ad).Error
}

func (r *AdvertisementRepository) GetByID(ctx context.Context, id int64) (*model.Advertisement, error) {
	var ad model.Advertisement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ad).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAdNotFound
		}
		return nil, err
	}
	return &ad, nil
}

// UpdateStatus 条件状态更新，from 状态被并发写走时返回类型化错误
func (r *AdvertisementRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Advertisement{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{Entity: "advertisement", Op: "updateStatus", Current: fromStatus}
	}
	return nil
}

// BulkPublish 上线扫描：PENDING_PUBLISH 且开始日 <= today 的广告批量置为 PUBLISHED
// 谓词只命中仍在待上线状态的记录，重复执行天然是空操作
func (r *AdvertisementRepository) BulkPublish(ctx context.Context, today time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Advertisement{}).
		Where("status = ? AND start_date <= ?", model.AdStatusPendingPublish, today).
		Update("status", model.AdStatusPublished)
	return result.RowsAffected, result.Error
}

// BulkComplete 下线扫描：PUBLISHED 且结束日 < today 的广告批量置为 COMPLETED
func (r *AdvertisementRepository) BulkComplete(ctx context.Context, today time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Advertisement{}).
		Where("status = ? AND end_date < ?", model.AdStatusPublished, today).
		Update("status", model.AdStatusCompleted)
	return result.RowsAffected, result.Error
}
