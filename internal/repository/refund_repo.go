package repository

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/model"

	"gorm.io/gorm"
)

var ErrRefundNotFound = errors.New("退款单不存在")

type RefundRepository struct {
	db *gorm.DB
}

func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, tx *gorm.DB, refund *model.Refund) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(refund).Error
}

// GetPendingByTarget 取结算对象当前待处理的退款单（同一时刻至多一条）
func (r *RefundRepository) GetPendingByTarget(ctx context.Context, targetType model.TargetType, targetID int64) (*model.Refund, error) {
	var refund model.Refund
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ? AND status = ?",
			targetType, targetID, model.RefundStatusPending).
		First(&refund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefundNotFound
		}
		return nil, err
	}
	return &refund, nil
}

// ExistsPendingByTarget 是否已有待处理的退款单（重复申请拦截）
func (r *RefundRepository) ExistsPendingByTarget(ctx context.Context, targetType model.TargetType, targetID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Refund{}).
		Where("target_type = ? AND target_id = ? AND status = ?",
			targetType, targetID, model.RefundStatusPending).
		Count(&count).Error
	return count > 0, err
}

// MarkRefunded 退款完成，回填实退金额和完成时间
func (r *RefundRepository) MarkRefunded(ctx context.Context, tx *gorm.DB, id int64, amount int64, isPartial bool, refundedAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Refund{}).
		Where("id = ? AND status = ?", id, model.RefundStatusPending).
		Updates(map[string]interface{}{
			"status":      model.RefundStatusRefunded,
			"amount":      amount,
			"is_partial":  isPartial,
			"refunded_at": &refundedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{Entity: "refund", Op: "markRefunded", Current: model.RefundStatusPending}
	}
	return nil
}

// MarkRejected 驳回退款申请
func (r *RefundRepository) MarkRejected(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Refund{}).
		Where("id = ? AND status = ?", id, model.RefundStatusPending).
		Update("status", model.RefundStatusRejected)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{Entity: "refund", Op: "markRejected", Current: model.RefundStatusPending}
	}
	return nil
}

// SumRefundedAmountByType 按结算对象类型统计已退金额（对账报表用）
func (r *RefundRepository) SumRefundedAmountByType(ctx context.Context, targetType model.TargetType) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Refund{}).
		Where("target_type = ? AND status = ?", targetType, model.RefundStatusRefunded).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
