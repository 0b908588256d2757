package repository

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/model"

	"gorm.io/gorm"
)

var ErrPaymentInfoNotFound = errors.New("支付信息不存在")

// PaymentRepository 三种结算对象的支付信息读写
// 状态变更一律走条件更新（WHERE target 且当前状态匹配），RowsAffected 为 0 视为
// 状态已被并发写走，返回类型化错误，绝不产生半程变更
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) CreateAd(ctx context.Context, tx *gorm.DB, info *model.AdPaymentInfo) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(info).Error
}

func (r *PaymentRepository) CreateExpo(ctx context.Context, tx *gorm.DB, info *model.ExpoPaymentInfo) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(info).Error
}

func (r *PaymentRepository) CreateReservation(ctx context.Context, tx *gorm.DB, info *model.ReservationPaymentInfo) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(info).Error
}

func (r *PaymentRepository) GetAdByTargetID(ctx context.Context, targetID int64) (*model.AdPaymentInfo, error) {
	var info model.AdPaymentInfo
	if err := r.firstByTarget(ctx, &info, targetID); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *PaymentRepository) GetExpoByTargetID(ctx context.Context, targetID int64) (*model.ExpoPaymentInfo, error) {
	var info model.ExpoPaymentInfo
	if err := r.firstByTarget(ctx, &info, targetID); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *PaymentRepository) GetReservationByTargetID(ctx context.Context, targetID int64) (*model.ReservationPaymentInfo, error) {
	var info model.ReservationPaymentInfo
	if err := r.firstByTarget(ctx, &info, targetID); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *PaymentRepository) firstByTarget(ctx context.Context, dest interface{}, targetID int64) error {
	err := r.db.WithContext(ctx).Where("target_id = ?", targetID).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPaymentInfoNotFound
	}
	return err
}

// modelFor 按标签选表，分发只认标签
func modelFor(targetType model.TargetType) (interface{}, error) {
	switch targetType {
	case model.TargetAd:
		return &model.AdPaymentInfo{}, nil
	case model.TargetExpo:
		return &model.ExpoPaymentInfo{}, nil
	case model.TargetReservation:
		return &model.ReservationPaymentInfo{}, nil
	}
	return nil, model.ErrInvalidTargetType
}

// Confirm 把支付信息从 PENDING 置为 SUCCESS 并回填网关支付号
// 条件更新本身就是幂等守卫的落地：并发的第二个写入者 RowsAffected=0
func (r *PaymentRepository) Confirm(ctx context.Context, tx *gorm.DB, targetType model.TargetType, targetID int64, impUID string, paidAt time.Time) error {
	m, err := modelFor(targetType)
	if err != nil {
		return err
	}
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(m).
		Where("target_id = ? AND status = ?", targetID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":  model.PaymentStatusSuccess,
			"imp_uid": impUID,
			"paid_at": &paidAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{
			Entity:  string(targetType) + " payment",
			Op:      "confirm",
			Current: model.PaymentStatusPending,
		}
	}
	return nil
}

// AttachImpUID 虚拟账户发放后提前回填网关支付号，入账前状态保持 PENDING
// 只允许写到待支付记录上，已结算的支付信息不受影响
func (r *PaymentRepository) AttachImpUID(ctx context.Context, tx *gorm.DB, targetType model.TargetType, targetID int64, impUID string) error {
	m, err := modelFor(targetType)
	if err != nil {
		return err
	}
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(m).
		Where("target_id = ? AND status = ?", targetID, model.PaymentStatusPending).
		Update("imp_uid", impUID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{
			Entity:  string(targetType) + " payment",
			Op:      "attachImpUid",
			Current: model.PaymentStatusPending,
		}
	}
	return nil
}

// UpdateStatus 条件状态更新（from -> to）
func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, targetType model.TargetType, targetID int64, fromStatus, toStatus string) error {
	m, err := modelFor(targetType)
	if err != nil {
		return err
	}
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(m).
		Where("target_id = ? AND status = ?", targetID, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{
			Entity:  string(targetType) + " payment",
			Op:      "updateStatus",
			Current: fromStatus,
		}
	}
	return nil
}
