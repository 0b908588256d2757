package repository

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrReservationNotFound  = errors.New("预约不存在")
	ErrTicketOptionNotFound = errors.New("票种不存在")
	ErrTicketSoldOut        = errors.New("余票不足")
	ErrMemberNotFound       = errors.New("会员不存在")
	ErrInsufficientMileage  = errors.New("里程余额不足")
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, tx *gorm.DB, reservation *model.Reservation) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(reservation).Error
}

func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	var reservation model.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &model.InvalidTransitionError{Entity: "reservation", Op: "updateStatus", Current: fromStatus}
	}
	return nil
}

// GetDepositExpired 入金截止已过、仍在等待入金的预约（虚拟账户超时扫描）
func (r *ReservationRepository) GetDepositExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error) {
	var reservations []*model.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND deposit_deadline IS NOT NULL AND deposit_deadline < ?",
			model.ReservationStatusPendingDeposit, now).
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

// ----------------------------------------------------------------------------
// 票种库存
// ----------------------------------------------------------------------------

func (r *ReservationRepository) GetTicketOption(ctx context.Context, id int64) (*model.TicketOption, error) {
	var option model.TicketOption
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&option).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketOptionNotFound
		}
		return nil, err
	}
	return &option, nil
}

// DeductInventory 扣减余票，条件更新防止超卖
func (r *ReservationRepository) DeductInventory(ctx context.Context, tx *gorm.DB, optionID int64, quantity int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.TicketOption{}).
		Where("id = ? AND remaining >= ?", optionID, quantity).
		Update("remaining", gorm.Expr("remaining - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTicketSoldOut
	}
	return nil
}

// RestoreInventory 回补余票（入金超时取消、退款取消）
func (r *ReservationRepository) RestoreInventory(ctx context.Context, tx *gorm.DB, optionID int64, quantity int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.TicketOption{}).
		Where("id = ?", optionID).
		Update("remaining", gorm.Expr("remaining + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTicketOptionNotFound
	}
	return nil
}

// ----------------------------------------------------------------------------
// 入场券
// ----------------------------------------------------------------------------

func (r *ReservationRepository) CreateTicket(ctx context.Context, tx *gorm.DB, ticket *model.AdmissionTicket) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(ticket).Error
}

// RevokeTickets 预约取消时作废其名下全部未过期入场券
// 退款完成的客户不能再持有可入场凭证，条件谓词保证重复执行是空操作
func (r *ReservationRepository) RevokeTickets(ctx context.Context, tx *gorm.DB, reservationID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.AdmissionTicket{}).
		Where("reservation_id = ? AND status IN ?", reservationID,
			[]string{model.TicketStatusIssued, model.TicketStatusActive}).
		Update("status", model.TicketStatusExpired)
	return result.RowsAffected, result.Error
}

// BulkActivateTickets 到激活时间的 ISSUED 入场券批量置为 ACTIVE
// 单条条件更新是该迁移的唯一写入者，对并发读天然安全
func (r *ReservationRepository) BulkActivateTickets(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AdmissionTicket{}).
		Where("status = ? AND activate_at <= ?", model.TicketStatusIssued, now).
		Update("status", model.TicketStatusActive)
	return result.RowsAffected, result.Error
}

// BulkExpireTickets 过了有效期的 ACTIVE 入场券批量置为 EXPIRED
func (r *ReservationRepository) BulkExpireTickets(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AdmissionTicket{}).
		Where("status = ? AND expire_at <= ?", model.TicketStatusActive, now).
		Update("status", model.TicketStatusExpired)
	return result.RowsAffected, result.Error
}

// ----------------------------------------------------------------------------
// 会员里程
// ----------------------------------------------------------------------------

func (r *ReservationRepository) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// ApplyMileage 里程增减（delta 可为负），余额不足时拒绝
func (r *ReservationRepository) ApplyMileage(ctx context.Context, tx *gorm.DB, memberID int64, delta int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Member{}).
		Where("id = ? AND mileage + ? >= 0", memberID, delta).
		Update("mileage", gorm.Expr("mileage + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 条件更新无法区分会员不存在与余额不足，补查一次
		var count int64
		if err := tx.WithContext(ctx).Model(&model.Member{}).
			Where("id = ?", memberID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrMemberNotFound
		}
		return ErrInsufficientMileage
	}
	return nil
}
