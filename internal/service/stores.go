package service

import (
	"context"
	"database/sql"
	"time"

	"marketpay/internal/model"

	"gorm.io/gorm"
)

// ============================================================================
// service 层依赖的仓储接口
//
// 具体实现在 internal/repository，按 *gorm.DB 落地；测试用内存假实现。
// 所有状态写入都是条件更新：守卫检查和写入在同一条语句里完成，
// 并发的失败写入者要么发现守卫已触发（空操作），要么拿到类型化错误，
// 不需要分布式锁来保护单条记录。
// ============================================================================

// TxRunner 事务边界，*gorm.DB 原生满足
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

type PaymentStore interface {
	CreateAd(ctx context.Context, tx *gorm.DB, info *model.AdPaymentInfo) error
	CreateExpo(ctx context.Context, tx *gorm.DB, info *model.ExpoPaymentInfo) error
	CreateReservation(ctx context.Context, tx *gorm.DB, info *model.ReservationPaymentInfo) error
	GetAdByTargetID(ctx context.Context, targetID int64) (*model.AdPaymentInfo, error)
	GetExpoByTargetID(ctx context.Context, targetID int64) (*model.ExpoPaymentInfo, error)
	GetReservationByTargetID(ctx context.Context, targetID int64) (*model.ReservationPaymentInfo, error)
	Confirm(ctx context.Context, tx *gorm.DB, targetType model.TargetType, targetID int64, impUID string, paidAt time.Time) error
	AttachImpUID(ctx context.Context, tx *gorm.DB, targetType model.TargetType, targetID int64, impUID string) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, targetType model.TargetType, targetID int64, fromStatus, toStatus string) error
}

type AdStore interface {
	Create(ctx context.Context, tx *gorm.DB, ad *model.Advertisement) error
	GetByID(ctx context.Context, id int64) (*model.Advertisement, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error
}

type ExpoStore interface {
	Create(ctx context.Context, tx *gorm.DB, expo *model.Expo) error
	GetByID(ctx context.Context, id int64) (*model.Expo, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error
}

type ReservationStore interface {
	Create(ctx context.Context, tx *gorm.DB, reservation *model.Reservation) error
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error
	GetTicketOption(ctx context.Context, id int64) (*model.TicketOption, error)
	DeductInventory(ctx context.Context, tx *gorm.DB, optionID int64, quantity int) error
	RestoreInventory(ctx context.Context, tx *gorm.DB, optionID int64, quantity int) error
	CreateTicket(ctx context.Context, tx *gorm.DB, ticket *model.AdmissionTicket) error
	RevokeTickets(ctx context.Context, tx *gorm.DB, reservationID int64) (int64, error)
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	ApplyMileage(ctx context.Context, tx *gorm.DB, memberID int64, delta int64) error
}

type RefundStore interface {
	Create(ctx context.Context, tx *gorm.DB, refund *model.Refund) error
	GetPendingByTarget(ctx context.Context, targetType model.TargetType, targetID int64) (*model.Refund, error)
	ExistsPendingByTarget(ctx context.Context, targetType model.TargetType, targetID int64) (bool, error)
	MarkRefunded(ctx context.Context, tx *gorm.DB, id int64, amount int64, isPartial bool, refundedAt time.Time) error
	MarkRejected(ctx context.Context, tx *gorm.DB, id int64) error
	SumRefundedAmountByType(ctx context.Context, targetType model.TargetType) (int64, error)
}

type OutboxStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}
