package job

import (
	"context"
	"database/sql"
	"log"
	"time"

	"marketpay/internal/model"
	"marketpay/internal/repository"

	"gorm.io/gorm"
)

type txRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

type vbankReservationStore interface {
	GetDepositExpired(ctx context.Context, now time.Time, limit int) ([]*model.Reservation, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id int64, fromStatus, toStatus string) error
	RestoreInventory(ctx context.Context, tx *gorm.DB, optionID int64, quantity int) error
}

type vbankPaymentStore interface {
	UpdateStatus(ctx context.Context, tx *gorm.DB, targetType model.TargetType, targetID int64, fromStatus, toStatus string) error
}

// VbankExpiryJob 虚拟账户入金超时扫描（每日）
//
// 入金截止已过的预约：取消预约、支付信息置 FAILED、回补票种库存。
// 三个写入在同一事务里，预约状态的条件更新承担幂等守卫——
// 扫描重复执行时第二次命中 0 行，整个事务回滚为空操作，库存只回补一次。
type VbankExpiryJob struct {
	tx           txRunner
	reservations vbankReservationStore
	payments     vbankPaymentStore
	batchSize    int
	now          func() time.Time
}

func NewVbankExpiryJob(db *gorm.DB, batchSize int) *VbankExpiryJob {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &VbankExpiryJob{
		tx:           db,
		reservations: repository.NewReservationRepository(db),
		payments:     repository.NewPaymentRepository(db),
		batchSize:    batchSize,
		now:          time.Now,
	}
}

func (j *VbankExpiryJob) RunOnce(ctx context.Context) {
	reservations, err := j.reservations.GetDepositExpired(ctx, j.now(), j.batchSize)
	if err != nil {
		log.Printf("[VbankExpiry] 查询入金超时预约失败: %v", err)
		return
	}
	if len(reservations) == 0 {
		return
	}

	log.Printf("[VbankExpiry] 发现 %d 条入金超时预约", len(reservations))

	expired := 0
	for _, reservation := range reservations {
		if err := j.expireOne(ctx, reservation); err != nil {
			// 单条失败不中断本轮，等下个周期重试
			log.Printf("[VbankExpiry] 取消预约失败: reservationId=%d, err=%v", reservation.ID, err)
			continue
		}
		expired++
	}

	log.Printf("[VbankExpiry] 本轮取消 %d 条入金超时预约", expired)
}

func (j *VbankExpiryJob) expireOne(ctx context.Context, reservation *model.Reservation) error {
	return j.tx.Transaction(func(tx *gorm.DB) error {
		if err := j.reservations.UpdateStatus(ctx, tx, reservation.ID,
			model.ReservationStatusPendingDeposit, model.ReservationStatusCancelled); err != nil {
			return err
		}
		if err := j.payments.UpdateStatus(ctx, tx, model.TargetReservation, reservation.ID,
			model.PaymentStatusPending, model.PaymentStatusFailed); err != nil {
			return err
		}
		return j.reservations.RestoreInventory(ctx, tx, reservation.TicketOptionID, reservation.Quantity)
	})
}
