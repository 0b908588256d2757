package job

import (
	"context"
	"log"
	"time"

	"marketpay/internal/repository"

	"gorm.io/gorm"
)

type ticketBulkStore interface {
	BulkActivateTickets(ctx context.Context, now time.Time) (int64, error)
	BulkExpireTickets(ctx context.Context, now time.Time) (int64, error)
}

// TicketSweepJob 入场券扫描（分钟级）
// 激活和过期各是一条条件批量更新，该更新是对应迁移的唯一写入者，对并发读安全
type TicketSweepJob struct {
	tickets ticketBulkStore
	now     func() time.Time
}

func NewTicketSweepJob(db *gorm.DB) *TicketSweepJob {
	return &TicketSweepJob{
		tickets: repository.NewReservationRepository(db),
		now:     time.Now,
	}
}

func (j *TicketSweepJob) RunOnce(ctx context.Context) {
	now := j.now()

	if n, err := j.tickets.BulkActivateTickets(ctx, now); err != nil {
		log.Printf("[TicketSweep] 入场券激活扫描失败: %v", err)
	} else if n > 0 {
		log.Printf("[TicketSweep] 激活入场券 %d 张", n)
	}

	if n, err := j.tickets.BulkExpireTickets(ctx, now); err != nil {
		log.Printf("[TicketSweep] 入场券过期扫描失败: %v", err)
	} else if n > 0 {
		log.Printf("[TicketSweep] 过期入场券 %d 张", n)
	}
}
