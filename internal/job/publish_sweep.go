package job

import (
	"context"
	"log"
	"time"

	"marketpay/internal/repository"

	"gorm.io/gorm"
)

// adBulkStore / expoBulkStore 扫描任务依赖的批量更新接口
// 批量更新的谓词只命中仍处于源状态的记录，因此任务天然幂等：
// 同一周期跑两次，第二次命中 0 行；漏跑若干周期，下一次把欠账一次补齐
type adBulkStore interface {
	BulkPublish(ctx context.Context, today time.Time) (int64, error)
	BulkComplete(ctx context.Context, today time.Time) (int64, error)
}

type expoBulkStore interface {
	BulkPublish(ctx context.Context, today time.Time) (int64, error)
	BulkComplete(ctx context.Context, today time.Time) (int64, error)
}

// PublishSweepJob 上线扫描：开始日已到的待上线广告/展会批量置为投放中
type PublishSweepJob struct {
	ads   adBulkStore
	expos expoBulkStore
	now   func() time.Time
}

func NewPublishSweepJob(db *gorm.DB) *PublishSweepJob {
	return &PublishSweepJob{
		ads:   repository.NewAdvertisementRepository(db),
		expos: repository.NewExpoRepository(db),
		now:   time.Now,
	}
}

// RunOnce 跑一轮，单边失败只记日志不影响另一边，等下个周期重试
func (j *PublishSweepJob) RunOnce(ctx context.Context) {
	today := j.now()

	if n, err := j.ads.BulkPublish(ctx, today); err != nil {
		log.Printf("[PublishSweep] 广告上线扫描失败: %v", err)
	} else if n > 0 {
		log.Printf("[PublishSweep] 广告上线 %d 条", n)
	}

	if n, err := j.expos.BulkPublish(ctx, today); err != nil {
		log.Printf("[PublishSweep] 展会上线扫描失败: %v", err)
	} else if n > 0 {
		log.Printf("[PublishSweep] 展会上线 %d 条", n)
	}
}

// CompleteSweepJob 下线扫描：结束日已过的投放中广告/展会批量置为已结束
type CompleteSweepJob struct {
	ads   adBulkStore
	expos expoBulkStore
	now   func() time.Time
}

func NewCompleteSweepJob(db *gorm.DB) *CompleteSweepJob {
	return &CompleteSweepJob{
		ads:   repository.NewAdvertisementRepository(db),
		expos: repository.NewExpoRepository(db),
		now:   time.Now,
	}
}

func (j *CompleteSweepJob) RunOnce(ctx context.Context) {
	today := j.now()

	if n, err := j.ads.BulkComplete(ctx, today); err != nil {
		log.Printf("[CompleteSweep] 广告下线扫描失败: %v", err)
	} else if n > 0 {
		log.Printf("[CompleteSweep] 广告下线 %d 条", n)
	}

	if n, err := j.expos.BulkComplete(ctx, today); err != nil {
		log.Printf("[CompleteSweep] 展会下线扫描失败: %v", err)
	} else if n > 0 {
		log.Printf("[CompleteSweep] 展会下线 %d 条", n)
	}
}
