package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"marketpay/internal/config"
	"marketpay/internal/gateway"
	"marketpay/internal/infrastructure/lock"
	"marketpay/internal/model"
	"marketpay/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// RefundService 管理员退款处理
//
// 金额只采用退款计算器的结果，绝不信任调用方传入的金额。
// 网关调用失败时本地状态保持原样，重试同一操作永远安全。
type RefundService struct {
	tx          TxRunner
	redisClient *redis.Client
	gw          gateway.Client
	refunds     RefundStore
	payments    PaymentStore
	ads         AdStore
	expos       ExpoStore
	outbox      OutboxStore
	refundTopic string
	now         func() time.Time
}

func NewRefundService(db *gorm.DB, redisClient *redis.Client, gw gateway.Client, cfg *config.Config) *RefundService {
	return &RefundService{
		tx:          db,
		redisClient: redisClient,
		gw:          gw,
		refunds:     repository.NewRefundRepository(db),
		payments:    repository.NewPaymentRepository(db),
		ads:         repository.NewAdvertisementRepository(db),
		expos:       repository.NewExpoRepository(db),
		outbox:      repository.NewOutboxRepository(db),
		refundTopic: cfg.Kafka.Topic.RefundResult,
		now:         time.Now,
	}
}

// RefundResponse 退款处理结果
type RefundResponse struct {
	RefundNo       string           `json:"refund_no"`
	TargetType     model.TargetType `json:"target_type"`
	TargetID       int64            `json:"target_id"`
	RefundedAmount int64            `json:"refunded_amount"`
	IsPartial      bool             `json:"is_partial"`
	Status         string           `json:"status"`
	Reason         string           `json:"reason"`
	RequestedAt    time.Time        `json:"requested_at"`
	RefundedAt     *time.Time       `json:"refunded_at"`
}

// Execute 批准退款申请并执行
// 全额时向网关传 nil（剩余可退全退），按天折算时传计算金额
func (s *RefundService) Execute(ctx context.Context, targetType model.TargetType, targetID int64) (*RefundResponse, error) {
	if s.redisClient != nil {
		refundLock := lock.NewRefundLock(s.redisClient, string(targetType), targetID)
		if err := refundLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer refundLock.Unlock(ctx)
	}

	switch targetType {
	case model.TargetAd:
		return s.executeAd(ctx, targetID)
	case model.TargetExpo:
		return s.executeExpo(ctx, targetID)
	case model.TargetReservation:
		return nil, errors.New("预约退款请走预约取消流程")
	}
	return nil, model.ErrInvalidTargetType
}

func (s *RefundService) executeAd(ctx context.Context, targetID int64) (*RefundResponse, error) {
	refund, err := s.refunds.GetPendingByTarget(ctx, model.TargetAd, targetID)
	if err != nil {
		return nil, err
	}
	ad, err := s.ads.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	info, err := s.payments.GetAdByTargetID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	quote, err := QuoteAdRefund(info, ad.Status, ad.StartDate, s.now())
	if err != nil {
		return nil, err
	}

	result, err := s.cancelAtGateway(ctx, info.ImpUID, quote, refund.Reason)
	if err != nil {
		return nil, err
	}

	paymentStatus := model.PaymentStatusRefunded
	if quote.IsPartial {
		paymentStatus = model.PaymentStatusPartialRefunded
	}
	next, err := model.NextAdStatus(ad.Status, model.AdOpCancel)
	if err != nil {
		return nil, err
	}

	err = s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.refunds.MarkRefunded(ctx, tx, refund.ID, result.RefundedAmount, quote.IsPartial, result.RefundedAt); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, tx, model.TargetAd, targetID, model.PaymentStatusSuccess, paymentStatus); err != nil {
			return err
		}
		if err := s.ads.UpdateStatus(ctx, tx, targetID, ad.Status, next); err != nil {
			return err
		}
		return s.publishRefundEvent(ctx, tx, refund, model.TargetAd, targetID, result, quote.IsPartial)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Refund] 广告退款完成: targetId=%d, refundNo=%s, amount=%d, partial=%v",
		targetID, refund.RefundNo, result.RefundedAmount, quote.IsPartial)
	return s.response(refund, model.TargetAd, targetID, result, quote.IsPartial), nil
}

func (s *RefundService) executeExpo(ctx context.Context, targetID int64) (*RefundResponse, error) {
	refund, err := s.refunds.GetPendingByTarget(ctx, model.TargetExpo, targetID)
	if err != nil {
		return nil, err
	}
	expo, err := s.expos.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	info, err := s.payments.GetExpoByTargetID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	quote, err := QuoteExpoRefund(info, expo.Status, expo.StartDate, s.now())
	if err != nil {
		return nil, err
	}

	result, err := s.cancelAtGateway(ctx, info.ImpUID, quote, refund.Reason)
	if err != nil {
		return nil, err
	}

	paymentStatus := model.PaymentStatusRefunded
	if quote.IsPartial {
		paymentStatus = model.PaymentStatusPartialRefunded
	}
	next, err := model.NextExpoStatus(expo.Status, model.ExpoOpCancel)
	if err != nil {
		return nil, err
	}

	err = s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.refunds.MarkRefunded(ctx, tx, refund.ID, result.RefundedAmount, quote.IsPartial, result.RefundedAt); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, tx, model.TargetExpo, targetID, model.PaymentStatusSuccess, paymentStatus); err != nil {
			return err
		}
		if err := s.expos.UpdateStatus(ctx, tx, targetID, expo.Status, next); err != nil {
			return err
		}
		return s.publishRefundEvent(ctx, tx, refund, model.TargetExpo, targetID, result, quote.IsPartial)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Refund] 展会退款完成: targetId=%d, refundNo=%s, amount=%d, partial=%v",
		targetID, refund.RefundNo, result.RefundedAmount, quote.IsPartial)
	return s.response(refund, model.TargetExpo, targetID, result, quote.IsPartial), nil
}

// cancelAtGateway 全额传 nil 让网关退剩余全部，部分退款传计算金额
func (s *RefundService) cancelAtGateway(ctx context.Context, impUID string, quote *RefundQuote, reason string) (*gateway.RefundResult, error) {
	var cancelAmount *int64
	if quote.IsPartial {
		cancelAmount = &quote.Amount
	}
	return s.gw.Refund(ctx, impUID, cancelAmount, reason)
}

// Reject 驳回退款申请，实体按投放窗口回到应处的状态（denyCancel 三分支）
func (s *RefundService) Reject(ctx context.Context, targetType model.TargetType, targetID int64) error {
	refund, err := s.refunds.GetPendingByTarget(ctx, targetType, targetID)
	if err != nil {
		return err
	}

	switch targetType {
	case model.TargetAd:
		ad, err := s.ads.GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		dest, err := model.NextAdStatusDenyCancel(ad.Status, s.now(), ad.StartDate, ad.EndDate)
		if err != nil {
			return err
		}
		return s.tx.Transaction(func(tx *gorm.DB) error {
			if err := s.refunds.MarkRejected(ctx, tx, refund.ID); err != nil {
				return err
			}
			return s.ads.UpdateStatus(ctx, tx, targetID, ad.Status, dest)
		})
	case model.TargetExpo:
		expo, err := s.expos.GetByID(ctx, targetID)
		if err != nil {
			return err
		}
		dest, err := model.NextExpoStatusDenyCancel(expo.Status, s.now(), expo.StartDate, expo.EndDate)
		if err != nil {
			return err
		}
		return s.tx.Transaction(func(tx *gorm.DB) error {
			if err := s.refunds.MarkRejected(ctx, tx, refund.ID); err != nil {
				return err
			}
			return s.expos.UpdateStatus(ctx, tx, targetID, expo.Status, dest)
		})
	}
	return model.ErrInvalidTargetType
}

// RefundSummary 各结算对象类型的已退金额汇总（对账报表）
type RefundSummary struct {
	AdRefunded          int64 `json:"ad_refunded"`
	ExpoRefunded        int64 `json:"expo_refunded"`
	ReservationRefunded int64 `json:"reservation_refunded"`
}

func (s *RefundService) Summary(ctx context.Context) (*RefundSummary, error) {
	summary := &RefundSummary{}
	var err error
	if summary.AdRefunded, err = s.refunds.SumRefundedAmountByType(ctx, model.TargetAd); err != nil {
		return nil, err
	}
	if summary.ExpoRefunded, err = s.refunds.SumRefundedAmountByType(ctx, model.TargetExpo); err != nil {
		return nil, err
	}
	if summary.ReservationRefunded, err = s.refunds.SumRefundedAmountByType(ctx, model.TargetReservation); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *RefundService) publishRefundEvent(ctx context.Context, tx *gorm.DB, refund *model.Refund, targetType model.TargetType, targetID int64, result *gateway.RefundResult, isPartial bool) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"event":       "REFUND_COMPLETED",
		"refund_no":   refund.RefundNo,
		"target_type": targetType,
		"target_id":   targetID,
		"amount":      result.RefundedAmount,
		"is_partial":  isPartial,
		"reason":      refund.Reason,
		"refunded_at": result.RefundedAt.Format(time.RFC3339),
	})
	msg := &model.OutboxMessage{
		MessageKey: refund.RefundNo,
		Topic:      s.refundTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	return s.outbox.Create(ctx, tx, msg)
}

func (s *RefundService) response(refund *model.Refund, targetType model.TargetType, targetID int64, result *gateway.RefundResult, isPartial bool) *RefundResponse {
	refundedAt := result.RefundedAt
	return &RefundResponse{
		RefundNo:       refund.RefundNo,
		TargetType:     targetType,
		TargetID:       targetID,
		RefundedAmount: result.RefundedAmount,
		IsPartial:      isPartial,
		Status:         model.RefundStatusRefunded,
		Reason:         refund.Reason,
		RequestedAt:    refund.RequestedAt,
		RefundedAt:     &refundedAt,
	}
}
