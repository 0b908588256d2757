package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"marketpay/internal/config"
	"marketpay/internal/gateway"
	"marketpay/internal/model"
	"marketpay/internal/repository"
	"marketpay/pkg/idgen"

	"gorm.io/gorm"
)

// PaymentService 把网关事实转译为领域事实的唯一入口
//
// webhook 回调体不可信且字段稀少，一律按 impUid 重查网关拿权威数据；
// 幂等由本地守卫推导：已结算的记录再次到达直接空操作。
// 状态翻转和副作用在同一个事务里完成，翻转用条件更新，崩溃后的整体重试安全。
type PaymentService struct {
	tx           TxRunner
	gw           gateway.Client
	payments     PaymentStore
	ads          AdStore
	expos        ExpoStore
	reservations ReservationStore
	outbox       OutboxStore
	paymentTopic string
}

func NewPaymentService(db *gorm.DB, gw gateway.Client, cfg *config.Config) *PaymentService {
	return &PaymentService{
		tx:           db,
		gw:           gw,
		payments:     repository.NewPaymentRepository(db),
		ads:          repository.NewAdvertisementRepository(db),
		expos:        repository.NewExpoRepository(db),
		reservations: repository.NewReservationRepository(db),
		outbox:       repository.NewOutboxRepository(db),
		paymentTopic: cfg.Kafka.Topic.PaymentResult,
	}
}

// HandleNotification 处理网关 webhook 通知
//
// 1. 通知状态不是 paid 哨兵值直接忽略（虚拟账户 ready 事件不可操作）
// 2. 按 impUid 重查网关，金额和结算对象一律以重查结果为准
// 3. 重查状态仍不是 paid 则忽略
// 4. 按标签分发到对应支付信息，幂等守卫 + 金额守卫后落库
func (s *PaymentService) HandleNotification(ctx context.Context, n *gateway.Notification) error {
	if n.Status != gateway.StatusPaid {
		log.Printf("[Webhook] 忽略非入账通知: impUid=%s, status=%s", n.ImpUID, n.Status)
		return nil
	}

	payment, err := s.gw.FindByImpUID(ctx, n.ImpUID)
	if err != nil {
		return err
	}
	if payment.Status != gateway.StatusPaid {
		log.Printf("[Webhook] 重查后状态未入账，忽略: impUid=%s, status=%s", n.ImpUID, payment.Status)
		return nil
	}

	return s.applyPaid(ctx, payment)
}

// Complete 卡支付的同步确认入口
// 前端完成支付后回传 impUid，这里重查网关校验金额后走与 webhook 相同的落库路径
func (s *PaymentService) Complete(ctx context.Context, targetType model.TargetType, targetID int64, impUID string) error {
	var merchantUID string
	var totalAmount int64

	switch targetType {
	case model.TargetAd:
		info, err := s.payments.GetAdByTargetID(ctx, targetID)
		if err != nil {
			return err
		}
		if model.IsPaymentSettled(info.Status) {
			return nil
		}
		merchantUID, totalAmount = info.MerchantUID, info.TotalAmount
	case model.TargetExpo:
		info, err := s.payments.GetExpoByTargetID(ctx, targetID)
		if err != nil {
			return err
		}
		if model.IsPaymentSettled(info.Status) {
			return nil
		}
		merchantUID, totalAmount = info.MerchantUID, info.TotalAmount
	case model.TargetReservation:
		info, err := s.payments.GetReservationByTargetID(ctx, targetID)
		if err != nil {
			return err
		}
		if model.IsPaymentSettled(info.Status) {
			return nil
		}
		merchantUID, totalAmount = info.MerchantUID, info.TotalAmount
	default:
		return model.ErrInvalidTargetType
	}

	payment, err := s.gw.Verify(ctx, impUID, merchantUID, totalAmount)
	if err != nil {
		return err
	}
	// custom_data 缺失时以本地调用方为准
	if payment.TargetID == 0 {
		payment.TargetType, payment.TargetID = targetType, targetID
	}
	return s.applyPaid(ctx, payment)
}

// applyPaid 入账落库：幂等守卫 -> 金额守卫 -> 条件翻转 + 副作用（同一事务）
func (s *PaymentService) applyPaid(ctx context.Context, payment *gateway.Payment) error {
	switch payment.TargetType {
	case model.TargetAd:
		return s.applyAdPaid(ctx, payment)
	case model.TargetExpo:
		return s.applyExpoPaid(ctx, payment)
	case model.TargetReservation:
		return s.applyReservationPaid(ctx, payment)
	}
	return model.ErrInvalidTargetType
}

func (s *PaymentService) applyAdPaid(ctx context.Context, payment *gateway.Payment) error {
	info, err := s.payments.GetAdByTargetID(ctx, payment.TargetID)
	if err != nil {
		return err
	}
	if model.IsPaymentSettled(info.Status) {
		log.Printf("[Webhook] 广告支付已结算，跳过: targetId=%d, status=%s", payment.TargetID, info.Status)
		return nil
	}
	if payment.PaidAmount != info.TotalAmount {
		return model.ErrAmountMismatch
	}

	return s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.payments.Confirm(ctx, tx, model.TargetAd, payment.TargetID, payment.ImpUID, payment.PaidAt); err != nil {
			return err
		}
		// 支付成功驱动广告离开待支付状态
		return s.ads.UpdateStatus(ctx, tx, payment.TargetID,
			model.AdStatusPendingPayment, model.AdStatusPendingPublish)
	})
}

func (s *PaymentService) applyExpoPaid(ctx context.Context, payment *gateway.Payment) error {
	info, err := s.payments.GetExpoByTargetID(ctx, payment.TargetID)
	if err != nil {
		return err
	}
	if model.IsPaymentSettled(info.Status) {
		log.Printf("[Webhook] 展会支付已结算，跳过: targetId=%d, status=%s", payment.TargetID, info.Status)
		return nil
	}
	if payment.PaidAmount != info.TotalAmount {
		return model.ErrAmountMismatch
	}

	return s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.payments.Confirm(ctx, tx, model.TargetExpo, payment.TargetID, payment.ImpUID, payment.PaidAt); err != nil {
			return err
		}
		return s.expos.UpdateStatus(ctx, tx, payment.TargetID,
			model.ExpoStatusPendingPayment, model.ExpoStatusPendingPublish)
	})
}

// applyReservationPaid 预约入账：预约成立、签发入场券，会员再做里程增减和确认通知
func (s *PaymentService) applyReservationPaid(ctx context.Context, payment *gateway.Payment) error {
	info, err := s.payments.GetReservationByTargetID(ctx, payment.TargetID)
	if err != nil {
		return err
	}
	if model.IsPaymentSettled(info.Status) {
		log.Printf("[Webhook] 预约支付已结算，跳过: targetId=%d, status=%s", payment.TargetID, info.Status)
		return nil
	}
	if payment.PaidAmount != info.TotalAmount {
		return model.ErrAmountMismatch
	}

	reservation, err := s.reservations.GetByID(ctx, payment.TargetID)
	if err != nil {
		return err
	}
	expo, err := s.expos.GetByID(ctx, reservation.ExpoID)
	if err != nil {
		return err
	}

	return s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.payments.Confirm(ctx, tx, model.TargetReservation, payment.TargetID, payment.ImpUID, payment.PaidAt); err != nil {
			return err
		}
		if err := s.reservations.UpdateStatus(ctx, tx, reservation.ID,
			model.ReservationStatusPendingDeposit, model.ReservationStatusConfirmed); err != nil {
			return err
		}

		for i := 0; i < reservation.Quantity; i++ {
			ticket := &model.AdmissionTicket{
				TicketNo:      idgen.GenerateTicketNo(),
				ReservationID: reservation.ID,
				Status:        model.TicketStatusIssued,
				ActivateAt:    expo.StartDate,
				ExpireAt:      expo.EndDate.Add(24 * time.Hour),
			}
			if err := s.reservations.CreateTicket(ctx, tx, ticket); err != nil {
				return err
			}
		}

		// 里程增减和确认通知仅限会员购买
		if reservation.IsMember() {
			delta := info.SavedMileage - info.UsedMileage
			if delta != 0 {
				if err := s.reservations.ApplyMileage(ctx, tx, *reservation.MemberID, delta); err != nil {
					return err
				}
			}

			payload, _ := json.Marshal(map[string]interface{}{
				"event":        "PAYMENT_CONFIRMED",
				"target_type":  model.TargetReservation,
				"target_id":    reservation.ID,
				"member_id":    *reservation.MemberID,
				"merchant_uid": info.MerchantUID,
				"amount":       info.TotalAmount,
				"paid_at":      payment.PaidAt.Format(time.RFC3339),
			})
			msg := &model.OutboxMessage{
				MessageKey: info.MerchantUID,
				Topic:      s.paymentTopic,
				Payload:    string(payload),
				Status:     model.OutboxStatusPending,
			}
			if err := s.outbox.Create(ctx, tx, msg); err != nil {
				return err
			}
		}

		return nil
	})
}
