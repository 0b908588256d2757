package service

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/config"
	"marketpay/internal/gateway"
	"marketpay/internal/model"
	"marketpay/internal/repository"
	"marketpay/pkg/idgen"

	"gorm.io/gorm"
)

const (
	PayMethodCard  = "card"  // 卡支付，前端完成后走同步确认
	PayMethodVbank = "vbank" // 虚拟账户，入金到账后走 webhook
)

// 预约支付成功后按实付金额 1% 累积里程（仅会员）
const mileageSaveRate = 100

// ReservationService 门票预约与取消
type ReservationService struct {
	tx           TxRunner
	gw           gateway.Client
	reservations ReservationStore
	payments     PaymentStore
	refunds      RefundStore
	expos        ExpoStore
	deadlineDays int
	now          func() time.Time
}

func NewReservationService(db *gorm.DB, gw gateway.Client, cfg *config.Config) *ReservationService {
	return &ReservationService{
		tx:           db,
		gw:           gw,
		reservations: repository.NewReservationRepository(db),
		payments:     repository.NewPaymentRepository(db),
		refunds:      repository.NewRefundRepository(db),
		expos:        repository.NewExpoRepository(db),
		deadlineDays: cfg.Business.VbankDeadlineDays,
		now:          time.Now,
	}
}

type CreateReservationRequest struct {
	ExpoID         int64
	TicketOptionID int64
	MemberID       *int64
	GuestName      string
	GuestTel       string
	Quantity       int
	PayMethod      string
	UsedMileage    int64 // 会员里程抵扣，游客必须为 0
}

// Create 创建预约：扣库存、建 PENDING 支付信息
// 虚拟账户留入金截止时间，超时由每日扫描取消并回补库存
func (s *ReservationService) Create(ctx context.Context, req *CreateReservationRequest) (*model.Reservation, error) {
	if req.Quantity <= 0 {
		return nil, errors.New("购票数量必须大于0")
	}
	if req.MemberID == nil && req.UsedMileage > 0 {
		return nil, errors.New("游客不能使用里程抵扣")
	}

	option, err := s.reservations.GetTicketOption(ctx, req.TicketOptionID)
	if err != nil {
		return nil, err
	}
	if option.ExpoID != req.ExpoID {
		return nil, errors.New("票种与展会不匹配")
	}

	totalAmount := option.Price*int64(req.Quantity) - req.UsedMileage
	if totalAmount <= 0 {
		return nil, errors.New("里程抵扣不能超过票价")
	}

	savedMileage := int64(0)
	if req.MemberID != nil {
		savedMileage = totalAmount / mileageSaveRate
	}

	reservation := &model.Reservation{
		ExpoID:         req.ExpoID,
		TicketOptionID: req.TicketOptionID,
		MemberID:       req.MemberID,
		GuestName:      req.GuestName,
		GuestTel:       req.GuestTel,
		Quantity:       req.Quantity,
		Status:         model.ReservationStatusPendingDeposit,
	}
	if req.PayMethod == PayMethodVbank {
		deadline := s.now().AddDate(0, 0, s.deadlineDays)
		reservation.DepositDeadline = &deadline
	}

	err = s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.reservations.DeductInventory(ctx, tx, req.TicketOptionID, req.Quantity); err != nil {
			return err
		}
		if err := s.reservations.Create(ctx, tx, reservation); err != nil {
			return err
		}
		info := &model.ReservationPaymentInfo{
			TargetID:     reservation.ID,
			MerchantUID:  idgen.GenerateMerchantUID(),
			UsedMileage:  req.UsedMileage,
			SavedMileage: savedMileage,
			TotalAmount:  totalAmount,
			Status:       model.PaymentStatusPending,
		}
		return s.payments.CreateReservation(ctx, tx, info)
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// ConfirmVbankIssued 虚拟账户发放确认
// 前端拿到网关分配的虚拟账户后回传 impUid，这里按网关重查核对商户单号与金额
// （允许 ready 状态），并把网关支付号提前回填到支付信息上；入金到账仍由 webhook 驱动
func (s *ReservationService) ConfirmVbankIssued(ctx context.Context, id int64, impUID string) error {
	info, err := s.payments.GetReservationByTargetID(ctx, id)
	if err != nil {
		return err
	}
	// 入金回调先到的话支付号已随 Confirm 回填，这里直接空操作
	if model.IsPaymentSettled(info.Status) {
		return nil
	}
	if _, err := s.gw.VerifyVirtualAccount(ctx, impUID, info.MerchantUID, info.TotalAmount); err != nil {
		return err
	}
	return s.payments.AttachImpUID(ctx, nil, model.TargetReservation, id, impUID)
}

// Cancel 取消预约
// 已支付：全额退款、回补库存、回滚里程；未入金：直接取消并标记支付失败
func (s *ReservationService) Cancel(ctx context.Context, id int64, reason string) error {
	reservation, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	info, err := s.payments.GetReservationByTargetID(ctx, id)
	if err != nil {
		return err
	}

	switch info.Status {
	case model.PaymentStatusSuccess:
		return s.cancelPaid(ctx, reservation, info, reason)
	case model.PaymentStatusPending:
		return s.cancelUnpaid(ctx, reservation)
	}
	return &model.InvalidTransitionError{Entity: "reservation payment", Op: "cancel", Current: info.Status}
}

func (s *ReservationService) cancelPaid(ctx context.Context, reservation *model.Reservation, info *model.ReservationPaymentInfo, reason string) error {
	// 先过网关，失败则本地状态原样保留，重试安全
	result, err := s.gw.Refund(ctx, info.ImpUID, nil, reason)
	if err != nil {
		return err
	}

	refund := &model.Refund{
		RefundNo:    idgen.GenerateRefundNo(),
		TargetType:  model.TargetReservation,
		TargetID:    reservation.ID,
		Amount:      result.RefundedAmount,
		IsPartial:   false,
		Reason:      reason,
		Status:      model.RefundStatusRefunded,
		RequestedAt: s.now(),
		RefundedAt:  &result.RefundedAt,
	}

	return s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.reservations.UpdateStatus(ctx, tx, reservation.ID,
			model.ReservationStatusConfirmed, model.ReservationStatusCancelled); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, tx, model.TargetReservation, reservation.ID,
			model.PaymentStatusSuccess, model.PaymentStatusRefunded); err != nil {
			return err
		}
		if err := s.refunds.Create(ctx, tx, refund); err != nil {
			return err
		}
		if err := s.reservations.RestoreInventory(ctx, tx, reservation.TicketOptionID, reservation.Quantity); err != nil {
			return err
		}
		// 已发放的入场券一并作废，否则定时激活扫描会把退款客户的券置为可入场
		if _, err := s.reservations.RevokeTickets(ctx, tx, reservation.ID); err != nil {
			return err
		}
		// 支付成功时生效的里程增减在取消时整体回滚
		if reservation.IsMember() {
			delta := info.UsedMileage - info.SavedMileage
			if delta != 0 {
				return s.reservations.ApplyMileage(ctx, tx, *reservation.MemberID, delta)
			}
		}
		return nil
	})
}

func (s *ReservationService) cancelUnpaid(ctx context.Context, reservation *model.Reservation) error {
	return s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.reservations.UpdateStatus(ctx, tx, reservation.ID,
			model.ReservationStatusPendingDeposit, model.ReservationStatusCancelled); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, tx, model.TargetReservation, reservation.ID,
			model.PaymentStatusPending, model.PaymentStatusFailed); err != nil {
			return err
		}
		return s.reservations.RestoreInventory(ctx, tx, reservation.TicketOptionID, reservation.Quantity)
	})
}
