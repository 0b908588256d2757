package service

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/model"
	"marketpay/internal/repository"
	"marketpay/pkg/idgen"

	"gorm.io/gorm"
)

// ExpoService 展会生命周期操作，结构与 AdService 同构
type ExpoService struct {
	tx       TxRunner
	expos    ExpoStore
	payments PaymentStore
	refunds  RefundStore
	now      func() time.Time
}

func NewExpoService(db *gorm.DB) *ExpoService {
	return &ExpoService{
		tx:       db,
		expos:    repository.NewExpoRepository(db),
		payments: repository.NewPaymentRepository(db),
		refunds:  repository.NewRefundRepository(db),
		now:      time.Now,
	}
}

type CreateExpoRequest struct {
	UserID         int64
	Title          string
	Location       string
	IsPremium      bool
	StartDate      time.Time
	EndDate        time.Time
	Deposit        int64
	PremiumDeposit int64
	DailyUsageFee  int64
	CommissionRate float64
}

// Create 发起参展申请：实体进 PENDING_APPROVAL，同时建 PENDING 支付信息
// 总额 = 保证金(+优选加价) + 展期天数 × 每日使用费
func (s *ExpoService) Create(ctx context.Context, req *CreateExpoRequest) (*model.Expo, error) {
	if req.EndDate.Before(req.StartDate) {
		return nil, errors.New("展期结束日不能早于开始日")
	}

	totalDay := model.DaysBetween(req.StartDate, req.EndDate) + 1
	premium := int64(0)
	if req.IsPremium {
		premium = req.PremiumDeposit
	}

	expo := &model.Expo{
		UserID:    req.UserID,
		Title:     req.Title,
		Location:  req.Location,
		IsPremium: req.IsPremium,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    model.ExpoStatusPendingApproval,
	}

	err := s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.expos.Create(ctx, tx, expo); err != nil {
			return err
		}
		info := &model.ExpoPaymentInfo{
			TargetID:       expo.ID,
			MerchantUID:    idgen.GenerateMerchantUID(),
			Deposit:        req.Deposit,
			PremiumDeposit: premium,
			TotalDay:       totalDay,
			DailyUsageFee:  req.DailyUsageFee,
			CommissionRate: req.CommissionRate,
			TotalAmount:    req.Deposit + premium + int64(totalDay)*req.DailyUsageFee,
			Status:         model.PaymentStatusPending,
		}
		return s.payments.CreateExpo(ctx, tx, info)
	})
	if err != nil {
		return nil, err
	}
	return expo, nil
}

func (s *ExpoService) Approve(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.ExpoOpApprove)
}

func (s *ExpoService) Reject(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.ExpoOpReject)
}

func (s *ExpoService) Publish(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.ExpoOpPublish)
}

func (s *ExpoService) Complete(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.ExpoOpComplete)
}

func (s *ExpoService) transition(ctx context.Context, id int64, op string) error {
	expo, err := s.expos.GetByID(ctx, id)
	if err != nil {
		return err
	}
	next, err := model.NextExpoStatus(expo.Status, op)
	if err != nil {
		return err
	}
	return s.expos.UpdateStatus(ctx, nil, id, expo.Status, next)
}

// RequestRefund 参展方发起退款申请
func (s *ExpoService) RequestRefund(ctx context.Context, id int64, input *RequestRefundInput) (*model.Refund, error) {
	expo, err := s.expos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := model.NextExpoStatus(expo.Status, model.ExpoOpRequestRefund)
	if err != nil {
		return nil, err
	}

	exists, err := s.refunds.ExistsPendingByTarget(ctx, model.TargetExpo, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrRefundAlreadyRequested
	}

	refund := &model.Refund{
		RefundNo:      idgen.GenerateRefundNo(),
		TargetType:    model.TargetExpo,
		TargetID:      id,
		Reason:        input.Reason,
		Status:        model.RefundStatusPending,
		RefundHolder:  input.RefundHolder,
		RefundBank:    input.RefundBank,
		RefundAccount: input.RefundAccount,
		RefundTel:     input.RefundTel,
		RequestedAt:   s.now(),
	}

	err = s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.expos.UpdateStatus(ctx, tx, id, expo.Status, next); err != nil {
			return err
		}
		return s.refunds.Create(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}
