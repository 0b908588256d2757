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

var ErrRefundAlreadyRequested = errors.New("已有待处理的退款申请")

// AdService 广告位生命周期操作
// 每个操作先查迁移表拿目标状态，再用条件更新落库，两层守卫都不通过就报类型化错误
type AdService struct {
	tx       TxRunner
	ads      AdStore
	payments PaymentStore
	refunds  RefundStore
	now      func() time.Time
}

func NewAdService(db *gorm.DB) *AdService {
	return &AdService{
		tx:       db,
		ads:      repository.NewAdvertisementRepository(db),
		payments: repository.NewPaymentRepository(db),
		refunds:  repository.NewRefundRepository(db),
		now:      time.Now,
	}
}

type CreateAdRequest struct {
	UserID    int64
	Title     string
	ImageURL  string
	LinkURL   string
	StartDate time.Time
	EndDate   time.Time
	FeePerDay int64
}

// Create 发起广告投放申请：实体进 PENDING_APPROVAL，同时建 PENDING 支付信息
func (s *AdService) Create(ctx context.Context, req *CreateAdRequest) (*model.Advertisement, error) {
	if !req.EndDate.After(req.StartDate) && !req.EndDate.Equal(req.StartDate) {
		return nil, errors.New("投放结束日不能早于开始日")
	}

	totalDay := model.DaysBetween(req.StartDate, req.EndDate) + 1
	ad := &model.Advertisement{
		UserID:    req.UserID,
		Title:     req.Title,
		ImageURL:  req.ImageURL,
		LinkURL:   req.LinkURL,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    model.AdStatusPendingApproval,
	}

	err := s.tx.Transaction(func(tx *gorm.DB) error {
		if err := s.ads.Create(ctx, tx, ad); err != nil {
			return err
		}
		info := &model.AdPaymentInfo{
			TargetID:    ad.ID,
			MerchantUID: idgen.GenerateMerchantUID(),
			TotalDay:    totalDay,
			FeePerDay:   req.FeePerDay,
			TotalAmount: int64(totalDay) * req.FeePerDay,
			Status:      model.PaymentStatusPending,
		}
		return s.payments.CreateAd(ctx, tx, info)
	})
	if err != nil {
		return nil, err
	}
	return ad, nil
}

// Approve 审核通过：PENDING_APPROVAL -> PENDING_PAYMENT
func (s *AdService) Approve(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.AdOpApprove)
}

// Reject 审核驳回
func (s *AdService) Reject(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.AdOpReject)
}

// Publish 手动上线（定时扫描之外的管理员操作）
func (s *AdService) Publish(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.AdOpPublish)
}

// Complete 手动结束投放
func (s *AdService) Complete(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.AdOpComplete)
}

func (s *AdService) transition(ctx context.Context, id int64, op string) error {
	ad, err := s.ads.GetByID(ctx, id)
	if err != nil {
		return err
	}
	next, err := model.NextAdStatus(ad.Status, op)
	if err != nil {
		return err
	}
	return s.ads.UpdateStatus(ctx, nil, id, ad.Status, next)
}

type RequestRefundInput struct {
	Reason        string
	RefundHolder  string
	RefundBank    string
	RefundAccount string
	RefundTel     string
}

// RequestRefund 用户发起退款申请：实体进 PENDING_CANCEL，建 PENDING 退款单
// 金额在管理员执行时刻才计算，申请阶段不定价
func (s *AdService) RequestRefund(ctx context.Context, id int64, input *RequestRefundInput) (*model.Refund, error) {
	ad, err := s.ads.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := model.NextAdStatus(ad.Status, model.AdOpRequestRefund)
	if err != nil {
		return nil, err
	}

	exists, err := s.refunds.ExistsPendingByTarget(ctx, model.TargetAd, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrRefundAlreadyRequested
	}

	refund := &model.Refund{
		RefundNo:      idgen.GenerateRefundNo(),
		TargetType:    model.TargetAd,
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
		if err := s.ads.UpdateStatus(ctx, tx, id, ad.Status, next); err != nil {
			return err
		}
		return s.refunds.Create(ctx, tx, refund)
	})
	if err != nil {
		return nil, err
	}
	return refund, nil
}
