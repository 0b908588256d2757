package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketpay/internal/gateway"
	"marketpay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refundServiceFixture struct {
	svc      *RefundService
	tx       *fakeTx
	gw       *fakeGateway
	refunds  *fakeRefundStore
	payments *fakePaymentStore
	ads      *fakeAdStore
	expos    *fakeExpoStore
	outbox   *fakeOutboxStore
}

func newRefundServiceFixture(now time.Time) *refundServiceFixture {
	f := &refundServiceFixture{
		tx:       &fakeTx{},
		gw:       newFakeGateway(),
		refunds:  newFakeRefundStore(),
		payments: newFakePaymentStore(),
		ads:      newFakeAdStore(),
		expos:    newFakeExpoStore(),
		outbox:   &fakeOutboxStore{},
	}
	f.svc = &RefundService{
		tx:          f.tx,
		gw:          f.gw,
		refunds:     f.refunds,
		payments:    f.payments,
		ads:         f.ads,
		expos:       f.expos,
		outbox:      f.outbox,
		refundTopic: "refund_result",
		now:         func() time.Time { return now },
	}
	return f
}

// 10 天投放，1000/天，取消申请中
func (f *refundServiceFixture) seedPendingCancelAd(targetID int64) *model.Refund {
	f.ads.ads[targetID] = &model.Advertisement{
		ID: targetID, Status: model.AdStatusPendingCancel,
		StartDate: day("2026-03-10"), EndDate: day("2026-03-19"),
	}
	paidAt := day("2026-03-01")
	f.payments.ads[targetID] = &model.AdPaymentInfo{
		TargetID: targetID, MerchantUID: "MKT-R-1", ImpUID: "imp_r1",
		TotalDay: 10, FeePerDay: 1000, TotalAmount: 10000,
		Status: model.PaymentStatusSuccess, PaidAt: &paidAt,
	}
	refund := &model.Refund{
		RefundNo: "REF-TEST-1", TargetType: model.TargetAd, TargetID: targetID,
		Reason: "用户取消", Status: model.RefundStatusPending, RequestedAt: day("2026-03-05"),
	}
	_ = f.refunds.Create(context.Background(), nil, refund)
	return refund
}

// 投放开始前执行：全额退，网关传 nil，支付置 REFUNDED，实体取消
func TestExecuteAdRefundFullBeforeStart(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-08"))
	refund := f.seedPendingCancelAd(1)
	refundedAt := day("2026-03-08")
	f.gw.refundResult = &gateway.RefundResult{RefundedAmount: 10000, IsPartial: false, RefundedAt: refundedAt}

	resp, err := f.svc.Execute(context.Background(), model.TargetAd, 1)
	require.NoError(t, err)

	require.Len(t, f.gw.refundCalls, 1)
	assert.Nil(t, f.gw.refundCalls[0].cancelAmount) // 全额退让网关退剩余全部
	assert.Equal(t, "imp_r1", f.gw.refundCalls[0].impUID)

	assert.Equal(t, model.RefundStatusRefunded, refund.Status)
	assert.Equal(t, int64(10000), refund.Amount)
	assert.False(t, refund.IsPartial)
	assert.Equal(t, model.PaymentStatusRefunded, f.payments.ads[1].Status)
	assert.Equal(t, model.AdStatusCancelled, f.ads.ads[1].Status)

	assert.Equal(t, int64(10000), resp.RefundedAmount)
	assert.False(t, resp.IsPartial)

	require.Len(t, f.outbox.messages, 1)
	assert.Contains(t, f.outbox.messages[0].Payload, "REFUND_COMPLETED")
}

// 投放第 4 天执行：按天折算传 6000，支付置 PARTIAL_REFUNDED
func TestExecuteAdRefundProrated(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-13"))
	refund := f.seedPendingCancelAd(1)

	resp, err := f.svc.Execute(context.Background(), model.TargetAd, 1)
	require.NoError(t, err)

	require.Len(t, f.gw.refundCalls, 1)
	require.NotNil(t, f.gw.refundCalls[0].cancelAmount)
	assert.Equal(t, int64(6000), *f.gw.refundCalls[0].cancelAmount)

	assert.Equal(t, model.RefundStatusRefunded, refund.Status)
	assert.True(t, refund.IsPartial)
	assert.Equal(t, model.PaymentStatusPartialRefunded, f.payments.ads[1].Status)
	assert.Equal(t, model.AdStatusCancelled, f.ads.ads[1].Status)
	assert.True(t, resp.IsPartial)
}

// 网关退款失败：本地状态原样保留，重试安全
func TestExecuteAdRefundGatewayFailureKeepsState(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-13"))
	refund := f.seedPendingCancelAd(1)
	f.gw.refundErr = gateway.ErrRefundFailed

	_, err := f.svc.Execute(context.Background(), model.TargetAd, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrRefundFailed))

	assert.Equal(t, model.RefundStatusPending, refund.Status)
	assert.Equal(t, model.PaymentStatusSuccess, f.payments.ads[1].Status)
	assert.Equal(t, model.AdStatusPendingCancel, f.ads.ads[1].Status)
	assert.Equal(t, 0, f.tx.calls)
}

// 投放期用完：没有可退金额，不碰网关
func TestExecuteAdRefundNothingLeft(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-25"))
	f.seedPendingCancelAd(1)

	_, err := f.svc.Execute(context.Background(), model.TargetAd, 1)
	assert.True(t, errors.Is(err, model.ErrRefundNotAllowed))
	assert.Empty(t, f.gw.refundCalls)
}

// 预约退款不走这里
func TestExecuteReservationRejected(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-13"))
	_, err := f.svc.Execute(context.Background(), model.TargetReservation, 1)
	require.Error(t, err)
}

// 驳回申请：退款单置 REJECTED，实体按日期回到投放中
func TestRejectAdRefundDuringWindow(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-13"))
	refund := f.seedPendingCancelAd(1)

	err := f.svc.Reject(context.Background(), model.TargetAd, 1)
	require.NoError(t, err)

	assert.Equal(t, model.RefundStatusRejected, refund.Status)
	assert.Equal(t, model.AdStatusPublished, f.ads.ads[1].Status)
}

// 窗口结束后驳回：实体直接进已结束
func TestRejectAdRefundAfterWindow(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-25"))
	f.seedPendingCancelAd(1)

	err := f.svc.Reject(context.Background(), model.TargetAd, 1)
	require.NoError(t, err)
	assert.Equal(t, model.AdStatusCompleted, f.ads.ads[1].Status)
}

// 窗口开始前驳回：实体回到待上线
func TestRejectAdRefundBeforeWindow(t *testing.T) {
	f := newRefundServiceFixture(day("2026-03-05"))
	f.seedPendingCancelAd(1)

	err := f.svc.Reject(context.Background(), model.TargetAd, 1)
	require.NoError(t, err)
	assert.Equal(t, model.AdStatusPendingPublish, f.ads.ads[1].Status)
}

// 展会退款：开始后保证金不退，只退剩余天数使用费
func TestExecuteExpoRefundProrated(t *testing.T) {
	f := newRefundServiceFixture(day("2026-05-03"))
	f.expos.expos[2] = &model.Expo{
		ID: 2, Status: model.ExpoStatusPendingCancel,
		StartDate: day("2026-05-01"), EndDate: day("2026-05-07"),
	}
	f.payments.expos[2] = &model.ExpoPaymentInfo{
		TargetID: 2, MerchantUID: "MKT-R-2", ImpUID: "imp_r2",
		Deposit: 50000, TotalDay: 7, DailyUsageFee: 2000,
		TotalAmount: 64000, Status: model.PaymentStatusSuccess,
	}
	refund := &model.Refund{
		RefundNo: "REF-TEST-2", TargetType: model.TargetExpo, TargetID: 2,
		Reason: "参展取消", Status: model.RefundStatusPending, RequestedAt: day("2026-05-02"),
	}
	require.NoError(t, f.refunds.Create(context.Background(), nil, refund))

	_, err := f.svc.Execute(context.Background(), model.TargetExpo, 2)
	require.NoError(t, err)

	require.Len(t, f.gw.refundCalls, 1)
	require.NotNil(t, f.gw.refundCalls[0].cancelAmount)
	// 已用 3 天，剩 4 天使用费
	assert.Equal(t, int64(8000), *f.gw.refundCalls[0].cancelAmount)
	assert.Equal(t, model.ExpoStatusCancelled, f.expos.expos[2].Status)
	assert.Equal(t, model.PaymentStatusPartialRefunded, f.payments.expos[2].Status)
}
