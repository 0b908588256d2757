package service

import (
	"time"

	"marketpay/internal/model"
)

// ============================================================================
// 退款计算
//
// 全额还是按天折算，取决于服务窗口是否已经开始：
//   - 未开始（待上线）：全额退
//   - 已开始（投放中）：usedDays = daysBetween(开始日, 今天) + 1，开始日当天即算一天；
//     退 remainingDays × 每日费用，保证金/登记费部分开始后不退
//
// 退款窗口的唯一判定依据就是这里的日期规则，不存在另一套阶梯费率表。
// today 由调用方注入，便于测试。
// ============================================================================

// RefundQuote 退款试算结果
type RefundQuote struct {
	Amount        int64 `json:"amount"`
	IsPartial     bool  `json:"is_partial"`
	UsedDays      int   `json:"used_days"`
	RemainingDays int   `json:"remaining_days"`
	UsedAmount    int64 `json:"used_amount"`
}

// QuoteAdRefund 广告退款试算
func QuoteAdRefund(info *model.AdPaymentInfo, adStatus string, startDate, today time.Time) (*RefundQuote, error) {
	started, err := windowStarted("advertisement", adStatus, startDate, today,
		model.AdStatusPendingPublish, model.AdStatusPublished, model.AdStatusPendingCancel)
	if err != nil {
		return nil, err
	}
	if !started {
		return fullQuote(info.TotalAmount, info.TotalDay), nil
	}
	return prorate(info.TotalDay, info.FeePerDay, startDate, today)
}

// QuoteExpoRefund 展会退款试算
// 全额 = 保证金(+加价) + 全部使用费；开始后只按剩余天数退使用费
func QuoteExpoRefund(info *model.ExpoPaymentInfo, expoStatus string, startDate, today time.Time) (*RefundQuote, error) {
	started, err := windowStarted("expo", expoStatus, startDate, today,
		model.ExpoStatusPendingPublish, model.ExpoStatusPublished, model.ExpoStatusPendingCancel)
	if err != nil {
		return nil, err
	}
	if !started {
		return fullQuote(info.TotalAmount, info.TotalDay), nil
	}
	return prorate(info.TotalDay, info.DailyUsageFee, startDate, today)
}

// windowStarted 服务窗口是否已开始
// 待上线 = 未开始；投放中 = 已开始；取消申请中的实体按执行时刻的日期重新判定
func windowStarted(entity, status string, startDate, today time.Time, pendingPublish, published, pendingCancel string) (bool, error) {
	switch status {
	case pendingPublish:
		return false, nil
	case published:
		return true, nil
	case pendingCancel:
		return model.DaysBetween(startDate, today) >= 0, nil
	}
	return false, &model.InvalidTransitionError{Entity: entity, Op: "refund", Current: status}
}

func fullQuote(totalAmount int64, totalDay int) *RefundQuote {
	return &RefundQuote{
		Amount:        totalAmount,
		IsPartial:     false,
		UsedDays:      0,
		RemainingDays: totalDay,
		UsedAmount:    0,
	}
}

func prorate(totalDay int, dailyFee int64, startDate, today time.Time) (*RefundQuote, error) {
	usedDays := model.DaysBetween(startDate, today) + 1 // 开始日当天算一天
	if usedDays < 0 {
		usedDays = 0
	}
	remainingDays := totalDay - usedDays
	if remainingDays < 0 {
		remainingDays = 0
	}

	quote := &RefundQuote{
		Amount:        int64(remainingDays) * dailyFee,
		IsPartial:     remainingDays < totalDay,
		UsedDays:      usedDays,
		RemainingDays: remainingDays,
		UsedAmount:    int64(usedDays) * dailyFee,
	}
	if quote.Amount <= 0 {
		return nil, model.ErrRefundNotAllowed
	}
	return quote, nil
}
