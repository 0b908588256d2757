package gateway

import (
	"context"
	"errors"
	"time"

	"marketpay/internal/model"
)

// ============================================================================
// 支付网关契约
//
// 网关按 impUid 维度自身幂等，调用重试是安全的；但 webhook 投递不保证不重复、
// 不乱序，本地幂等由 service 层自己推导，不依赖网关
// ============================================================================

// 网关侧支付状态
const (
	StatusReady = "ready" // 虚拟账户已发放，等待入金
	StatusPaid  = "paid"  // 已入账（可操作哨兵值）
)

var (
	ErrPaymentNotFound = errors.New("网关查询不到该支付")
	ErrRefundFailed    = errors.New("网关退款失败")
)

// Payment 网关权威查询结果
// TargetType/TargetID 来自下单时写入的 custom_data，金额以网关返回为准
type Payment struct {
	ImpUID      string
	MerchantUID string
	Status      string
	PaidAmount  int64
	TargetType  model.TargetType
	TargetID    int64
	PaidAt      time.Time
}

// RefundResult 网关退款结果
type RefundResult struct {
	RefundedAmount int64
	IsPartial      bool
	RefundedAt     time.Time
}

// Notification 网关 webhook 回调体
// 只是触发器，金额和状态一律以 FindByImpUID 的重查结果为准
type Notification struct {
	ImpUID      string `json:"imp_uid" binding:"required"`
	MerchantUID string `json:"merchant_uid" binding:"required"`
	Status      string `json:"status" binding:"required"`
}

// Client 支付网关客户端
// 调用失败或超时不改变任何本地状态，同一用户动作重试永远安全
type Client interface {
	// Verify 重查支付并校验：状态必须是 paid，实付必须等于 amount
	Verify(ctx context.Context, impUID, merchantUID string, amount int64) (*Payment, error)

	// VerifyVirtualAccount 同 Verify，但允许 ready（虚拟账户发放完成）状态
	VerifyVirtualAccount(ctx context.Context, impUID, merchantUID string, amount int64) (*Payment, error)

	// Refund 退款，cancelAmount 为 nil 表示剩余可退金额全退
	Refund(ctx context.Context, impUID string, cancelAmount *int64, reason string) (*RefundResult, error)

	// FindByImpUID webhook 重查入口，返回网关权威数据
	FindByImpUID(ctx context.Context, impUID string) (*Payment, error)
}
