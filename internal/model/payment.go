package model

import (
	"errors"
	"time"
)

// ============================================================================
// 结算对象类型
// ============================================================================

// TargetType 结算对象类型标签
// 所有支付/退款记录都带一个标签 + 所属实体ID，分发逻辑只看标签，绝不做类型推断
type TargetType string

const (
	TargetAd          TargetType = "AD"          // 广告位
	TargetExpo        TargetType = "EXPO"        // 展会
	TargetReservation TargetType = "RESERVATION" // 门票预约
)

// ErrInvalidTargetType 未知的结算对象类型（网关或内部调用方违反契约，致命错误）
var ErrInvalidTargetType = errors.New("未知的结算对象类型")

// ============================================================================
// 支付状态
// ============================================================================

const (
	PaymentStatusPending         = "PENDING"          // 待支付
	PaymentStatusSuccess         = "SUCCESS"          // 支付成功
	PaymentStatusFailed          = "FAILED"           // 支付失败（虚拟账户超时等）
	PaymentStatusRefunded        = "REFUNDED"         // 全额退款
	PaymentStatusPartialRefunded = "PARTIAL_REFUNDED" // 部分退款
)

// IsPaymentSettled 支付是否已结算（幂等守卫判定条件）
// 处于这些状态时重复到达的 webhook 必须静默跳过，不算错误
func IsPaymentSettled(status string) bool {
	switch status {
	case PaymentStatusSuccess, PaymentStatusRefunded, PaymentStatusPartialRefunded:
		return true
	}
	return false
}

// ErrAmountMismatch 网关实付金额与本地应付金额不一致
// 【重要】该错误永远不自动修正，必须上报后人工介入
var ErrAmountMismatch = errors.New("支付金额与应付金额不一致")

// ============================================================================
// 支付信息（每个结算对象同一时刻只存在一条有效记录，1:1）
// TotalAmount 创建后不可变更
// ============================================================================

// AdPaymentInfo 广告位费用记录
// TotalAmount = TotalDay × FeePerDay
type AdPaymentInfo struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetID    int64      `gorm:"uniqueIndex;not null" json:"target_id"` // 广告ID
	MerchantUID string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"merchant_uid"`
	ImpUID      string     `gorm:"type:varchar(64);index" json:"imp_uid"` // 网关支付号，确认后回填
	TotalDay    int        `gorm:"not null" json:"total_day"`             // 投放天数
	FeePerDay   int64      `gorm:"not null" json:"fee_per_day"`           // 每日费用（最小货币单位）
	TotalAmount int64      `gorm:"not null" json:"total_amount"`
	Status      string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	PaidAt      *time.Time `json:"paid_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AdPaymentInfo) TableName() string {
	return "ad_payment_info"
}

// ExpoPaymentInfo 展会保证金/使用费记录
// TotalAmount = Deposit[+PremiumDeposit] + TotalDay × DailyUsageFee
type ExpoPaymentInfo struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetID       int64      `gorm:"uniqueIndex;not null" json:"target_id"` // 展会ID
	MerchantUID    string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"merchant_uid"`
	ImpUID         string     `gorm:"type:varchar(64);index" json:"imp_uid"`
	Deposit        int64      `gorm:"not null" json:"deposit"`                   // 保证金
	PremiumDeposit int64      `gorm:"not null;default:0" json:"premium_deposit"` // 优选展位加价
	TotalDay       int        `gorm:"not null" json:"total_day"`
	DailyUsageFee  int64      `gorm:"not null" json:"daily_usage_fee"`
	CommissionRate float64    `gorm:"not null;default:0" json:"commission_rate"` // 销售佣金比例
	TotalAmount    int64      `gorm:"not null" json:"total_amount"`
	Status         string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExpoPaymentInfo) TableName() string {
	return "expo_payment_info"
}

// ReservationPaymentInfo 门票预约支付记录（含会员里程抵扣）
// 里程增减只在支付成功时生效，且仅限会员用户
type ReservationPaymentInfo struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetID    int64      `gorm:"uniqueIndex;not null" json:"target_id"` // 预约ID
	MerchantUID string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"merchant_uid"`
	ImpUID      string     `gorm:"type:varchar(64);index" json:"imp_uid"`
	UsedMileage int64      `gorm:"not null;default:0" json:"used_mileage"`  // 支付时抵扣的里程
	SavedMileage int64     `gorm:"not null;default:0" json:"saved_mileage"` // 支付成功后累积的里程
	TotalAmount int64      `gorm:"not null" json:"total_amount"`
	Status      string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	PaidAt      *time.Time `json:"paid_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReservationPaymentInfo) TableName() string {
	return "reservation_payment_info"
}
