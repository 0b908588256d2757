package model

import (
	"time"
)

// ============================================================================
// 广告位实体与状态机
// ============================================================================

const (
	AdStatusPendingApproval = "PENDING_APPROVAL" // 待审核
	AdStatusPendingPayment  = "PENDING_PAYMENT"  // 审核通过，待支付
	AdStatusPendingPublish  = "PENDING_PUBLISH"  // 已支付，待上线
	AdStatusPublished       = "PUBLISHED"        // 投放中
	AdStatusCompleted       = "COMPLETED"        // 投放结束
	AdStatusPendingCancel   = "PENDING_CANCEL"   // 取消申请中
	AdStatusCancelled       = "CANCELLED"        // 已取消（退款完成）
	AdStatusRejected        = "REJECTED"         // 审核驳回
)

// 广告状态机操作名
const (
	AdOpApprove        = "approve"
	AdOpReject         = "reject"
	AdOpPaymentSuccess = "paymentSuccess"
	AdOpPublish        = "publish"
	AdOpRequestRefund  = "requestRefund"
	AdOpCancel         = "cancel"
	AdOpDenyCancel     = "denyCancel"
	AdOpComplete       = "complete"
)

// adTransitions 广告状态迁移表（denyCancel 的目标状态依赖日期，单独处理）
var adTransitions = transitionTable{
	AdOpApprove: {AdStatusPendingApproval: AdStatusPendingPayment},
	AdOpReject: {
		AdStatusPendingApproval: AdStatusRejected,
		AdStatusPendingPayment:  AdStatusRejected,
	},
	AdOpPaymentSuccess: {AdStatusPendingPayment: AdStatusPendingPublish},
	AdOpPublish:        {AdStatusPendingPublish: AdStatusPublished},
	AdOpRequestRefund: {
		AdStatusPendingPublish: AdStatusPendingCancel,
		AdStatusPublished:      AdStatusPendingCancel,
	},
	AdOpCancel: {
		AdStatusPublished:     AdStatusCancelled,
		AdStatusPendingCancel: AdStatusCancelled,
	},
	AdOpComplete: {AdStatusPublished: AdStatusCompleted},
}

// NextAdStatus 广告状态迁移的唯一校验入口
func NextAdStatus(current, op string) (string, error) {
	return adTransitions.next("advertisement", op, current)
}

// NextAdStatusDenyCancel 驳回取消申请，目标状态按投放窗口和当前时间三选一
func NextAdStatusDenyCancel(current string, now, startDate, endDate time.Time) (string, error) {
	if current != AdStatusPendingCancel {
		return "", &InvalidTransitionError{Entity: "advertisement", Op: AdOpDenyCancel, Current: current}
	}
	return denyCancelDestination(now, startDate, endDate,
		AdStatusPendingPublish, AdStatusPublished, AdStatusCompleted), nil
}

// Advertisement 广告位
// 状态只能通过状态机操作变更，禁止直接字段赋值
type Advertisement struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	ImageURL  string    `gorm:"type:varchar(512)" json:"image_url"`
	LinkURL   string    `gorm:"type:varchar(512)" json:"link_url"`
	StartDate time.Time `gorm:"not null;index" json:"start_date"` // 投放开始日
	EndDate   time.Time `gorm:"not null;index" json:"end_date"`   // 投放结束日
	Status    string    `gorm:"type:varchar(20);index;not null;default:PENDING_APPROVAL" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Advertisement) TableName() string {
	return "advertisement"
}
