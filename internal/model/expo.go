package model

import (
	"time"
)

// ============================================================================
// 展会实体与状态机（结构上与广告位同构，各自独立一张迁移表）
// ============================================================================

const (
	ExpoStatusPendingApproval = "PENDING_APPROVAL"
	ExpoStatusPendingPayment  = "PENDING_PAYMENT"
	ExpoStatusPendingPublish  = "PENDING_PUBLISH"
	ExpoStatusPublished       = "PUBLISHED"
	ExpoStatusCompleted       = "COMPLETED"
	ExpoStatusPendingCancel   = "PENDING_CANCEL"
	ExpoStatusCancelled       = "CANCELLED"
	ExpoStatusRejected        = "REJECTED"
)

const (
	ExpoOpApprove        = "approve"
	ExpoOpReject         = "reject"
	ExpoOpPaymentSuccess = "paymentSuccess"
	ExpoOpPublish        = "publish"
	ExpoOpRequestRefund  = "requestRefund"
	ExpoOpCancel         = "cancel"
	ExpoOpDenyCancel     = "denyCancel"
	ExpoOpComplete       = "complete"
)

var expoTransitions = transitionTable{
	ExpoOpApprove: {ExpoStatusPendingApproval: ExpoStatusPendingPayment},
	ExpoOpReject: {
		ExpoStatusPendingApproval: ExpoStatusRejected,
		ExpoStatusPendingPayment:  ExpoStatusRejected,
	},
	ExpoOpPaymentSuccess: {ExpoStatusPendingPayment: ExpoStatusPendingPublish},
	ExpoOpPublish:        {ExpoStatusPendingPublish: ExpoStatusPublished},
	ExpoOpRequestRefund: {
		ExpoStatusPendingPublish: ExpoStatusPendingCancel,
		ExpoStatusPublished:      ExpoStatusPendingCancel,
	},
	ExpoOpCancel: {
		ExpoStatusPublished:     ExpoStatusCancelled,
		ExpoStatusPendingCancel: ExpoStatusCancelled,
	},
	ExpoOpComplete: {ExpoStatusPublished: ExpoStatusCompleted},
}

// NextExpoStatus 展会状态迁移的唯一校验入口
func NextExpoStatus(current, op string) (string, error) {
	return expoTransitions.next("expo", op, current)
}

// NextExpoStatusDenyCancel 驳回取消申请，按展期和当前时间决定回到哪个状态
func NextExpoStatusDenyCancel(current string, now, startDate, endDate time.Time) (string, error) {
	if current != ExpoStatusPendingCancel {
		return "", &InvalidTransitionError{Entity: "expo", Op: ExpoOpDenyCancel, Current: current}
	}
	return denyCancelDestination(now, startDate, endDate,
		ExpoStatusPendingPublish, ExpoStatusPublished, ExpoStatusCompleted), nil
}

// Expo 展会
type Expo struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	Location  string    `gorm:"type:varchar(256)" json:"location"`
	IsPremium bool      `gorm:"not null;default:false" json:"is_premium"` // 优选展位
	StartDate time.Time `gorm:"not null;index" json:"start_date"`         // 展期开始日
	EndDate   time.Time `gorm:"not null;index" json:"end_date"`
	Status    string    `gorm:"type:varchar(20);index;not null;default:PENDING_APPROVAL" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Expo) TableName() string {
	return "expo"
}
