package model

import (
	"errors"
	"time"
)

const (
	RefundStatusPending  = "PENDING"  // 已申请，待管理员处理
	RefundStatusRefunded = "REFUNDED" // 退款完成
	RefundStatusRejected = "REJECTED" // 申请被驳回
)

// ErrRefundNotAllowed 计算出的可退金额不为正数（没有可退余额）
var ErrRefundNotAllowed = errors.New("当前没有可退金额")

// Refund 退款单
// 一个结算对象一生可以发起多次申请，但同一时刻至多一条处于 PENDING/REFUNDED，
// 由它驱动 PaymentInfo 的 REFUNDED / PARTIAL_REFUNDED 状态
type Refund struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundNo      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"refund_no"`
	TargetType    TargetType `gorm:"type:varchar(20);index:idx_refund_target;not null" json:"target_type"`
	TargetID      int64      `gorm:"index:idx_refund_target;not null" json:"target_id"`
	Amount        int64      `gorm:"not null;default:0" json:"amount"` // 实退金额，完成时回填
	IsPartial     bool       `gorm:"not null;default:false" json:"is_partial"`
	Reason        string     `gorm:"type:varchar(256)" json:"reason"`
	Status        string     `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RefundHolder  string     `gorm:"type:varchar(64)" json:"refund_holder"` // 虚拟账户退款收款人
	RefundBank    string     `gorm:"type:varchar(64)" json:"refund_bank"`
	RefundAccount string     `gorm:"type:varchar(64)" json:"refund_account"`
	RefundTel     string     `gorm:"type:varchar(32)" json:"refund_tel"`
	RequestedAt   time.Time  `gorm:"not null" json:"requested_at"`
	RefundedAt    *time.Time `json:"refunded_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Refund) TableName() string {
	return "refund"
}
