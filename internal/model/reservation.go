package model

import (
	"time"
)

// ============================================================================
// 门票预约 / 入场券 / 票务库存
// ============================================================================

const (
	ReservationStatusPendingDeposit = "PENDING_DEPOSIT" // 虚拟账户入金等待中
	ReservationStatusConfirmed      = "CONFIRMED"       // 支付完成，预约成立
	ReservationStatusCancelled      = "CANCELLED"       // 已取消（退款或入金超时）
)

// Reservation 门票预约
// MemberID 为空表示非会员（游客）购买：不参与里程增减，也不发支付确认通知
type Reservation struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ExpoID          int64      `gorm:"index;not null" json:"expo_id"`
	TicketOptionID  int64      `gorm:"index;not null" json:"ticket_option_id"`
	MemberID        *int64     `gorm:"index" json:"member_id"`
	GuestName       string     `gorm:"type:varchar(64)" json:"guest_name"`
	GuestTel        string     `gorm:"type:varchar(32)" json:"guest_tel"`
	Quantity        int        `gorm:"not null" json:"quantity"`
	Status          string     `gorm:"type:varchar(20);index;not null;default:PENDING_DEPOSIT" json:"status"`
	DepositDeadline *time.Time `gorm:"index" json:"deposit_deadline"` // 虚拟账户入金截止，卡支付为空
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservation"
}

// IsMember 是否会员购买
func (r *Reservation) IsMember() bool {
	return r.MemberID != nil
}

// ----------------------------------------------------------------------------

const (
	TicketStatusIssued  = "ISSUED"  // 已签发，未到可用时间
	TicketStatusActive  = "ACTIVE"  // 可入场
	TicketStatusExpired = "EXPIRED" // 已过期
)

// AdmissionTicket 入场券，支付成功时签发
// 激活和过期由定时扫描通过条件批量更新驱动
type AdmissionTicket struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"ticket_no"`
	ReservationID int64     `gorm:"index;not null" json:"reservation_id"`
	Status        string    `gorm:"type:varchar(20);index;not null;default:ISSUED" json:"status"`
	ActivateAt    time.Time `gorm:"not null;index" json:"activate_at"` // 展会开始时间
	ExpireAt      time.Time `gorm:"not null;index" json:"expire_at"`   // 展会结束时间
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AdmissionTicket) TableName() string {
	return "admission_ticket"
}

// ----------------------------------------------------------------------------

// TicketOption 展会的一种票，Remaining 在预约时扣减、入金超时取消时回补
type TicketOption struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ExpoID    int64     `gorm:"index;not null" json:"expo_id"`
	Name      string    `gorm:"type:varchar(64);not null" json:"name"`
	Price     int64     `gorm:"not null" json:"price"`
	Remaining int       `gorm:"not null" json:"remaining"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TicketOption) TableName() string {
	return "ticket_option"
}

// ----------------------------------------------------------------------------

// Member 会员账户，这里只承载里程余额
type Member struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Mileage   int64     `gorm:"not null;default:0" json:"mileage"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string {
	return "member"
}
