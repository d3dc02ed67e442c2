package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

const (
	PaymentMethodUPI  = "UPI"
	PaymentMethodBank = "Bank"
)

func ValidPaymentMethod(method string) bool {
	return method == PaymentMethodUPI || method == PaymentMethodBank
}

// Withdrawal 提现申请，创建时即扣减余额，驳回时退回
type Withdrawal struct {
	ID             int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo   string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	UserID         int64            `gorm:"index;not null" json:"user_id"`
	Amount         decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"amount"`
	PaymentMethod  string           `gorm:"type:varchar(10);not null" json:"payment_method"`
	PaymentDetails string           `gorm:"type:varchar(256);not null" json:"payment_details"`
	Status         WithdrawalStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	ReviewNote     string           `gorm:"type:varchar(256)" json:"review_note,omitempty"`
	ReviewedBy     *int64           `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt      time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawal"
}
