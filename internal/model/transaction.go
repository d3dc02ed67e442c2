package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeSettlement     = "SETTLEMENT"      // 订单完成结算入账
	TransactionTypeWithdraw       = "WITHDRAW"        // 提现扣款
	TransactionTypeWithdrawRefund = "WITHDRAW_REFUND" // 提现驳回退回
)

// AccountTransaction 账户流水表
//
// 【重要】流水只追加，不修改，不删除。
// IdempotencyKey 唯一索引保证同一笔业务只入账一次，例如 settle:<order_no>。
type AccountTransaction struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo  string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	IdempotencyKey string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	UserID         int64           `gorm:"index;not null" json:"user_id"`
	RefNo          string          `gorm:"type:varchar(64);index;not null" json:"ref_no"` // 关联订单号或提现单号
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`     // 正数入账，负数出账
	Type           string          `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_before"`
	BalanceAfter   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	Remark         string          `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
