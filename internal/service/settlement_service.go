package service

import (
	"context"
	"errors"
	"fmt"

	"freelancepay/internal/model"

	"gorm.io/gorm"
)

// SettlementService 订单完成后把订单金额结算到自由职业者钱包
type SettlementService struct {
	ledger *LedgerService
}

func NewSettlementService(ledger *LedgerService) *SettlementService {
	return &SettlementService{ledger: ledger}
}

func settlementKey(orderNo string) string {
	return "settle:" + orderNo
}

// Settle 必须和订单进入 completed 的条件更新在同一个事务里调用。
// 返回 false 表示该订单已经结算过，本次不入账。
func (s *SettlementService) Settle(ctx context.Context, tx *gorm.DB, order *model.Order) (bool, error) {
	_, err := s.ledger.Credit(ctx, tx, order.FreelancerID, order.Amount, LedgerEntry{
		IdempotencyKey: settlementKey(order.OrderNo),
		RefNo:          order.OrderNo,
		Type:           model.TransactionTypeSettlement,
		Remark:         fmt.Sprintf("订单结算-%s", order.OrderNo),
	})
	if err != nil {
		if errors.Is(err, errEntryExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
