package service

import (
	"context"
	"errors"
	"fmt"

	"freelancepay/internal/model"
	"freelancepay/internal/repository"
	"freelancepay/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// errEntryExists 幂等键对应的流水已经存在，调用方按已处理对待
var errEntryExists = errors.New("流水已存在")

// LedgerEntry 一次余额变动要落的流水信息
type LedgerEntry struct {
	IdempotencyKey string
	RefNo          string
	Type           string
	Remark         string
}

type LedgerService struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// GetBalance 没有账户的用户余额为 0
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	account, err := s.accountRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, wrapError(KindInternal, err, "failed to load balance")
	}
	return account.Balance, nil
}

// Credit 入账，必须在事务里调用。
// 同一个幂等键只会入账一次，重复调用返回 errEntryExists。
func (s *LedgerService) Credit(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal, entry LedgerEntry) (*model.AccountTransaction, error) {
	if !amount.IsPositive() {
		return nil, newError(KindInvalidArgument, "amount must be positive")
	}

	existing, err := s.transactionRepo.GetByIdempotencyKey(ctx, tx, entry.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}
	if existing != nil {
		return existing, errEntryExists
	}

	// 不用快照读判断账户是否存在，并发首次入账时可能读不到对方刚提交的账户
	if err := s.accountRepo.CreateIfAbsent(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("锁定账户失败: %w", err)
	}

	if err := s.accountRepo.Increase(ctx, tx, userID, amount); err != nil {
		return nil, fmt.Errorf("入账失败: %w", err)
	}

	trans := &model.AccountTransaction{
		TransactionNo:  idgen.GenerateTransactionNo(),
		IdempotencyKey: entry.IdempotencyKey,
		UserID:         userID,
		RefNo:          entry.RefNo,
		Amount:         amount,
		Type:           entry.Type,
		BalanceBefore:  account.Balance,
		BalanceAfter:   account.Balance.Add(amount),
		Remark:         entry.Remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	return trans, nil
}

// Debit 出账，必须在事务里调用。余额不足返回 InsufficientBalance，版本冲突返回 Conflict。
func (s *LedgerService) Debit(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal, entry LedgerEntry) (*model.AccountTransaction, error) {
	if !amount.IsPositive() {
		return nil, newError(KindInvalidArgument, "amount must be positive")
	}

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, newError(KindInsufficientBalance, "Insufficient balance")
		}
		return nil, fmt.Errorf("锁定账户失败: %w", err)
	}

	if account.Balance.LessThan(amount) {
		return nil, newError(KindInsufficientBalance, "Insufficient balance")
	}

	if err := s.accountRepo.Deduct(ctx, tx, userID, amount, account.Version); err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			return nil, newError(KindInsufficientBalance, "Insufficient balance")
		}
		if errors.Is(err, repository.ErrOptimisticLock) {
			return nil, wrapError(KindConflict, err, "wallet was modified concurrently, please retry")
		}
		return nil, fmt.Errorf("扣款失败: %w", err)
	}

	trans := &model.AccountTransaction{
		TransactionNo:  idgen.GenerateTransactionNo(),
		IdempotencyKey: entry.IdempotencyKey,
		UserID:         userID,
		RefNo:          entry.RefNo,
		Amount:         amount.Neg(),
		Type:           entry.Type,
		BalanceBefore:  account.Balance,
		BalanceAfter:   account.Balance.Sub(amount),
		Remark:         entry.Remark,
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}

	return trans, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	list, total, err := s.transactionRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, wrapError(KindInternal, err, "failed to list transactions")
	}
	return list, total, nil
}

// asServiceError 已分类的错误原样返回，其余归为 Internal
func asServiceError(err error, message string) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return wrapError(KindInternal, err, message)
}
