package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"freelancepay/internal/config"
	"freelancepay/internal/infrastructure/lock"
	"freelancepay/internal/logger"
	"freelancepay/internal/model"
	"freelancepay/internal/repository"
	"freelancepay/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const pendingWithdrawalLimit = 200

type WithdrawalRequest struct {
	Amount         decimal.Decimal
	PaymentMethod  string
	PaymentDetails string
}

type WithdrawalService struct {
	db             *gorm.DB
	cfg            *config.Config
	locker         lock.Locker
	notifier       Notifier
	ledger         *LedgerService
	withdrawalRepo *repository.WithdrawalRepository
}

func NewWithdrawalService(db *gorm.DB, cfg *config.Config, locker lock.Locker, notifier Notifier, ledger *LedgerService) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		cfg:            cfg,
		locker:         locker,
		notifier:       notifier,
		ledger:         ledger,
		withdrawalRepo: repository.NewWithdrawalRepository(db),
	}
}

// RequestWithdrawal 申请提现，余额在同一个事务里扣减，审核驳回时退回
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID int64, req WithdrawalRequest) (*model.Withdrawal, error) {
	minAmount := s.cfg.Business.MinWithdrawal()
	if req.Amount.LessThan(minAmount) {
		return nil, newError(KindInvalidArgument, "Minimum withdrawal amount is ₹%s", minAmount.String())
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, newError(KindInvalidArgument, "amount can have at most two decimal places")
	}
	if !model.ValidPaymentMethod(req.PaymentMethod) {
		return nil, newError(KindInvalidArgument, "paymentMethod must be UPI or Bank")
	}
	details := strings.TrimSpace(req.PaymentDetails)
	if details == "" {
		return nil, newError(KindInvalidArgument, "paymentDetails is required")
	}

	release, err := s.locker.Acquire(ctx, lock.WalletKey(userID))
	if err != nil {
		return nil, wrapError(KindConflict, err, "wallet is busy, please retry")
	}
	defer release()

	withdrawal := &model.Withdrawal{
		WithdrawalNo:   idgen.GenerateWithdrawalNo(),
		UserID:         userID,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: details,
		Status:         model.WithdrawalStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.ledger.Debit(ctx, tx, userID, req.Amount, LedgerEntry{
			IdempotencyKey: "withdraw:" + withdrawal.WithdrawalNo,
			RefNo:          withdrawal.WithdrawalNo,
			Type:           model.TransactionTypeWithdraw,
			Remark:         fmt.Sprintf("提现-%s", req.PaymentMethod),
		})
		if err != nil {
			return err
		}

		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return fmt.Errorf("创建提现单失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "failed to request withdrawal")
	}

	log := logger.Component("withdrawal")
	log.Info().
		Str("withdrawal_no", withdrawal.WithdrawalNo).
		Int64("user_id", userID).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("提现申请成功")

	notify(ctx, s.notifier, Notification{
		RecipientID: userID,
		Type:        model.NotificationTypePayment,
		Content:     fmt.Sprintf("Withdrawal request for ₹%s submitted.", req.Amount.String()),
		Link:        "/dashboard",
	})

	return withdrawal, nil
}

// ReviewWithdrawal 管理员审核提现，驳回时在同一个事务里退回余额
func (s *WithdrawalService) ReviewWithdrawal(ctx context.Context, withdrawalNo string, actor Actor, status model.WithdrawalStatus, note string) (*model.Withdrawal, error) {
	if actor.Role != model.RoleAdmin {
		return nil, newError(KindForbidden, "Only admins can review withdrawals")
	}
	if status != model.WithdrawalStatusApproved && status != model.WithdrawalStatusRejected {
		return nil, newError(KindInvalidArgument, "status must be approved or rejected")
	}

	release, err := s.locker.Acquire(ctx, lock.WithdrawalKey(withdrawalNo))
	if err != nil {
		return nil, wrapError(KindConflict, err, "withdrawal is busy, please retry")
	}
	defer release()

	withdrawal, err := s.loadWithdrawal(ctx, withdrawalNo)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != model.WithdrawalStatusPending {
		return nil, newError(KindInvalidTransition, "withdrawal has already been %s", withdrawal.Status)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.withdrawalRepo.Review(ctx, tx, withdrawalNo, status, actor.ID, note, time.Now()); err != nil {
			return err
		}

		if status != model.WithdrawalStatusRejected {
			return nil
		}

		_, err := s.ledger.Credit(ctx, tx, withdrawal.UserID, withdrawal.Amount, LedgerEntry{
			IdempotencyKey: "withdraw-refund:" + withdrawal.WithdrawalNo,
			RefNo:          withdrawal.WithdrawalNo,
			Type:           model.TransactionTypeWithdrawRefund,
			Remark:         "提现驳回退回",
		})
		if err != nil && !errors.Is(err, errEntryExists) {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalStateChanged) {
			return nil, newError(KindInvalidTransition, "withdrawal has already been reviewed")
		}
		return nil, asServiceError(err, "failed to review withdrawal")
	}

	updated, err := s.loadWithdrawal(ctx, withdrawalNo)
	if err != nil {
		return nil, err
	}

	log := logger.Component("withdrawal")
	log.Info().
		Str("withdrawal_no", withdrawalNo).
		Str("status", string(status)).
		Int64("reviewer", actor.ID).
		Msg("提现审核完成")

	content := fmt.Sprintf("Your withdrawal of ₹%s has been approved.", updated.Amount.String())
	if status == model.WithdrawalStatusRejected {
		content = fmt.Sprintf("Your withdrawal of ₹%s was rejected and the amount has been returned to your wallet.", updated.Amount.String())
	}
	notify(ctx, s.notifier, Notification{
		RecipientID: updated.UserID,
		SenderID:    actor.senderID(),
		Type:        model.NotificationTypePayment,
		Content:     content,
		Link:        "/dashboard",
	})

	return updated, nil
}

func (s *WithdrawalService) ListWithdrawals(ctx context.Context, userID int64) ([]*model.Withdrawal, error) {
	list, err := s.withdrawalRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, wrapError(KindInternal, err, "failed to list withdrawals")
	}
	return list, nil
}

func (s *WithdrawalService) ListPendingWithdrawals(ctx context.Context, actor Actor) ([]*model.Withdrawal, error) {
	if actor.Role != model.RoleAdmin {
		return nil, newError(KindForbidden, "Only admins can review withdrawals")
	}
	list, err := s.withdrawalRepo.ListByStatus(ctx, model.WithdrawalStatusPending, pendingWithdrawalLimit)
	if err != nil {
		return nil, wrapError(KindInternal, err, "failed to list withdrawals")
	}
	return list, nil
}

func (s *WithdrawalService) loadWithdrawal(ctx context.Context, withdrawalNo string) (*model.Withdrawal, error) {
	withdrawal, err := s.withdrawalRepo.GetByNo(ctx, nil, withdrawalNo)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return nil, newError(KindNotFound, "Withdrawal not found")
		}
		return nil, wrapError(KindInternal, err, "failed to load withdrawal")
	}
	return withdrawal, nil
}
