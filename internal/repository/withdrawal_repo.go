package repository

import (
	"context"
	"errors"
	"time"

	"freelancepay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWithdrawalNotFound     = errors.New("提现单不存在")
	ErrWithdrawalStateChanged = errors.New("提现单状态已被修改")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, w *model.Withdrawal) error {
	return pick(r.db, tx).WithContext(ctx).Create(w).Error
}

func (r *WithdrawalRepository) GetByNo(ctx context.Context, tx *gorm.DB, withdrawalNo string) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := pick(r.db, tx).WithContext(ctx).Where("withdrawal_no = ?", withdrawalNo).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Review 把提现单从 pending 改为终态，条件不满足时返回 ErrWithdrawalStateChanged
func (r *WithdrawalRepository) Review(ctx context.Context, tx *gorm.DB, withdrawalNo string, to model.WithdrawalStatus, reviewerID int64, note string, at time.Time) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("withdrawal_no = ? AND status = ?", withdrawalNo, model.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":      to,
			"review_note": note,
			"reviewed_by": reviewerID,
			"reviewed_at": &at,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWithdrawalStateChanged
	}

	return nil
}

func (r *WithdrawalRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Withdrawal, error) {
	var list []*model.Withdrawal
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error
	return list, err
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status model.WithdrawalStatus, limit int) ([]*model.Withdrawal, error) {
	var list []*model.Withdrawal
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
