package repository

import (
	"context"
	"errors"
	"time"

	"freelancepay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound      = errors.New("订单不存在")
	ErrOrderStatusInvalid = errors.New("订单状态不合法")
	ErrOrderStateChanged  = errors.New("订单状态已被修改")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return pick(r.db, tx).WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, tx *gorm.DB, orderNo string) (*model.Order, error) {
	var order model.Order
	err := pick(r.db, tx).WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// StatusChange 一次状态变更，From/Version 取自变更前读到的订单
type StatusChange struct {
	OrderNo       string
	From          model.OrderStatus
	Version       int
	To            model.OrderStatus
	PaymentStatus model.PaymentStatus // 为空表示不修改
	At            time.Time
}

// UpdateStatus 条件更新订单状态（CAS），只修改状态相关字段，金额等字段不会被写入。
// 条件不满足时返回 ErrOrderStateChanged。
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, change StatusChange) error {
	if change.From != change.To && !model.CanTransitionTo(change.From, change.To) {
		return ErrOrderStatusInvalid
	}

	updates := map[string]interface{}{
		"status":  change.To,
		"version": gorm.Expr("version + 1"),
	}
	if change.PaymentStatus != "" {
		updates["payment_status"] = change.PaymentStatus
	}

	at := change.At
	if at.IsZero() {
		at = time.Now()
	}
	switch {
	case change.From == change.To:
	case change.To == model.OrderStatusPaid:
		updates["paid_at"] = &at
	case change.To == model.OrderStatusDelivered:
		updates["delivered_at"] = &at
	case change.To == model.OrderStatusCompleted:
		updates["completed_at"] = &at
	case change.To == model.OrderStatusCancelled:
		updates["cancelled_at"] = &at
	}

	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ? AND version = ?", change.OrderNo, change.From, change.Version).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStateChanged
	}

	return nil
}

func (r *OrderRepository) CreateStatusLog(ctx context.Context, tx *gorm.DB, log *model.OrderStatusLog) error {
	return pick(r.db, tx).WithContext(ctx).Create(log).Error
}

func (r *OrderRepository) ListStatusLogs(ctx context.Context, orderNo string) ([]*model.OrderStatusLog, error) {
	var logs []*model.OrderStatusLog
	err := r.db.WithContext(ctx).
		Where("order_no = ?", orderNo).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

// GetStalePendingOrders 查询创建时间早于 before 仍未支付的订单
func (r *OrderRepository) GetStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.OrderStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// ListByParty 查询用户作为买方或卖方的订单
func (r *OrderRepository) ListByParty(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	page, pageSize = normalizePage(page, pageSize)

	query := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("client_id = ? OR freelancer_id = ?", userID, userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}
