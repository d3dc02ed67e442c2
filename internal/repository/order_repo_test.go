package repository

import (
	"context"
	"testing"
	"time"

	"freelancepay/internal/model"
	"freelancepay/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingOrder(t *testing.T, repo *OrderRepository, orderNo string) *model.Order {
	t.Helper()

	order := &model.Order{
		OrderNo:       orderNo,
		ClientID:      1,
		FreelancerID:  2,
		ListingID:     1,
		Amount:        decimal.NewFromInt(500),
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), nil, order))
	return order
}

func TestOrderRepository_UpdateStatus(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	order := newPendingOrder(t, repo, "ORD1")

	err := repo.UpdateStatus(ctx, nil, StatusChange{
		OrderNo:       order.OrderNo,
		From:          model.OrderStatusPending,
		Version:       order.Version,
		To:            model.OrderStatusPaid,
		PaymentStatus: model.PaymentStatusCompleted,
	})
	require.NoError(t, err)

	got, err := repo.GetByOrderNo(ctx, nil, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, got.Status)
	assert.Equal(t, model.PaymentStatusCompleted, got.PaymentStatus)
	assert.Equal(t, order.Version+1, got.Version)
	assert.NotNil(t, got.PaidAt)
	assert.True(t, decimal.NewFromInt(500).Equal(got.Amount))

	// 旧版本号再写一次必须失败
	err = repo.UpdateStatus(ctx, nil, StatusChange{
		OrderNo: order.OrderNo,
		From:    model.OrderStatusPaid,
		Version: order.Version,
		To:      model.OrderStatusInProgress,
	})
	assert.ErrorIs(t, err, ErrOrderStateChanged)

	err = repo.UpdateStatus(ctx, nil, StatusChange{
		OrderNo: order.OrderNo,
		From:    model.OrderStatusPaid,
		Version: got.Version,
		To:      model.OrderStatusCompleted,
	})
	assert.ErrorIs(t, err, ErrOrderStatusInvalid)
}

func TestOrderRepository_GetByOrderNoNotFound(t *testing.T) {
	repo := NewOrderRepository(testutil.NewDB(t))

	_, err := repo.GetByOrderNo(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderRepository_GetStalePendingOrders(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	newPendingOrder(t, repo, "ORD-OLD")
	newPendingOrder(t, repo, "ORD-NEW")
	require.NoError(t, db.Model(&model.Order{}).
		Where("order_no = ?", "ORD-OLD").
		UpdateColumn("created_at", time.Now().Add(-3*time.Hour)).Error)

	orders, err := repo.GetStalePendingOrders(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-OLD", orders[0].OrderNo)
}

func TestOrderRepository_ListByParty(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	for _, no := range []string{"ORD1", "ORD2", "ORD3"} {
		newPendingOrder(t, repo, no)
	}

	orders, total, err := repo.ListByParty(ctx, 2, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, orders, 1)

	_, total, err = repo.ListByParty(ctx, 7, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}
