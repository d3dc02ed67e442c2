// Package testutil 测试用的数据库和数据构造
package testutil

import (
	"errors"
	"fmt"
	"testing"

	"freelancepay/internal/infrastructure/database"
	"freelancepay/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 每个测试一个独立的内存 sqlite 库，已完成迁移。
// 只开一个连接，事务内的查询必须走 tx，否则会互相等待。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func CreateListing(t *testing.T, db *gorm.DB, freelancerID int64, price string) *model.Listing {
	t.Helper()

	listing := &model.Listing{
		FreelancerID: freelancerID,
		Title:        "Logo design",
		Price:        decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

// SetBalance 直接写入账户余额，用于准备测试数据
func SetBalance(t *testing.T, db *gorm.DB, userID int64, balance string) {
	t.Helper()

	account := &model.Account{UserID: userID, Balance: decimal.RequireFromString(balance)}
	require.NoError(t, db.Create(account).Error)
}

func Balance(t *testing.T, db *gorm.DB, userID int64) decimal.Decimal {
	t.Helper()

	var account model.Account
	err := db.Where("user_id = ?", userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return account.Balance
}

// AssertDecimal 按数值比较，忽略精度差异
func AssertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
