package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing 自由职业者发布的服务（由服务模块维护，这里只读）
type Listing struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	FreelancerID int64           `gorm:"index;not null" json:"freelancer_id"`
	Title        string          `gorm:"type:varchar(100);not null" json:"title"`
	Price        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Listing) TableName() string {
	return "service"
}
