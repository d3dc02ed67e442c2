package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// 参与方角色，与 JWT 中的 role 对应
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
	RoleSystem     = "system"
)

var ValidStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusCancelled},
}

// 每个目标状态允许由订单中的哪一方发起，admin 和 system 不受此表限制
var transitionParties = map[OrderStatus][]string{
	OrderStatusPaid:       {RoleClient},
	OrderStatusInProgress: {RoleFreelancer},
	OrderStatusDelivered:  {RoleFreelancer},
	OrderStatusCompleted:  {RoleClient},
	OrderStatusCancelled:  {RoleClient, RoleFreelancer},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusInProgress,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

func CanTransitionTo(currentStatus, targetStatus OrderStatus) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// CanPartyTransition 判断订单中的某一方（client/freelancer）能否把订单从 from 推进到 to。
// 开工之后（in_progress、delivered）的取消只能由 admin 处理。
func CanPartyTransition(party string, from, to OrderStatus) bool {
	if party == RoleAdmin || party == RoleSystem {
		return true
	}
	if to == OrderStatusCancelled && (from == OrderStatusInProgress || from == OrderStatusDelivered) {
		return false
	}
	for _, p := range transitionParties[to] {
		if p == party {
			return true
		}
	}
	return false
}

// Order 服务订单，金额在创建时从服务价格快照，之后不再修改
type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	ClientID      int64           `gorm:"index;not null" json:"client_id"`
	FreelancerID  int64           `gorm:"index;not null" json:"freelancer_id"`
	ListingID     int64           `gorm:"index;not null" json:"service_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status        OrderStatus     `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);not null" json:"payment_status"`
	Requirements  string          `gorm:"type:text" json:"requirements,omitempty"`
	Version       int             `gorm:"not null;default:0" json:"version"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CancelledAt   *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "marketplace_order"
}

// PartyOf 返回 userID 在订单中的身份，不是订单参与方时返回空字符串
func (o *Order) PartyOf(userID int64) string {
	switch userID {
	case o.ClientID:
		return RoleClient
	case o.FreelancerID:
		return RoleFreelancer
	}
	return ""
}

// OrderStatusLog 订单状态变更历史，只追加
type OrderStatusLog struct {
	ID         int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo    string      `gorm:"type:varchar(64);index;not null" json:"order_no"`
	FromStatus OrderStatus `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ActorID    int64       `gorm:"not null" json:"actor_id"`
	ActorRole  string      `gorm:"type:varchar(20);not null" json:"actor_role"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderStatusLog) TableName() string {
	return "order_status_log"
}
