package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelancepay/internal/config"
	"freelancepay/internal/infrastructure/lock"
	"freelancepay/internal/logger"
	"freelancepay/internal/model"
	"freelancepay/internal/repository"
	"freelancepay/pkg/idgen"

	"gorm.io/gorm"
)

// Actor 发起操作的用户，Role 取自 token
type Actor struct {
	ID   int64
	Role string
}

// SystemActor 后台任务使用的身份
var SystemActor = Actor{Role: model.RoleSystem}

func (a Actor) privileged() bool {
	return a.Role == model.RoleAdmin || a.Role == model.RoleSystem
}

func (a Actor) senderID() *int64 {
	if a.Role == model.RoleSystem {
		return nil
	}
	id := a.ID
	return &id
}

// TransitionRequest 为空的字段表示不修改
type TransitionRequest struct {
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
}

type OrderService struct {
	db          *gorm.DB
	cfg         *config.Config
	locker      lock.Locker
	notifier    Notifier
	orderRepo   *repository.OrderRepository
	listingRepo *repository.ListingRepository
	settlement  *SettlementService
}

func NewOrderService(db *gorm.DB, cfg *config.Config, locker lock.Locker, notifier Notifier, settlement *SettlementService) *OrderService {
	return &OrderService{
		db:          db,
		cfg:         cfg,
		locker:      locker,
		notifier:    notifier,
		orderRepo:   repository.NewOrderRepository(db),
		listingRepo: repository.NewListingRepository(db),
		settlement:  settlement,
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, clientID, listingID int64, requirements string) (*model.Order, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, newError(KindNotFound, "Service not found")
		}
		return nil, wrapError(KindInternal, err, "failed to load service")
	}

	if listing.FreelancerID == clientID {
		return nil, newError(KindInvalidOperation, "You cannot order your own service")
	}

	if !listing.Price.IsPositive() {
		return nil, newError(KindInvalidArgument, "service price must be positive")
	}

	order := &model.Order{
		OrderNo:       idgen.GenerateOrderNo(),
		ClientID:      clientID,
		FreelancerID:  listing.FreelancerID,
		ListingID:     listing.ID,
		Amount:        listing.Price.Round(2),
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		Requirements:  requirements,
	}
	if err := s.orderRepo.Create(ctx, nil, order); err != nil {
		return nil, wrapError(KindInternal, err, "failed to create order")
	}

	log := logger.Component("order")
	log.Info().
		Str("order_no", order.OrderNo).
		Int64("client_id", clientID).
		Str("amount", order.Amount.StringFixed(2)).
		Msg("订单创建成功")

	notify(ctx, s.notifier, Notification{
		RecipientID: order.FreelancerID,
		SenderID:    &clientID,
		Type:        model.NotificationTypeOrder,
		Content:     fmt.Sprintf("New order received for \"%s\".", listing.Title),
		Link:        "/dashboard",
	})

	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string, actor Actor) (*model.Order, error) {
	order, err := s.loadOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if !actor.privileged() && order.PartyOf(actor.ID) == "" {
		return nil, newError(KindForbidden, "Not authorized to access this order")
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	orders, total, err := s.orderRepo.ListByParty(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, wrapError(KindInternal, err, "failed to list orders")
	}
	return orders, total, nil
}

func (s *OrderService) ListStatusLogs(ctx context.Context, orderNo string) ([]*model.OrderStatusLog, error) {
	logs, err := s.orderRepo.ListStatusLogs(ctx, orderNo)
	if err != nil {
		return nil, wrapError(KindInternal, err, "failed to list order history")
	}
	return logs, nil
}

// Transition 推进订单状态或标记支付失败。
// 重复提交当前状态直接返回订单，不会重复结算和通知。
func (s *OrderService) Transition(ctx context.Context, orderNo string, actor Actor, req TransitionRequest) (*model.Order, error) {
	if err := validateTransitionRequest(req); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, lock.OrderKey(orderNo))
	if err != nil {
		return nil, wrapError(KindConflict, err, "order is busy, please retry")
	}
	defer release()

	order, err := s.loadOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	party := actor.Role
	if !actor.privileged() {
		party = order.PartyOf(actor.ID)
		if party == "" {
			return nil, newError(KindForbidden, "Not authorized to update this order")
		}
	}

	change, err := planTransition(order, party, req)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return order, nil
	}

	settled := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, *change); err != nil {
			return err
		}

		if change.From != change.To {
			statusLog := &model.OrderStatusLog{
				OrderNo:    order.OrderNo,
				FromStatus: change.From,
				ToStatus:   change.To,
				ActorID:    actor.ID,
				ActorRole:  party,
			}
			if err := s.orderRepo.CreateStatusLog(ctx, tx, statusLog); err != nil {
				return fmt.Errorf("记录状态变更失败: %w", err)
			}
		}

		if change.To == model.OrderStatusCompleted && change.From != change.To {
			ok, err := s.settlement.Settle(ctx, tx, order)
			if err != nil {
				return fmt.Errorf("订单结算失败: %w", err)
			}
			settled = ok
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrOrderStateChanged) {
			return s.resolveLostUpdate(ctx, orderNo, req)
		}
		return nil, asServiceError(err, "failed to update order")
	}

	updated, err := s.loadOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}

	log := logger.Component("order")
	log.Info().
		Str("order_no", orderNo).
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Str("payment_status", string(updated.PaymentStatus)).
		Str("party", party).
		Bool("settled", settled).
		Msg("订单状态变更")

	s.notifyTransition(ctx, updated, actor, party, change)
	if settled {
		notify(ctx, s.notifier, Notification{
			RecipientID: updated.FreelancerID,
			Type:        model.NotificationTypePayment,
			Content:     fmt.Sprintf("Payment of ₹%s for order %s credited to your wallet.", updated.Amount.StringFixed(2), updated.OrderNo),
			Link:        "/dashboard",
		})
	}

	return updated, nil
}

// CancelStaleOrders 取消超时未支付的订单，返回取消的数量
func (s *OrderService) CancelStaleOrders(ctx context.Context, limit int) (int, error) {
	// 超时时间不大于 0 表示不自动取消
	if s.cfg.Business.OrderTimeoutMinutes <= 0 {
		return 0, nil
	}
	timeout := time.Duration(s.cfg.Business.OrderTimeoutMinutes) * time.Minute
	orders, err := s.orderRepo.GetStalePendingOrders(ctx, time.Now().Add(-timeout), limit)
	if err != nil {
		return 0, wrapError(KindInternal, err, "failed to load stale orders")
	}

	log := logger.Component("order")
	cancelled := 0
	for _, order := range orders {
		_, err := s.Transition(ctx, order.OrderNo, SystemActor, TransitionRequest{Status: model.OrderStatusCancelled})
		if err != nil {
			log.Warn().Err(err).Str("order_no", order.OrderNo).Msg("超时订单取消失败")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

func (s *OrderService) loadOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, nil, orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, newError(KindNotFound, "Order not found")
		}
		return nil, wrapError(KindInternal, err, "failed to load order")
	}
	return order, nil
}

// resolveLostUpdate 条件更新没有命中时重新读取：已经是目标状态视为成功，否则返回冲突
func (s *OrderService) resolveLostUpdate(ctx context.Context, orderNo string, req TransitionRequest) (*model.Order, error) {
	order, err := s.loadOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if (req.Status == "" || order.Status == req.Status) &&
		(req.PaymentStatus == "" || order.PaymentStatus == req.PaymentStatus) {
		return order, nil
	}
	return nil, newError(KindConflict, "Order was modified concurrently, please retry")
}

func (s *OrderService) notifyTransition(ctx context.Context, order *model.Order, actor Actor, party string, change *repository.StatusChange) {
	content := fmt.Sprintf("Order %s is now %s.", order.OrderNo, change.To)
	if msg, ok := transitionMessages[change.To]; ok && change.From != change.To {
		content = fmt.Sprintf(msg, order.OrderNo)
	}
	if change.From == change.To && change.PaymentStatus == model.PaymentStatusFailed {
		content = fmt.Sprintf("Payment for order %s failed.", order.OrderNo)
	}

	var recipients []int64
	switch party {
	case model.RoleClient:
		recipients = []int64{order.FreelancerID}
	case model.RoleFreelancer:
		recipients = []int64{order.ClientID}
	default:
		recipients = []int64{order.ClientID, order.FreelancerID}
	}

	for _, id := range recipients {
		notify(ctx, s.notifier, Notification{
			RecipientID: id,
			SenderID:    actor.senderID(),
			Type:        model.NotificationTypeOrder,
			Content:     content,
			Link:        "/dashboard",
		})
	}
}

var transitionMessages = map[model.OrderStatus]string{
	model.OrderStatusPaid:       "Order %s has been paid.",
	model.OrderStatusInProgress: "Work has started on order %s.",
	model.OrderStatusDelivered:  "Order %s has been delivered.",
	model.OrderStatusCompleted:  "Order %s has been completed.",
	model.OrderStatusCancelled:  "Order %s has been cancelled.",
}

func validateTransitionRequest(req TransitionRequest) error {
	if req.Status == "" && req.PaymentStatus == "" {
		return newError(KindInvalidArgument, "status or paymentStatus is required")
	}
	if req.Status != "" && !req.Status.Valid() {
		return newError(KindInvalidArgument, "invalid status: %s", req.Status)
	}
	if req.PaymentStatus != "" && !req.PaymentStatus.Valid() {
		return newError(KindInvalidArgument, "invalid paymentStatus: %s", req.PaymentStatus)
	}
	if req.Status == model.OrderStatusPaid && req.PaymentStatus != "" && req.PaymentStatus != model.PaymentStatusCompleted {
		return newError(KindInvalidArgument, "a paid order must have paymentStatus completed")
	}
	return nil
}

// planTransition 计算要写入的变更，返回 nil 表示订单已经是请求的状态
func planTransition(order *model.Order, party string, req TransitionRequest) (*repository.StatusChange, error) {
	target := req.Status
	if target == "" {
		target = order.Status
	}

	change := &repository.StatusChange{
		OrderNo: order.OrderNo,
		From:    order.Status,
		Version: order.Version,
		To:      target,
	}

	if target != order.Status {
		if !model.CanTransitionTo(order.Status, target) {
			return nil, newError(KindInvalidTransition, "cannot change order from %s to %s", order.Status, target)
		}
		if !model.CanPartyTransition(party, order.Status, target) {
			return nil, newError(KindForbidden, "%s cannot change order from %s to %s", party, order.Status, target)
		}
		if target == model.OrderStatusPaid {
			change.PaymentStatus = model.PaymentStatusCompleted
		}
	}

	if req.PaymentStatus != "" && req.PaymentStatus != order.PaymentStatus && change.PaymentStatus == "" {
		if err := checkPaymentUpdate(order, party, req.PaymentStatus); err != nil {
			return nil, err
		}
		change.PaymentStatus = req.PaymentStatus
	}

	if change.From == change.To && change.PaymentStatus == "" {
		return nil, nil
	}
	return change, nil
}

// checkPaymentUpdate 支付是模拟的，单独修改支付状态只允许在待支付时标记失败
func checkPaymentUpdate(order *model.Order, party string, ps model.PaymentStatus) error {
	if ps != model.PaymentStatusFailed {
		return newError(KindInvalidArgument, "paymentStatus can only be set to failed")
	}
	if order.Status != model.OrderStatusPending {
		return newError(KindInvalidTransition, "payment can only fail while the order is pending")
	}
	if party == model.RoleFreelancer {
		return newError(KindForbidden, "freelancer cannot change payment status")
	}
	return nil
}
