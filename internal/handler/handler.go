package handler

import (
	"net/http"
	"strconv"

	"freelancepay/internal/logger"
	"freelancepay/internal/model"
	"freelancepay/internal/service"
	"freelancepay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	orderService      *service.OrderService
	withdrawalService *service.WithdrawalService
	ledgerService     *service.LedgerService
}

func NewHandler(orders *service.OrderService, withdrawals *service.WithdrawalService, ledger *service.LedgerService) *Handler {
	return &Handler{
		orderService:      orders,
		withdrawalService: withdrawals,
		ledgerService:     ledger,
	}
}

func actorFrom(c *gin.Context) service.Actor {
	id := identityFrom(c)
	return service.Actor{ID: id.UserID, Role: id.Role}
}

func pageFrom(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
	return page, pageSize
}

// fail 把业务错误转换为 HTTP 响应
func fail(c *gin.Context, err error) {
	message := service.MessageOf(err)

	switch service.KindOf(err) {
	case service.KindNotFound:
		response.Error(c, http.StatusNotFound, response.CodeNotFound, message)
	case service.KindForbidden:
		response.Forbidden(c, message)
	case service.KindInvalidArgument:
		response.ParamError(c, message)
	case service.KindInvalidOperation:
		response.Error(c, http.StatusBadRequest, response.CodeInvalidOperation, message)
	case service.KindInsufficientBalance:
		response.Error(c, http.StatusBadRequest, response.CodeBalanceNotEnough, message)
	case service.KindInvalidTransition:
		response.Error(c, http.StatusConflict, response.CodeInvalidTransition, message)
	case service.KindConflict:
		response.Error(c, http.StatusConflict, response.CodeConflict, message)
	default:
		log := logger.Component("http")
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("请求处理失败")
		response.ServerError(c, message)
	}
}

// ============================================================
// 订单相关接口
// ============================================================

type CreateOrderRequest struct {
	ServiceID    int64  `json:"serviceId" binding:"required"`
	Requirements string `json:"requirements"`
}

// CreateOrder 下单
// POST /api/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), identityFrom(c).UserID, req.ServiceID, req.Requirements)
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, order)
}

// ListOrders 查询我作为买方或卖方的订单
// GET /api/orders?page=1&pageSize=10
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := pageFrom(c)

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), identityFrom(c).UserID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// GetOrder GET /api/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, order)
}

// GetOrderHistory 订单状态变更记录
// GET /api/orders/:id/history
func (h *Handler) GetOrderHistory(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}

	logs, err := h.orderService.ListStatusLogs(c.Request.Context(), order.OrderNo)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"history": logs})
}

type UpdateOrderStatusRequest struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
}

// UpdateOrderStatus 推进订单状态
// PUT /api/orders/:id/status
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	order, err := h.orderService.Transition(c.Request.Context(), c.Param("id"), actorFrom(c), service.TransitionRequest{
		Status:        model.OrderStatus(req.Status),
		PaymentStatus: model.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, order)
}

// ============================================================
// 钱包相关接口
// ============================================================

type WithdrawRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails string          `json:"paymentDetails"`
}

// RequestWithdrawal POST /api/wallet/withdraw
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	withdrawal, err := h.withdrawalService.RequestWithdrawal(c.Request.Context(), identityFrom(c).UserID, service.WithdrawalRequest{
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		PaymentDetails: req.PaymentDetails,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, withdrawal)
}

// GetBalance GET /api/wallet/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.ledgerService.GetBalance(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"balance": balance})
}

// ListWithdrawals GET /api/wallet/withdrawals
func (h *Handler) ListWithdrawals(c *gin.Context) {
	list, err := h.withdrawalService.ListWithdrawals(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"withdrawals": list})
}

// ListTransactions GET /api/wallet/transactions?page=1&pageSize=10
func (h *Handler) ListTransactions(c *gin.Context) {
	page, pageSize := pageFrom(c)

	list, total, err := h.ledgerService.ListTransactions(c.Request.Context(), identityFrom(c).UserID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"transactions": list,
		"total":        total,
	})
}

// ============================================================
// 管理员接口
// ============================================================

// ListPendingWithdrawals GET /api/admin/withdrawals
func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	list, err := h.withdrawalService.ListPendingWithdrawals(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, gin.H{"withdrawals": list})
}

type ReviewWithdrawalRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// ReviewWithdrawal PUT /api/admin/withdrawals/:id
func (h *Handler) ReviewWithdrawal(c *gin.Context) {
	var req ReviewWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	withdrawal, err := h.withdrawalService.ReviewWithdrawal(c.Request.Context(), c.Param("id"), actorFrom(c), model.WithdrawalStatus(req.Status), req.Note)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, withdrawal)
}
