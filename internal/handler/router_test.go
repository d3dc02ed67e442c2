package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"freelancepay/internal/auth"
	"freelancepay/internal/config"
	"freelancepay/internal/infrastructure/lock"
	"freelancepay/internal/model"
	"freelancepay/internal/service"
	"freelancepay/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	clientID     int64 = 1
	freelancerID int64 = 2
	strangerID   int64 = 3
	adminID      int64 = 99
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t        *testing.T
	db       *gorm.DB
	router   *gin.Engine
	verifier *auth.TokenVerifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := &config.Config{
		Kafka:    config.KafkaConfig{Topic: config.KafkaTopicConfig{Notification: "marketplace.notification"}},
		Business: config.BusinessConfig{OrderTimeoutMinutes: 60, MinWithdrawalAmount: "100"},
	}
	locker := lock.NewLocalLocker()
	notifier := service.NewOutboxNotifier(db, cfg.Kafka.Topic.Notification)
	ledger := service.NewLedgerService(db)
	orders := service.NewOrderService(db, cfg, locker, notifier, service.NewSettlementService(ledger))
	withdrawals := service.NewWithdrawalService(db, cfg, locker, notifier, ledger)

	verifier := auth.NewTokenVerifier("test-secret")
	return &testServer{
		t:        t,
		db:       db,
		router:   SetupRouter(NewHandler(orders, withdrawals, ledger), verifier),
		verifier: verifier,
	}
}

func (s *testServer) token(userID int64, role string) string {
	s.t.Helper()
	token, err := s.verifier.Issue(auth.Identity{UserID: userID, Role: role}, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body interface{}) (int, apiResponse) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 401, resp.Code)

	code, _ = s.do(http.MethodGet, "/api/orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/orders", s.token(1, model.RoleSystem), nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestOrderFlow(t *testing.T) {
	s := newTestServer(t)
	listing := testutil.CreateListing(t, s.db, freelancerID, "1000")

	clientToken := s.token(clientID, model.RoleClient)
	freelancerToken := s.token(freelancerID, model.RoleFreelancer)

	code, _ := s.do(http.MethodPost, "/api/orders", freelancerToken, gin.H{"serviceId": listing.ID})
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := s.do(http.MethodPost, "/api/orders", clientToken, gin.H{"serviceId": listing.ID, "requirements": "a logo"})
	require.Equal(t, http.StatusCreated, code, resp.Message)

	var order model.Order
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, decimal.NewFromInt(1000).Equal(order.Amount))

	statusPath := "/api/orders/" + order.OrderNo + "/status"

	code, _ = s.do(http.MethodPut, statusPath, s.token(strangerID, model.RoleClient), gin.H{"status": "paid"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPut, statusPath, clientToken, gin.H{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodPut, statusPath, clientToken, gin.H{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, code)

	steps := []struct {
		token  string
		status string
	}{
		{clientToken, "paid"},
		{freelancerToken, "in_progress"},
		{freelancerToken, "delivered"},
		{clientToken, "completed"},
		{clientToken, "completed"},
	}
	for _, step := range steps {
		code, resp = s.do(http.MethodPut, statusPath, step.token, gin.H{"status": step.status})
		require.Equal(t, http.StatusOK, code, resp.Message)
	}

	code, resp = s.do(http.MethodGet, "/api/orders/"+order.OrderNo, clientToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &order))
	assert.Equal(t, model.OrderStatusCompleted, order.Status)
	assert.Equal(t, model.PaymentStatusCompleted, order.PaymentStatus)

	code, resp = s.do(http.MethodGet, "/api/wallet/balance", freelancerToken, nil)
	require.Equal(t, http.StatusOK, code)
	var balance struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &balance))
	assert.True(t, decimal.NewFromInt(1000).Equal(balance.Balance), balance.Balance.String())

	code, resp = s.do(http.MethodGet, "/api/orders?page=1&pageSize=5", freelancerToken, nil)
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Orders []model.Order `json:"orders"`
		Total  int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.EqualValues(t, 1, list.Total)

	code, _ = s.do(http.MethodGet, "/api/orders/"+order.OrderNo, s.token(strangerID, model.RoleClient), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = s.do(http.MethodGet, "/api/orders/"+order.OrderNo+"/history", freelancerToken, nil)
	require.Equal(t, http.StatusOK, code)
	var history struct {
		History []model.OrderStatusLog `json:"history"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	assert.Len(t, history.History, 4)

	code, _ = s.do(http.MethodGet, "/api/orders/ORD404", clientToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateOrder_Errors(t *testing.T) {
	s := newTestServer(t)
	listing := testutil.CreateListing(t, s.db, clientID, "500")
	clientToken := s.token(clientID, model.RoleClient)

	code, resp := s.do(http.MethodPost, "/api/orders", clientToken, gin.H{"serviceId": listing.ID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "You cannot order your own service", resp.Message)

	code, _ = s.do(http.MethodPost, "/api/orders", clientToken, gin.H{"serviceId": 404})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/api/orders", clientToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWithdrawalFlow(t *testing.T) {
	s := newTestServer(t)
	testutil.SetBalance(t, s.db, freelancerID, "500")
	freelancerToken := s.token(freelancerID, model.RoleFreelancer)
	adminToken := s.token(adminID, model.RoleAdmin)

	code, resp := s.do(http.MethodPost, "/api/wallet/withdraw", freelancerToken, gin.H{
		"amount": 50, "paymentMethod": "UPI", "paymentDetails": "me@upi",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, 400, resp.Code)

	code, resp = s.do(http.MethodPost, "/api/wallet/withdraw", freelancerToken, gin.H{
		"amount": 900, "paymentMethod": "UPI", "paymentDetails": "me@upi",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Insufficient balance", resp.Message)

	code, resp = s.do(http.MethodPost, "/api/wallet/withdraw", freelancerToken, gin.H{
		"amount": 200, "paymentMethod": "UPI", "paymentDetails": "me@upi",
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var withdrawal model.Withdrawal
	require.NoError(t, json.Unmarshal(resp.Data, &withdrawal))
	assert.Equal(t, model.WithdrawalStatusPending, withdrawal.Status)
	testutil.AssertDecimal(t, "300", testutil.Balance(t, s.db, freelancerID))

	code, resp = s.do(http.MethodGet, "/api/wallet/withdrawals", freelancerToken, nil)
	require.Equal(t, http.StatusOK, code)
	var mine struct {
		Withdrawals []model.Withdrawal `json:"withdrawals"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &mine))
	assert.Len(t, mine.Withdrawals, 1)

	code, _ = s.do(http.MethodGet, "/api/admin/withdrawals", freelancerToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/api/admin/withdrawals", adminToken, nil)
	assert.Equal(t, http.StatusOK, code)

	reviewPath := "/api/admin/withdrawals/" + withdrawal.WithdrawalNo
	code, resp = s.do(http.MethodPut, reviewPath, adminToken, gin.H{"status": "rejected", "note": "wrong UPI id"})
	require.Equal(t, http.StatusOK, code, resp.Message)
	testutil.AssertDecimal(t, "500", testutil.Balance(t, s.db, freelancerID))

	code, _ = s.do(http.MethodPut, reviewPath, adminToken, gin.H{"status": "rejected"})
	assert.Equal(t, http.StatusConflict, code)
	testutil.AssertDecimal(t, "500", testutil.Balance(t, s.db, freelancerID))

	code, resp = s.do(http.MethodGet, "/api/wallet/transactions", freelancerToken, nil)
	require.Equal(t, http.StatusOK, code)
	var history struct {
		Transactions []model.AccountTransaction `json:"transactions"`
		Total        int64                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	assert.EqualValues(t, 2, history.Total)

	var pending int64
	require.NoError(t, s.db.Model(&model.OutboxMessage{}).Where("recipient_id = ?", freelancerID).Count(&pending).Error)
	assert.EqualValues(t, 2, pending)
}
