package handler

import (
	"net/http"

	"freelancepay/internal/auth"
	"freelancepay/internal/model"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, verifier *auth.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api")
	api.Use(AuthMiddleware(verifier))
	{
		orders := api.Group("/orders")
		{
			orders.POST("", RequireRole(model.RoleClient), h.CreateOrder)
			orders.GET("", h.ListOrders)
			orders.GET("/:id", h.GetOrder)
			orders.GET("/:id/history", h.GetOrderHistory)
			orders.PUT("/:id/status", h.UpdateOrderStatus)
		}

		wallet := api.Group("/wallet")
		{
			wallet.POST("/withdraw", h.RequestWithdrawal)
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/withdrawals", h.ListWithdrawals)
			wallet.GET("/transactions", h.ListTransactions)
		}

		admin := api.Group("/admin", RequireRole(model.RoleAdmin))
		{
			admin.GET("/withdrawals", h.ListPendingWithdrawals)
			admin.PUT("/withdrawals/:id", h.ReviewWithdrawal)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
