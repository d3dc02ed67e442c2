package handler

import (
	"net/http"
	"strings"
	"time"

	"freelancepay/internal/auth"
	"freelancepay/internal/logger"
	"freelancepay/internal/model"
	"freelancepay/pkg/response"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Msg("请求完成")
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	log := logger.Component("http")
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("请求处理 panic")
				response.ServerError(c, "internal error")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware 校验 Authorization: Bearer <token>
func AuthMiddleware(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		const prefix = "Bearer "
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, prefix) {
			response.Unauthorized(c, "Not authorized")
			return
		}

		id, err := verifier.Verify(strings.TrimSpace(strings.TrimPrefix(header, prefix)))
		// system 只给后台任务用，不接受外部 token 声明
		if err != nil || id.Role == model.RoleSystem {
			response.Unauthorized(c, "Invalid token")
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole 只允许指定角色访问
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFrom(c)
		for _, role := range roles {
			if id.Role == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "User role "+id.Role+" is not authorized to access this route")
	}
}

func identityFrom(c *gin.Context) auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}
	}
	id, _ := v.(auth.Identity)
	return id
}
