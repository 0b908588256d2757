package handler

import (
	"log"
	"net/http"
	"time"

	"marketpay/pkg/response"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware 访问日志
// 排查网关回调问题时主要靠这里的状态码和耗时
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		fullPath := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			fullPath = fullPath + "?" + raw
		}

		c.Next()

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
			c.Request.Method,
			fullPath,
		)
	}
}

// RecoveryMiddleware 兜住 panic
// webhook 入口必须给网关一个应答，否则网关会按失败无限重发
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
				c.Abort()
				response.ServerError(c, "服务器内部错误")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 管理后台跨域访问
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
