package handler

import (
	"marketpay/internal/config"
	"marketpay/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, gw gateway.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, gw, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 支付相关
		payments := api.Group("/payments")
		{
			payments.POST("/webhook", h.PaymentWebhook)
			payments.POST("/complete", h.CompletePayment)
		}

		// 广告相关
		ads := api.Group("/ads")
		{
			ads.POST("", h.CreateAd)
			ads.POST("/:id/refund", h.RequestAdRefund)
		}

		// 展会相关
		expos := api.Group("/expos")
		{
			expos.POST("", h.CreateExpo)
			expos.POST("/:id/refund", h.RequestExpoRefund)
		}

		// 预约相关
		reservations := api.Group("/reservations")
		{
			reservations.POST("", h.CreateReservation)
			reservations.POST("/:id/vbank", h.ConfirmVbank)
			reservations.POST("/:id/cancel", h.CancelReservation)
		}

		// 管理员操作
		admin := api.Group("/admin")
		{
			admin.POST("/ads/:id/approve", h.ApproveAd())
			admin.POST("/ads/:id/reject", h.RejectAd())
			admin.POST("/ads/:id/publish", h.PublishAd())
			admin.POST("/ads/:id/complete", h.CompleteAd())

			admin.POST("/expos/:id/approve", h.ApproveExpo())
			admin.POST("/expos/:id/reject", h.RejectExpo())
			admin.POST("/expos/:id/publish", h.PublishExpo())
			admin.POST("/expos/:id/complete", h.CompleteExpo())

			admin.POST("/refunds/execute", h.ExecuteRefund)
			admin.POST("/refunds/reject", h.RejectRefund)
			admin.GET("/refunds/summary", h.RefundSummary)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
