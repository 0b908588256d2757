package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketpay/internal/config"
	"marketpay/internal/gateway"
	"marketpay/internal/handler"
	"marketpay/internal/infrastructure/cache"
	"marketpay/internal/infrastructure/database"
	"marketpay/internal/infrastructure/mq"
	"marketpay/internal/job"
	"marketpay/pkg/idgen"

	"github.com/robfig/cron/v3"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 初始化支付网关客户端
	gw := gateway.NewHTTPClient(&cfg.Gateway)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 outbox 消息发送器
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	// 定时扫描任务，调度表达式由配置下发
	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	publishJob := job.NewPublishSweepJob(db)
	completeJob := job.NewCompleteSweepJob(db)
	ticketJob := job.NewTicketSweepJob(db)
	vbankJob := job.NewVbankExpiryJob(db, cfg.Business.SweepBatchSize)

	mustSchedule(scheduler, cfg.Scheduler.PublishCron, func() { publishJob.RunOnce(ctx) })
	mustSchedule(scheduler, cfg.Scheduler.CompleteCron, func() { completeJob.RunOnce(ctx) })
	mustSchedule(scheduler, cfg.Scheduler.TicketCron, func() { ticketJob.RunOnce(ctx) })
	mustSchedule(scheduler, cfg.Scheduler.VbankExpiryCron, func() { vbankJob.RunOnce(ctx) })

	scheduler.Start()
	defer scheduler.Stop()

	// 设置路由
	router := handler.SetupRouter(db, redisClient, gw, cfg)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}

func mustSchedule(c *cron.Cron, spec string, fn func()) {
	if _, err := c.AddFunc(spec, fn); err != nil {
		log.Fatalf("定时任务注册失败: spec=%s, err=%v", spec, err)
	}
}
