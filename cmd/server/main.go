package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freelancepay/internal/auth"
	"freelancepay/internal/config"
	"freelancepay/internal/handler"
	"freelancepay/internal/infrastructure/cache"
	"freelancepay/internal/infrastructure/database"
	"freelancepay/internal/infrastructure/lock"
	"freelancepay/internal/infrastructure/mq"
	"freelancepay/internal/job"
	"freelancepay/internal/logger"
	"freelancepay/internal/service"
	"freelancepay/pkg/idgen"
)

func main() {
	if err := run(); err != nil {
		logger.Logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
}

func run() error {
	// 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		return err
	}

	logger.Init(cfg.Log.Level)
	log := logger.Component("main")

	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return err
	}

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL, logger.GormLevel(cfg.Log.GormLevel))
	if err != nil {
		return err
	}

	// 初始化 Redis
	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// 初始化 Kafka
	publisher, err := mq.InitKafka(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer publisher.Close()

	locker := lock.NewRedisLocker(redisClient)
	notifier := service.NewOutboxNotifier(db, cfg.Kafka.Topic.Notification)
	ledger := service.NewLedgerService(db)
	orders := service.NewOrderService(db, cfg, locker, notifier, service.NewSettlementService(ledger))
	withdrawals := service.NewWithdrawalService(db, cfg, locker, notifier, ledger)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg)
	go outboxSender.Start(ctx)

	orderTimeoutJob := job.NewOrderTimeoutJob(orders)
	go orderTimeoutJob.Start(ctx)

	router := handler.SetupRouter(
		handler.NewHandler(orders, withdrawals, ledger),
		auth.NewTokenVerifier(cfg.Auth.JWTSecret),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info().Msg("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("服务关闭异常")
	}

	log.Info().Msg("服务已关闭")
	return nil
}
