package job

import (
	"context"
	"time"

	"freelancepay/internal/logger"
	"freelancepay/internal/service"

	"github.com/rs/zerolog"
)

// OrderTimeoutJob 定时取消超时未支付的订单
type OrderTimeoutJob struct {
	orderService *service.OrderService
	log          zerolog.Logger
	stopCh       chan struct{}
	interval     time.Duration
	batchSize    int
}

func NewOrderTimeoutJob(orderService *service.OrderService) *OrderTimeoutJob {
	return &OrderTimeoutJob{
		orderService: orderService,
		log:          logger.Component("OrderTimeoutJob"),
		stopCh:       make(chan struct{}),
		interval:     time.Minute,
		batchSize:    100,
	}
}

func (j *OrderTimeoutJob) Start(ctx context.Context) {
	j.log.Info().Msg("订单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info().Msg("任务停止")
			return
		case <-ticker.C:
			j.cancelStaleOrders(ctx)
		}
	}
}

func (j *OrderTimeoutJob) Stop() {
	close(j.stopCh)
}

func (j *OrderTimeoutJob) cancelStaleOrders(ctx context.Context) {
	cancelled, err := j.orderService.CancelStaleOrders(ctx, j.batchSize)
	if err != nil {
		j.log.Error().Err(err).Msg("取消超时订单失败")
		return
	}
	if cancelled > 0 {
		j.log.Info().Int("count", cancelled).Msg("本次取消超时订单")
	}
}
