package biz

import (
	"context"
	"time"

	"order-service/internal/constants"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// 补偿任务名称
const (
	JobCloseOverdueOrders = "close_overdue_orders"
	JobRepublishEvents    = "republish_order_events"
	JobRecoverSagas       = "recover_sagas"
)

// republishGrace 下单后多久仍未标记投递才重新投递
const republishGrace = time.Minute

// ReconcileUseCase 定时补偿：超时关单、重投 order.create、恢复中断的 saga
type ReconcileUseCase struct {
	orders  *OrderUseCase
	repo    OrderRepo
	saga    *SagaCoordinator
	locker  Locker
	conf    *OrderConfig
	log     *log.Helper
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewReconcileUseCase 创建补偿 UseCase
func NewReconcileUseCase(orders *OrderUseCase, repo OrderRepo, saga *SagaCoordinator, locker Locker, conf *OrderConfig, logger log.Logger) *ReconcileUseCase {
	return &ReconcileUseCase{
		orders:  orders,
		repo:    repo,
		saga:    saga,
		locker:  locker,
		conf:    conf,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
		now:     time.Now,
	}
}

// RunExclusive 多实例部署时同一任务只允许一个实例执行，未抢到锁直接跳过
func (uc *ReconcileUseCase) RunExclusive(ctx context.Context, job string, expiry time.Duration, fn func(ctx context.Context) (int, error)) (int, error) {
	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyCronLock+job, expiry)
	if err != nil {
		uc.log.Infof("skip job %s: %v", job, err)
		return 0, nil
	}
	defer unlock()
	return fn(ctx)
}

// CloseOverdueOrders 关闭超过支付时限仍未支付的订单（延迟消息丢失时兜底）
func (uc *ReconcileUseCase) CloseOverdueOrders(ctx context.Context) (int, error) {
	orders, err := uc.repo.ListPendingOrders(ctx, uc.now().Add(-uc.conf.PayTimeout), uc.conf.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, o := range orders {
		ok, err := uc.orders.CloseOrder(ctx, o.OrderSn)
		if err != nil {
			uc.metrics.SweepItemsTotal.WithLabelValues(JobCloseOverdueOrders, "failed").Inc()
			continue
		}
		if ok {
			closed++
			uc.metrics.SweepItemsTotal.WithLabelValues(JobCloseOverdueOrders, "success").Inc()
		}
	}
	return closed, nil
}

// RepublishOrderEvents 重新投递发布失败的 order.create
func (uc *ReconcileUseCase) RepublishOrderEvents(ctx context.Context) (int, error) {
	orders, err := uc.repo.ListUnpublishedOrders(ctx, uc.now().Add(-republishGrace), uc.conf.SweepBatchSize)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, o := range orders {
		if uc.orders.publishOrderCreated(ctx, o.OrderSn) {
			published++
			uc.metrics.SweepItemsTotal.WithLabelValues(JobRepublishEvents, "success").Inc()
			continue
		}
		uc.metrics.SweepItemsTotal.WithLabelValues(JobRepublishEvents, "failed").Inc()
	}
	return published, nil
}

// RecoverSagas 恢复长时间未推进的 saga，恢复时持有对应订单锁
func (uc *ReconcileUseCase) RecoverSagas(ctx context.Context) (int, error) {
	guard := func(ctx context.Context, inst *SagaInstance, fn func() error) error {
		err := uc.orders.withOrderLock(ctx, inst.BizKey, fn)
		result := "success"
		if err != nil {
			result = "failed"
		}
		uc.metrics.SweepItemsTotal.WithLabelValues(JobRecoverSagas, result).Inc()
		return err
	}
	return uc.saga.RecoverPending(ctx, uc.now().Add(-uc.conf.SagaStaleAfter), uc.conf.SweepBatchSize, guard)
}
