package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrderMetrics 订单服务指标
type OrderMetrics struct {
	// 订单确认
	ConfirmTotal    *prometheus.CounterVec // 确认总数（按来源、结果）
	ConfirmDuration prometheus.Histogram   // 确认耗时（并发聚合）

	// 下单相关
	SubmitTotal       *prometheus.CounterVec // 下单总数（按结果 reason）
	SubmitDuration    prometheus.Histogram   // 下单耗时
	TokenConsumeTotal *prometheus.CounterVec // 令牌消费（consumed/rejected/error）
	EventPublishTotal *prometheus.CounterVec // order.create 发布（success/failed）

	// 支付与状态流转
	PayTotal        *prometheus.CounterVec // 支付总数（按结果 reason）
	PayDuration     prometheus.Histogram   // 支付耗时
	TransitionTotal *prometheus.CounterVec // 状态流转（按目标状态、结果）
	PayAmount       prometheus.Counter     // 已支付金额（分）

	// Saga
	SagaTotal     *prometheus.CounterVec   // Saga 结束状态（按 saga、状态）
	SagaStepTotal *prometheus.CounterVec   // 步骤执行（按 saga、步骤、阶段、结果）
	SagaDuration  *prometheus.HistogramVec // Saga 耗时

	// 分布式锁
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时

	// 定时补偿
	SweepItemsTotal *prometheus.CounterVec // 补偿任务处理数（按任务、结果）
}

// NewOrderMetrics 创建订单服务指标
func NewOrderMetrics() *OrderMetrics {
	return &OrderMetrics{
		ConfirmTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_confirm_total",
				Help: "Total number of order confirmations",
			},
			[]string{"source", "result"}, // source: sku/cart
		),
		ConfirmDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_confirm_duration_seconds",
				Help:    "Duration of order confirmation fan-out",
				Buckets: prometheus.DefBuckets,
			},
		),

		SubmitTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_submit_total",
				Help: "Total number of order submissions",
			},
			[]string{"result"},
		),
		SubmitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_submit_duration_seconds",
				Help:    "Duration of order submissions",
				Buckets: prometheus.DefBuckets,
			},
		),
		TokenConsumeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_token_consume_total",
				Help: "Total number of order token consume attempts",
			},
			[]string{"result"}, // consumed/rejected/error
		),
		EventPublishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_event_publish_total",
				Help: "Total number of order.create publishes",
			},
			[]string{"result"},
		),

		PayTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_pay_total",
				Help: "Total number of order payments",
			},
			[]string{"result"},
		),
		PayDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_pay_duration_seconds",
				Help:    "Duration of order payments",
				Buckets: prometheus.DefBuckets,
			},
		),
		TransitionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_status_transition_total",
				Help: "Total number of order status transitions",
			},
			[]string{"to", "result"},
		),
		PayAmount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "order_pay_amount_total",
				Help: "Total paid amount in cents",
			},
		),

		SagaTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_saga_total",
				Help: "Total number of finished sagas",
			},
			[]string{"saga", "status"},
		),
		SagaStepTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_saga_step_total",
				Help: "Total number of saga step executions",
			},
			[]string{"saga", "step", "phase", "result"}, // phase: execute/compensate
		),
		SagaDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "order_saga_duration_seconds",
				Help:    "Duration of saga executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"saga"},
		),

		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_lock_acquire_total",
				Help: "Total number of lock acquisitions",
			},
			[]string{"result"}, // success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "order_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),

		SweepItemsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_sweep_items_total",
				Help: "Total number of items handled by reconciliation sweeps",
			},
			[]string{"job", "result"},
		),
	}
}

// 全局指标实例
var (
	defaultMetrics *OrderMetrics
	once           sync.Once
)

// GetMetrics 获取全局指标实例
func GetMetrics() *OrderMetrics {
	once.Do(func() {
		defaultMetrics = NewOrderMetrics()
	})
	return defaultMetrics
}
