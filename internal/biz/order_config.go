package biz

import (
	"time"

	"order-service/internal/conf"
	"order-service/internal/constants"
)

// OrderConfig 订单业务配置
type OrderConfig struct {
	TokenTTL       time.Duration // 下单令牌有效期
	ConfirmWorkers int64         // 订单确认并发聚合的全局并发上限
	PayTimeout     time.Duration // 支付超时，超时未支付自动关单
	LockExpiry     time.Duration // 订单锁过期时间
	SagaStaleAfter time.Duration // 超过该时间未推进的 saga 交给补偿任务
	SweepBatchSize int           // 补偿任务单批数量
}

// NewOrderConfig 从配置创建 OrderConfig
func NewOrderConfig(c *conf.Bootstrap) *OrderConfig {
	config := &OrderConfig{
		TokenTTL:       constants.DefaultTokenTTL,
		ConfirmWorkers: constants.DefaultConfirmWorkers,
		PayTimeout:     constants.DefaultPayTimeout,
		LockExpiry:     constants.DefaultLockExpiry,
		SagaStaleAfter: constants.DefaultSagaStaleAfter,
		SweepBatchSize: constants.DefaultSweepBatchSize,
	}
	if c == nil || c.Order == nil {
		return config
	}
	// 未配置则使用默认值
	if d := c.Order.TokenTtl.AsDuration(); d > 0 {
		config.TokenTTL = d
	}
	if c.Order.ConfirmWorkers > 0 {
		config.ConfirmWorkers = c.Order.ConfirmWorkers
	}
	if d := c.Order.PayTimeout.AsDuration(); d > 0 {
		config.PayTimeout = d
	}
	if d := c.Order.LockExpiry.AsDuration(); d > 0 {
		config.LockExpiry = d
	}
	if d := c.Order.SagaStaleAfter.AsDuration(); d > 0 {
		config.SagaStaleAfter = d
	}
	if c.Order.SweepBatchSize > 0 {
		config.SweepBatchSize = c.Order.SweepBatchSize
	}
	return config
}
