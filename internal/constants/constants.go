package constants

import "time"

// Redis Key 前缀常量
const (
	// RedisKeyOrderToken 订单防重提交令牌 key 前缀
	RedisKeyOrderToken = "order:token:"
	// RedisKeyBusinessNo 业务编号自增序列 key 前缀
	RedisKeyBusinessNo = "business:no:"
	// RedisKeyCart 会员购物车 hash key 前缀
	RedisKeyCart = "cart:"
	// RedisKeyOrderLock 订单生命周期锁 key 前缀
	RedisKeyOrderLock = "order:lock:"
	// RedisKeyCronLock 定时任务单实例锁 key 前缀
	RedisKeyCronLock = "order:cron:lock:"
)

// 业务编号常量
const (
	// BusinessTypeOrder 订单业务类型编码
	BusinessTypeOrder = "100"
	// BusinessNoDigits 业务编号自增部分位数
	BusinessNoDigits = 6
	// BusinessNoTimeLayout 业务编号时间前缀格式
	BusinessNoTimeLayout = "20060102150405"
	// BusinessNoKeyTTL 按天分片的序列 key 过期时间
	BusinessNoKeyTTL = 48 * time.Hour
)

// 订单默认配置
const (
	// DefaultTokenTTL 下单令牌默认有效期
	DefaultTokenTTL = 15 * time.Minute
	// DefaultConfirmWorkers 订单确认并发上限
	DefaultConfirmWorkers = 64
	// DefaultPayTimeout 支付超时时间
	DefaultPayTimeout = 30 * time.Minute
	// DefaultLockExpiry 订单锁过期时间
	DefaultLockExpiry = 10 * time.Second
	// DefaultSagaStaleAfter 事务多久未推进视为卡住
	DefaultSagaStaleAfter = 2 * time.Minute
	// DefaultSweepBatchSize 补偿任务单批处理数量
	DefaultSweepBatchSize = 100
)

// 消息常量
const (
	// EventOrderCreate 订单创建事件（RocketMQ Tag）
	EventOrderCreate = "order.create"
	// DefaultOrderTopic 订单事件 Topic
	DefaultOrderTopic = "oms_order"
)

// 下游服务响应码
const (
	// GatewayCodeSuccess 成功
	GatewayCodeSuccess = "00000"
	// GatewayCodeInsufficientBalance 会员余额不足
	GatewayCodeInsufficientBalance = "B0301"
	// GatewayCodeStockInsufficient 库存不足
	GatewayCodeStockInsufficient = "B0401"
)

// HTTP 头
const (
	// HeaderMemberID 网关解析出的会员 ID
	HeaderMemberID = "X-Member-Id"
)
