package biz

import (
	"context"
	"time"

	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"
	"order-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/semaphore"
)

// 订单来源
const (
	OrderSourceApp int32 = 1 // APP 订单
	OrderSourcePC  int32 = 2 // PC 订单
)

// 支付方式
const (
	PayTypeWxJsapi int32 = 1 // 微信 JSAPI
	PayTypeAlipay  int32 = 2 // 支付宝
	PayTypeBalance int32 = 3 // 会员余额
)

// saga 名称
const (
	SagaOrderSubmit = "order.submit"
	SagaOrderPay    = "order.pay"
	SagaOrderCancel = "order.cancel"
	SagaOrderClose  = "order.close"
)

// Order 订单领域对象，金额单位：分
type Order struct {
	ID             int64
	OrderSn        string // 订单号，即下单令牌
	MemberID       int64
	Status         OrderStatus
	SourceType     int32
	TotalQuantity  int32
	TotalAmount    int64
	PayAmount      int64
	PayType        int32
	Remark         string
	EventPublished bool // order.create 是否已投递
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []*OrderItem
}

// OrderItem 订单明细
type OrderItem struct {
	ID            int64
	OrderID       int64
	SkuID         int64
	SkuSn         string
	SkuName       string
	SkuPic        string
	SpuName       string
	SkuPrice      int64
	SkuQuantity   int32
	SkuTotalPrice int64
}

// OrderRepo 订单数据层接口
type OrderRepo interface {
	// CreateOrder 在一个事务中写入订单及明细，回填 ID
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id int64) (*Order, error)
	GetOrderBySn(ctx context.Context, orderSn string) (*Order, error)
	// UpdateOrderStatus 条件更新：仅当当前状态为 from 时写入 order 的状态与支付字段，返回是否命中
	UpdateOrderStatus(ctx context.Context, order *Order, from OrderStatus) (bool, error)
	// DeleteOrder 仅当状态在 allowed 中时删除订单及明细，返回是否命中
	DeleteOrder(ctx context.Context, id int64, allowed []OrderStatus) (bool, error)
	// DeleteOrderBySn 下单补偿：删除订单及明细，不存在时视为成功
	DeleteOrderBySn(ctx context.Context, orderSn string) error
	MarkEventPublished(ctx context.Context, orderSn string) error
	ListPendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]*Order, error)
	ListUnpublishedOrders(ctx context.Context, createdBefore time.Time, limit int) ([]*Order, error)
}

// OrderTokenRepo 下单令牌存储
type OrderTokenRepo interface {
	Save(ctx context.Context, token string, ttl time.Duration) error
	// Consume 原子地校验并删除令牌，true 表示本次调用消费成功
	Consume(ctx context.Context, token string) (bool, error)
}

// BizNoGenerator 业务编号生成器
type BizNoGenerator interface {
	Generate(ctx context.Context, businessType string) (string, error)
}

// OrderEventPublisher 订单事件发布
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, orderSn string) error
}

// Locker 分布式锁，获取失败返回 ErrOrderBusy
type Locker interface {
	Lock(ctx context.Context, key string, expiry time.Duration) (unlock func(), err error)
}

// OrderUseCase 订单业务逻辑
type OrderUseCase struct {
	repo      OrderRepo
	tokens    OrderTokenRepo
	bizNo     BizNoGenerator
	skus      SkuGateway
	addresses AddressGateway
	members   MemberGateway
	carts     CartRepo
	events    OrderEventPublisher
	locker    Locker
	saga      *SagaCoordinator
	conf      *OrderConfig
	sem       *semaphore.Weighted // 订单确认并发聚合的全局上限
	log       *log.Helper
	metrics   *metrics.OrderMetrics
	now       func() time.Time
}

// NewOrderUseCase 创建订单 UseCase，并注册订单相关的 saga
func NewOrderUseCase(
	repo OrderRepo,
	tokens OrderTokenRepo,
	bizNo BizNoGenerator,
	skus SkuGateway,
	addresses AddressGateway,
	members MemberGateway,
	carts CartRepo,
	events OrderEventPublisher,
	locker Locker,
	saga *SagaCoordinator,
	conf *OrderConfig,
	logger log.Logger,
) *OrderUseCase {
	uc := &OrderUseCase{
		repo:      repo,
		tokens:    tokens,
		bizNo:     bizNo,
		skus:      skus,
		addresses: addresses,
		members:   members,
		carts:     carts,
		events:    events,
		locker:    locker,
		saga:      saga,
		conf:      conf,
		sem:       semaphore.NewWeighted(conf.ConfirmWorkers),
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
		now:       time.Now,
	}
	saga.Register(uc.submitSaga())
	saga.Register(uc.paySaga())
	saga.Register(uc.cancelSaga(SagaOrderCancel))
	saga.Register(uc.cancelSaga(SagaOrderClose))
	return uc
}

// GetOrder 查询会员自己的订单
func (uc *OrderUseCase) GetOrder(ctx context.Context, memberID, orderID int64) (*Order, error) {
	return uc.ownedOrder(ctx, memberID, orderID)
}

// ownedOrder 查询订单并校验归属，不存在或不属于该会员都返回 OrderNotFound
func (uc *OrderUseCase) ownedOrder(ctx context.Context, memberID, orderID int64) (*Order, error) {
	order, err := uc.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (memberID != 0 && order.MemberID != memberID) {
		return nil, orderErrors.ErrOrderNotFound
	}
	return order, nil
}

// withOrderLock 在订单锁内执行 fn，同一订单的支付/取消/关单互斥
func (uc *OrderUseCase) withOrderLock(ctx context.Context, orderSn string, fn func() error) error {
	start := time.Now()
	unlock, err := uc.locker.Lock(ctx, constants.RedisKeyOrderLock+orderSn, uc.conf.LockExpiry)
	uc.metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		uc.metrics.LockAcquireTotal.WithLabelValues("failed").Inc()
		return err
	}
	uc.metrics.LockAcquireTotal.WithLabelValues("success").Inc()
	defer unlock()
	return fn()
}

// resumePayment 推进订单上未结束的支付 saga，返回是否存在这样的 saga
// 必须在订单锁内调用。
func (uc *OrderUseCase) resumePayment(ctx context.Context, orderSn string) (bool, error) {
	inst, err := uc.saga.Active(ctx, SagaOrderPay, orderSn)
	if err != nil {
		return false, err
	}
	if inst == nil {
		return false, nil
	}
	uc.log.Infof("resume unfinished payment: orderSn=%s, sagaId=%s, status=%s, doneSteps=%d", orderSn, inst.ID, inst.Status, inst.DoneSteps)
	if err := uc.saga.Recover(ctx, inst); err != nil {
		return true, err
	}
	return true, nil
}

// payExpired 订单是否已超过支付时限
func (uc *OrderUseCase) payExpired(order *Order) bool {
	return !uc.now().Before(order.CreatedAt.Add(uc.conf.PayTimeout))
}

// updateStatus 条件更新订单状态；状态已被并发修改时返回 IllegalStateTransition
func (uc *OrderUseCase) updateStatus(ctx context.Context, order *Order, to OrderStatus) error {
	from := order.Status
	if from == to {
		return nil
	}
	if err := order.TransitTo(to); err != nil {
		uc.metrics.TransitionTotal.WithLabelValues(to.String(), "illegal").Inc()
		return err
	}
	ok, err := uc.repo.UpdateOrderStatus(ctx, order, from)
	if err != nil {
		order.Status = from
		return err
	}
	if !ok {
		// 状态已被其他请求修改，以库中状态为准
		current, getErr := uc.repo.GetOrderBySn(ctx, order.OrderSn)
		if getErr == nil && current != nil && current.Status == to {
			return nil
		}
		order.Status = from
		uc.metrics.TransitionTotal.WithLabelValues(to.String(), "conflict").Inc()
		return orderErrors.ErrIllegalStateTransition
	}
	uc.metrics.TransitionTotal.WithLabelValues(to.String(), "success").Inc()
	return nil
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if orderErrors.IsBizError(err) {
		return orderErrors.Reason(err)
	}
	return "error"
}
