package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	orderErrors "order-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/mock"
)

// memOrderRepo 内存订单仓储
type memOrderRepo struct {
	mu          sync.Mutex
	seq         int64
	orders      map[string]*Order
	createErr   error
	updateErr   error
	updateFails int // 接下来 updateFails 次状态更新返回 updateErr
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*Order)}
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = make([]*OrderItem, 0, len(o.Items))
	for _, i := range o.Items {
		item := *i
		c.Items = append(c.Items, &item)
	}
	return &c
}

func (r *memOrderRepo) CreateOrder(_ context.Context, order *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.orders[order.OrderSn]; ok {
		return fmt.Errorf("duplicate order sn %s", order.OrderSn)
	}
	r.seq++
	order.ID = r.seq
	order.CreatedAt = time.Now()
	r.orders[order.OrderSn] = cloneOrder(order)
	return nil
}

func (r *memOrderRepo) GetOrder(_ context.Context, id int64) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *memOrderRepo) GetOrderBySn(_ context.Context, orderSn string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderSn]; ok {
		return cloneOrder(o), nil
	}
	return nil, nil
}

func (r *memOrderRepo) UpdateOrderStatus(_ context.Context, order *Order, from OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateFails > 0 {
		r.updateFails--
		return false, r.updateErr
	}
	o, ok := r.orders[order.OrderSn]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = order.Status
	if order.PayType != 0 {
		o.PayType = order.PayType
	}
	if order.PaidAt != nil {
		o.PaidAt = order.PaidAt
	}
	return true, nil
}

func (r *memOrderRepo) DeleteOrder(_ context.Context, id int64, allowed []OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sn, o := range r.orders {
		if o.ID != id {
			continue
		}
		for _, s := range allowed {
			if o.Status == s {
				delete(r.orders, sn)
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (r *memOrderRepo) DeleteOrderBySn(_ context.Context, orderSn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderSn)
	return nil
}

func (r *memOrderRepo) MarkEventPublished(_ context.Context, orderSn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderSn]; ok {
		o.EventPublished = true
	}
	return nil
}

func (r *memOrderRepo) ListPendingOrders(_ context.Context, createdBefore time.Time, limit int) ([]*Order, error) {
	return r.list(func(o *Order) bool {
		return o.Status == OrderStatusPendingPayment && o.CreatedAt.Before(createdBefore)
	}, limit), nil
}

func (r *memOrderRepo) ListUnpublishedOrders(_ context.Context, createdBefore time.Time, limit int) ([]*Order, error) {
	return r.list(func(o *Order) bool {
		return o.Status == OrderStatusPendingPayment && !o.EventPublished && o.CreatedAt.Before(createdBefore)
	}, limit), nil
}

func (r *memOrderRepo) list(match func(o *Order) bool, limit int) []*Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if match(o) && len(out) < limit {
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (r *memOrderRepo) put(o *Order) *Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	o.ID = r.seq
	r.orders[o.OrderSn] = cloneOrder(o)
	return o
}

func (r *memOrderRepo) status(orderSn string) OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderSn]; ok {
		return o.Status
	}
	return OrderStatusDeleted
}

func (r *memOrderRepo) failUpdates(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateFails = n
	r.updateErr = err
}

func (r *memOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// memSagaRepo 内存 saga 仓储，记录每次保存的快照
type memSagaRepo struct {
	mu      sync.Mutex
	insts   map[string]*SagaInstance
	history []SagaStatus
	failAt  int // 第 failAt 次保存返回错误，0 表示不失败
	saves   int
}

func newMemSagaRepo() *memSagaRepo {
	return &memSagaRepo{insts: make(map[string]*SagaInstance)}
}

func (r *memSagaRepo) SaveSaga(_ context.Context, inst *SagaInstance, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.failAt > 0 && r.saves == r.failAt {
		return fmt.Errorf("saga store unavailable")
	}
	c := *inst
	c.Errors = append([]string(nil), inst.Errors...)
	r.insts[inst.ID] = &c
	r.history = append(r.history, inst.Status)
	return nil
}

func (r *memSagaRepo) ListPendingSagas(_ context.Context, statuses []SagaStatus, before time.Time, limit int) ([]*SagaInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SagaInstance
	for _, inst := range r.insts {
		if !inst.UpdatedAt.Before(before) || len(out) >= limit {
			continue
		}
		for _, s := range statuses {
			if inst.Status == s {
				c := *inst
				out = append(out, &c)
				break
			}
		}
	}
	return out, nil
}

func (r *memSagaRepo) FindActiveSaga(_ context.Context, name, bizKey string, statuses []SagaStatus) (*SagaInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found *SagaInstance
	for _, inst := range r.insts {
		if inst.Name != name || inst.BizKey != bizKey {
			continue
		}
		for _, s := range statuses {
			if inst.Status == s && (found == nil || inst.CreatedAt.After(found.CreatedAt)) {
				c := *inst
				found = &c
				break
			}
		}
	}
	return found, nil
}

func (r *memSagaRepo) only() *SagaInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.insts {
		return inst
	}
	return nil
}

func (r *memSagaRepo) byName(name string) *SagaInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.insts {
		if inst.Name == name {
			return inst
		}
	}
	return nil
}

// memTokenRepo 内存令牌存储，Consume 为原子比较并删除
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]time.Duration
	err    error
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: make(map[string]time.Duration)}
}

func (r *memTokenRepo) Save(_ context.Context, token string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tokens[token] = ttl
	return nil
}

func (r *memTokenRepo) Consume(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if _, ok := r.tokens[token]; !ok {
		return false, nil
	}
	delete(r.tokens, token)
	return true, nil
}

type seqBizNo struct {
	mu  sync.Mutex
	seq int
}

func (g *seqBizNo) Generate(_ context.Context, businessType string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("20261015120000%s%06d", businessType, g.seq), nil
}

// memLocker 单次尝试的内存互斥锁
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, orderErrors.ErrOrderBusy
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type memPublisher struct {
	mu        sync.Mutex
	err       error
	published []string
}

func (p *memPublisher) PublishOrderCreated(_ context.Context, orderSn string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, orderSn)
	return nil
}

type memCartRepo struct {
	mu      sync.Mutex
	items   map[int64][]*CartItem
	removed []int64
}

func (r *memCartRepo) ListCartItems(_ context.Context, memberID int64) ([]*CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[memberID], nil
}

func (r *memCartRepo) RemoveCheckedItems(_ context.Context, memberID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, memberID)
	return nil
}

type mockSkuGateway struct {
	mock.Mock
}

func (m *mockSkuGateway) GetSku(ctx context.Context, skuID int64) (*Sku, error) {
	args := m.Called(ctx, skuID)
	sku, _ := args.Get(0).(*Sku)
	return sku, args.Error(1)
}

func (m *mockSkuGateway) LockStock(ctx context.Context, orderToken string, locks []*SkuLock) error {
	return m.Called(ctx, orderToken, locks).Error(0)
}

func (m *mockSkuGateway) DeductStock(ctx context.Context, orderToken string) error {
	return m.Called(ctx, orderToken).Error(0)
}

func (m *mockSkuGateway) UnlockStock(ctx context.Context, orderToken string) error {
	return m.Called(ctx, orderToken).Error(0)
}

type mockAddressGateway struct {
	mock.Mock
}

func (m *mockAddressGateway) ListAddresses(ctx context.Context, memberID int64) ([]*Address, error) {
	args := m.Called(ctx, memberID)
	addresses, _ := args.Get(0).([]*Address)
	return addresses, args.Error(1)
}

type mockMemberGateway struct {
	mock.Mock
}

func (m *mockMemberGateway) DeductBalance(ctx context.Context, memberID, amount int64, orderSn, requestID string) error {
	return m.Called(ctx, memberID, amount, orderSn, requestID).Error(0)
}

func (m *mockMemberGateway) RefundBalance(ctx context.Context, memberID, amount int64, orderSn, requestID string) error {
	return m.Called(ctx, memberID, amount, orderSn, requestID).Error(0)
}

// testEnv 组装好依赖的订单 UseCase
type testEnv struct {
	uc        *OrderUseCase
	reconcile *ReconcileUseCase
	orders    *memOrderRepo
	sagas     *memSagaRepo
	tokens    *memTokenRepo
	locker    *memLocker
	events    *memPublisher
	carts     *memCartRepo
	skus      *mockSkuGateway
	addresses *mockAddressGateway
	members   *mockMemberGateway
}

func newTestEnv() *testEnv {
	env := &testEnv{
		orders:    newMemOrderRepo(),
		sagas:     newMemSagaRepo(),
		tokens:    newMemTokenRepo(),
		locker:    newMemLocker(),
		events:    &memPublisher{},
		carts:     &memCartRepo{items: make(map[int64][]*CartItem)},
		skus:      &mockSkuGateway{},
		addresses: &mockAddressGateway{},
		members:   &mockMemberGateway{},
	}
	conf := NewOrderConfig(nil)
	saga := NewSagaCoordinator(env.sagas, log.DefaultLogger)
	env.uc = NewOrderUseCase(env.orders, env.tokens, &seqBizNo{}, env.skus, env.addresses, env.members,
		env.carts, env.events, env.locker, saga, conf, log.DefaultLogger)
	env.reconcile = NewReconcileUseCase(env.uc, env.orders, saga, env.locker, conf, log.DefaultLogger)
	return env
}

// overdueOrder 写入一笔已超过支付时限的待支付订单
func (env *testEnv) overdueOrder(memberID int64, orderSn string, payAmount int64) *Order {
	order := env.pendingOrder(memberID, orderSn, payAmount)
	order.CreatedAt = time.Now().Add(-time.Hour)
	return env.orders.put(order)
}

// pendingOrder 写入一笔待支付订单
func (env *testEnv) pendingOrder(memberID int64, orderSn string, payAmount int64) *Order {
	return env.orders.put(&Order{
		OrderSn:       orderSn,
		MemberID:      memberID,
		Status:        OrderStatusPendingPayment,
		SourceType:    OrderSourceApp,
		TotalQuantity: 1,
		TotalAmount:   payAmount,
		PayAmount:     payAmount,
		CreatedAt:     time.Now(),
		Items: []*OrderItem{{
			SkuID:         1,
			SkuPrice:      payAmount,
			SkuQuantity:   1,
			SkuTotalPrice: payAmount,
		}},
	})
}
