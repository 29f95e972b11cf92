package biz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	orderErrors "order-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "20261015120000100000001"

func submitRequest() *SubmitRequest {
	return &SubmitRequest{
		MemberID:   1,
		OrderToken: testToken,
		Items: []*OrderItem{
			{SkuID: 1, SkuQuantity: 2, SkuPrice: 1},
			{SkuID: 2, SkuQuantity: 1, SkuPrice: 1},
		},
		TotalPrice: 2*500 + 300,
		Remark:     "leave at door",
	}
}

func (env *testEnv) stubSkus() {
	env.skus.On("GetSku", mock.Anything, int64(1)).Return(&Sku{ID: 1, SkuSn: "S1", Name: "tea", Price: 500}, nil)
	env.skus.On("GetSku", mock.Anything, int64(2)).Return(&Sku{ID: 2, SkuSn: "S2", Name: "cup", Price: 300}, nil)
}

func TestSubmit_Success(t *testing.T) {
	env := newTestEnv()
	env.stubSkus()
	env.skus.On("LockStock", mock.Anything, testToken, mock.Anything).Return(nil)
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	result, err := env.uc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)
	assert.Equal(t, testToken, result.OrderSn)
	assert.NotZero(t, result.OrderID)

	order, err := env.orders.GetOrderBySn(context.Background(), testToken)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, OrderStatusPendingPayment, order.Status)
	assert.Equal(t, int64(1300), order.TotalAmount)
	assert.Equal(t, int64(1300), order.PayAmount)
	assert.Equal(t, int32(3), order.TotalQuantity)
	assert.Equal(t, OrderSourceApp, order.SourceType)
	assert.True(t, order.EventPublished)
	assert.Equal(t, []string{testToken}, env.events.published)

	env.skus.AssertCalled(t, "LockStock", mock.Anything, testToken, mock.MatchedBy(func(locks []*SkuLock) bool {
		return len(locks) == 2 && locks[0].SkuID == 1 && locks[0].Count == 2 && locks[1].Count == 1
	}))
	assert.Equal(t, SagaStatusCompleted, env.sagas.byName(SagaOrderSubmit).Status)
}

func TestSubmit_TokenConsumedOnce(t *testing.T) {
	env := newTestEnv()
	env.stubSkus()
	env.skus.On("LockStock", mock.Anything, testToken, mock.Anything).Return(nil)
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	_, err := env.uc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	_, err = env.uc.Submit(context.Background(), submitRequest())
	assert.True(t, errors.Is(err, orderErrors.ErrDuplicateSubmission))
	env.skus.AssertNumberOfCalls(t, "LockStock", 1)
}

func TestSubmit_ConcurrentSameToken(t *testing.T) {
	env := newTestEnv()
	env.stubSkus()
	env.skus.On("LockStock", mock.Anything, testToken, mock.Anything).Return(nil)
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	const n = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		duplicated int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.uc.Submit(context.Background(), submitRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, orderErrors.ErrDuplicateSubmission):
				duplicated++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, duplicated)
	assert.Equal(t, 1, env.orders.count())
	env.skus.AssertNumberOfCalls(t, "LockStock", 1)
}

func TestSubmit_MissingToken(t *testing.T) {
	env := newTestEnv()
	req := submitRequest()
	req.OrderToken = ""

	_, err := env.uc.Submit(context.Background(), req)
	assert.True(t, errors.Is(err, orderErrors.ErrDuplicateSubmission))

	req.OrderToken = "never-issued"
	_, err = env.uc.Submit(context.Background(), req)
	assert.True(t, errors.Is(err, orderErrors.ErrDuplicateSubmission))
}

func TestSubmit_TokenStoreUnavailable(t *testing.T) {
	env := newTestEnv()
	env.tokens.err = errors.New("connection refused")

	_, err := env.uc.Submit(context.Background(), submitRequest())
	assert.True(t, errors.Is(err, orderErrors.ErrRemoteUnavailable))
}

func TestSubmit_EmptyOrderConsumesToken(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))
	req := submitRequest()
	req.Items = nil

	_, err := env.uc.Submit(context.Background(), req)
	assert.True(t, errors.Is(err, orderErrors.ErrEmptyOrder))

	// 令牌不会恢复
	_, err = env.uc.Submit(context.Background(), submitRequest())
	assert.True(t, errors.Is(err, orderErrors.ErrDuplicateSubmission))
}

func TestSubmit_PriceMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *SubmitRequest)
	}{
		{"stale total", func(req *SubmitRequest) { req.TotalPrice = 1200 }},
		{"pay amount above total", func(req *SubmitRequest) { req.PayAmount = 1400 }},
		{"negative pay amount", func(req *SubmitRequest) { req.PayAmount = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.stubSkus()
			require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))
			req := submitRequest()
			tt.mutate(req)

			_, err := env.uc.Submit(context.Background(), req)
			assert.True(t, errors.Is(err, orderErrors.ErrPriceMismatch))
			env.skus.AssertNotCalled(t, "LockStock", mock.Anything, mock.Anything, mock.Anything)
			assert.Zero(t, env.orders.count())
		})
	}
}

func TestSubmit_DelistedSkuIsPriceMismatch(t *testing.T) {
	env := newTestEnv()
	env.skus.On("GetSku", mock.Anything, int64(1)).Return(nil, nil)
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	_, err := env.uc.Submit(context.Background(), submitRequest())
	assert.True(t, errors.Is(err, orderErrors.ErrPriceMismatch))
}

func TestSubmit_InvalidItem(t *testing.T) {
	env := newTestEnv()
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))
	req := submitRequest()
	req.Items[1].SkuQuantity = 0

	env.stubSkus()
	_, err := env.uc.Submit(context.Background(), req)
	assert.True(t, errors.Is(err, orderErrors.ErrInvalidItem))
}

func TestSubmit_StockUnavailable(t *testing.T) {
	env := newTestEnv()
	env.stubSkus()
	env.skus.On("LockStock", mock.Anything, testToken, mock.Anything).Return(orderErrors.ErrStockUnavailable)
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	_, err := env.uc.Submit(context.Background(), submitRequest())
	assert.True(t, errors.Is(err, orderErrors.ErrStockUnavailable))
	assert.Zero(t, env.orders.count())
	assert.Empty(t, env.events.published)
	env.skus.AssertNotCalled(t, "UnlockStock", mock.Anything, mock.Anything)
}

func TestSubmit_LockTimeoutReleasesStock(t *testing.T) {
	env := newTestEnv()
	env.stubSkus()
	env.skus.On("LockStock", mock.Anything, testToken, mock.Anything).Return(orderErrors.Remote(context.DeadlineExceeded))
	env.skus.On("UnlockStock", mock.Anything, testToken).Return(nil)
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	_, err := env.uc.Submit(context.Background(), submitRequest())
	assert.True(t, errors.Is(err, orderErrors.ErrRemoteUnavailable))
	env.skus.AssertCalled(t, "UnlockStock", mock.Anything, testToken)
	assert.Equal(t, SagaStatusCompensated, env.sagas.byName(SagaOrderSubmit).Status)
}

func TestSubmit_PersistFailureReleasesStock(t *testing.T) {
	env := newTestEnv()
	env.stubSkus()
	env.skus.On("LockStock", mock.Anything, testToken, mock.Anything).Return(nil)
	env.skus.On("UnlockStock", mock.Anything, testToken).Return(nil)
	env.orders.createErr = errors.New("deadlock")
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	_, err := env.uc.Submit(context.Background(), submitRequest())
	assert.Error(t, err)
	env.skus.AssertNumberOfCalls(t, "UnlockStock", 1)
	assert.Zero(t, env.orders.count())
	assert.Equal(t, SagaStatusCompensated, env.sagas.byName(SagaOrderSubmit).Status)
}

func TestSubmit_PublishFailureKeepsOrder(t *testing.T) {
	env := newTestEnv()
	env.stubSkus()
	env.skus.On("LockStock", mock.Anything, testToken, mock.Anything).Return(nil)
	env.events.err = errors.New("broker unreachable")
	require.NoError(t, env.tokens.Save(context.Background(), testToken, time.Minute))

	result, err := env.uc.Submit(context.Background(), submitRequest())
	require.NoError(t, err)

	order, _ := env.orders.GetOrderBySn(context.Background(), result.OrderSn)
	require.NotNil(t, order)
	assert.False(t, order.EventPublished)

	// 补偿任务重新投递
	env.events.err = nil
	env.reconcile.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	n, err := env.reconcile.RepublishOrderEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	order, _ = env.orders.GetOrderBySn(context.Background(), result.OrderSn)
	assert.True(t, order.EventPublished)
}
