package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	orderErrors "order-service/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPay_Success(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	env.members.On("DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)
	env.skus.On("DeductStock", mock.Anything, "SN1").Return(nil)

	require.NoError(t, env.uc.Pay(context.Background(), 1, order.ID))

	got, err := env.orders.GetOrderBySn(context.Background(), "SN1")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, got.Status)
	assert.Equal(t, PayTypeBalance, got.PayType)
	assert.NotNil(t, got.PaidAt)
	assert.Equal(t, []int64{1}, env.carts.removed)
	env.members.AssertNotCalled(t, "RefundBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	inst := env.sagas.byName(SagaOrderPay)
	require.NotNil(t, inst)
	assert.Equal(t, SagaStatusCompleted, inst.Status)
	// 扣款请求号即 saga ID，下游据此幂等
	env.members.AssertCalled(t, "DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", inst.ID)

	err = env.uc.Pay(context.Background(), 1, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrInvalidState))
}

func TestPay_InsufficientBalance(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	env.members.On("DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(orderErrors.ErrInsufficientBalance)

	err := env.uc.Pay(context.Background(), 1, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrInsufficientBalance))
	assert.Equal(t, OrderStatusPendingPayment, env.orders.status("SN1"))
	env.skus.AssertNotCalled(t, "DeductStock", mock.Anything, mock.Anything)
	env.members.AssertNotCalled(t, "RefundBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, env.carts.removed)
}

func TestPay_StockDeductionFailureRefunds(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	env.members.On("DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)
	env.members.On("RefundBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)
	env.skus.On("DeductStock", mock.Anything, "SN1").Return(orderErrors.ErrStockDeductionFailed)

	err := env.uc.Pay(context.Background(), 1, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrStockDeductionFailed))
	assert.Equal(t, OrderStatusPendingPayment, env.orders.status("SN1"))
	env.members.AssertNumberOfCalls(t, "RefundBalance", 1)
	assert.Equal(t, SagaStatusCompensated, env.sagas.byName(SagaOrderPay).Status)
}

func TestPay_StockDeductionUncertainRetriesForward(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	env.members.On("DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)
	env.skus.On("DeductStock", mock.Anything, "SN1").Return(orderErrors.Remote(context.DeadlineExceeded)).Once()
	env.skus.On("DeductStock", mock.Anything, "SN1").Return(nil)

	err := env.uc.Pay(context.Background(), 1, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrRemoteUnavailable))
	// 扣库存结果未知，不退款，等待向前重试
	env.members.AssertNotCalled(t, "RefundBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, OrderStatusPendingPayment, env.orders.status("SN1"))
	inst := env.sagas.byName(SagaOrderPay)
	require.NotNil(t, inst)
	assert.Equal(t, SagaStatusRetrying, inst.Status)
	assert.Equal(t, 1, inst.DoneSteps)

	env.reconcile.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err := env.reconcile.RecoverSagas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, OrderStatusPaid, env.orders.status("SN1"))
	env.skus.AssertNumberOfCalls(t, "DeductStock", 2)
	env.members.AssertNumberOfCalls(t, "DeductBalance", 1)
	env.members.AssertNotCalled(t, "RefundBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPay_RetryResumesInterruptedPayment(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	env.orders.failUpdates(1, errors.New("db down"))
	env.members.On("DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)
	env.skus.On("DeductStock", mock.Anything, "SN1").Return(nil)

	require.Error(t, env.uc.Pay(context.Background(), 1, order.ID))
	assert.Equal(t, OrderStatusPendingPayment, env.orders.status("SN1"))
	inst := env.sagas.byName(SagaOrderPay)
	require.NotNil(t, inst)
	assert.Equal(t, SagaStatusRetrying, inst.Status)

	require.NoError(t, env.uc.Pay(context.Background(), 1, order.ID))
	assert.Equal(t, OrderStatusPaid, env.orders.status("SN1"))
	env.members.AssertNumberOfCalls(t, "DeductBalance", 1)
	env.members.AssertNotCalled(t, "RefundBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.skus.AssertNumberOfCalls(t, "DeductStock", 1)

	resumed := env.sagas.byName(SagaOrderPay)
	assert.Equal(t, inst.ID, resumed.ID)
	assert.Equal(t, SagaStatusCompleted, resumed.Status)
	assert.Equal(t, []int64{1}, env.carts.removed)
}

func TestPay_RetryAfterRefundStartsNewPayment(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	env.members.On("DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)
	env.members.On("RefundBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)
	env.skus.On("DeductStock", mock.Anything, "SN1").Return(orderErrors.ErrStockDeductionFailed).Once()
	env.skus.On("DeductStock", mock.Anything, "SN1").Return(nil)

	err := env.uc.Pay(context.Background(), 1, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrStockDeductionFailed))
	require.NoError(t, env.uc.Pay(context.Background(), 1, order.ID))
	assert.Equal(t, OrderStatusPaid, env.orders.status("SN1"))

	// 两次扣款使用不同的请求号，退款只对应第一次
	require.Len(t, env.members.Calls, 3)
	first := env.members.Calls[0].Arguments.String(4)
	refunded := env.members.Calls[1].Arguments.String(4)
	second := env.members.Calls[2].Arguments.String(4)
	assert.Equal(t, first, refunded)
	assert.NotEqual(t, first, second)
}

func TestPay_BalanceTimeoutRefunds(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	env.members.On("DeductBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(orderErrors.Remote(context.DeadlineExceeded))
	env.members.On("RefundBalance", mock.Anything, int64(1), int64(1000), "SN1", mock.Anything).Return(nil)

	err := env.uc.Pay(context.Background(), 1, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrRemoteUnavailable))
	// 扣款结果未知，按已扣款处理并退回
	env.members.AssertNumberOfCalls(t, "RefundBalance", 1)
	env.skus.AssertNotCalled(t, "DeductStock", mock.Anything, mock.Anything)
}

func TestPay_CancelledOrder(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)
	order.Status = OrderStatusUserCancel
	env.orders.put(order)

	err := env.uc.Pay(context.Background(), 1, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrInvalidState))
	env.members.AssertNotCalled(t, "DeductBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPay_NotOwned(t *testing.T) {
	env := newTestEnv()
	order := env.pendingOrder(1, "SN1", 1000)

	err := env.uc.Pay(context.Background(), 2, order.ID)
	assert.True(t, errors.Is(err, orderErrors.ErrOrderNotFound))
}
