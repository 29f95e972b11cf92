package biz

import (
	"context"
	"time"

	orderErrors "order-service/internal/errors"
)

// Pay 余额支付
// 扣余额 -> 扣库存 -> 改为已支付；扣库存失败时退回余额。
// 同一订单同时只有一个未结束的支付 saga，扣款请求号取 saga ID。
func (uc *OrderUseCase) Pay(ctx context.Context, memberID, orderID int64) (err error) {
	start := time.Now()
	defer func() {
		uc.metrics.PayDuration.Observe(time.Since(start).Seconds())
		uc.metrics.PayTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	order, err := uc.ownedOrder(ctx, memberID, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusPendingPayment {
		return orderErrors.ErrInvalidState
	}

	err = uc.withOrderLock(ctx, order.OrderSn, func() error {
		// 上次支付中断时继续推进原 saga，沿用原扣款请求号
		resumed, err := uc.resumePayment(ctx, order.OrderSn)
		if err != nil {
			return err
		}
		order, err := uc.ownedOrder(ctx, memberID, orderID)
		if err != nil {
			return err
		}
		if !resumed || order.Status != OrderStatusPaid {
			if order.Status != OrderStatusPendingPayment {
				return orderErrors.ErrInvalidState
			}
			if err := uc.saga.Execute(ctx, SagaOrderPay, order.OrderSn, &SagaPayload{
				OrderID:   order.ID,
				OrderSn:   order.OrderSn,
				MemberID:  order.MemberID,
				PayAmount: order.PayAmount,
			}); err != nil {
				return err
			}
		}
		uc.metrics.PayAmount.Add(float64(order.PayAmount))
		uc.log.Infof("order paid: orderId=%d, orderSn=%s, memberId=%d, payAmount=%d, resumed=%t", order.ID, order.OrderSn, order.MemberID, order.PayAmount, resumed)

		// 清理购物车勾选商品，失败不影响支付结果
		if err := uc.carts.RemoveCheckedItems(ctx, order.MemberID); err != nil {
			uc.log.Warnf("remove checked cart items failed: memberId=%d, error=%v", order.MemberID, err)
		}
		return nil
	})
	if err != nil {
		uc.log.Errorf("Pay failed: orderId=%d, memberId=%d, error=%v", orderID, memberID, err)
	}
	return err
}

// paySaga 扣余额(可退款) -> 扣库存(关键步骤) -> 改为已支付(可重试)
func (uc *OrderUseCase) paySaga() *SagaDefinition {
	return &SagaDefinition{
		Name: SagaOrderPay,
		Steps: []SagaStep{
			{
				Name: "deduct_balance",
				Action: func(ctx context.Context, p *SagaPayload) error {
					return uc.members.DeductBalance(ctx, p.MemberID, p.PayAmount, p.OrderSn, p.SagaID)
				},
				Compensate: func(ctx context.Context, p *SagaPayload) error {
					return uc.members.RefundBalance(ctx, p.MemberID, p.PayAmount, p.OrderSn, p.SagaID)
				},
			},
			{
				Name:  "deduct_stock",
				Pivot: true,
				Action: func(ctx context.Context, p *SagaPayload) error {
					return uc.skus.DeductStock(ctx, p.OrderSn)
				},
			},
			{
				Name:   "mark_paid",
				Action: uc.markStatus(func(*SagaPayload) OrderStatus { return OrderStatusPaid }),
			},
		},
	}
}
