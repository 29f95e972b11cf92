package biz

import (
	"context"
	"errors"
	"time"

	orderErrors "order-service/internal/errors"
)

// CloseOrder 超时关单，订单不是待支付状态或未到支付时限时返回 false
// 关单与用户取消一样释放锁定的库存。
func (uc *OrderUseCase) CloseOrder(ctx context.Context, orderSn string) (bool, error) {
	order, err := uc.repo.GetOrderBySn(ctx, orderSn)
	if err != nil {
		return false, err
	}
	if order == nil || order.Status != OrderStatusPendingPayment {
		return false, nil
	}
	if !uc.payExpired(order) {
		// 延迟消息提前到达时不关单，由超时关单任务兜底
		uc.log.Warnf("skip closing order before pay deadline: orderSn=%s, deadline=%s", orderSn, order.CreatedAt.Add(uc.conf.PayTimeout).Format(time.RFC3339))
		return false, nil
	}

	closed := false
	err = uc.withOrderLock(ctx, orderSn, func() error {
		if err := uc.settlePayment(ctx, orderSn); err != nil {
			return err
		}
		order, err := uc.repo.GetOrderBySn(ctx, orderSn)
		if err != nil {
			return err
		}
		if order == nil || order.Status != OrderStatusPendingPayment {
			return nil
		}

		sagaErr := uc.saga.Execute(ctx, SagaOrderClose, orderSn, &SagaPayload{
			OrderID:      order.ID,
			OrderSn:      order.OrderSn,
			MemberID:     order.MemberID,
			TargetStatus: OrderStatusAutoCancel,
		})
		if sagaErr == nil {
			closed = true
			return nil
		}
		if errors.Is(sagaErr, orderErrors.ErrIllegalStateTransition) {
			return nil
		}
		// 状态已关闭但释放库存失败，由补偿任务继续释放
		current, err := uc.repo.GetOrderBySn(ctx, orderSn)
		if err == nil && current != nil && current.Status == OrderStatusAutoCancel {
			uc.log.Warnf("order closed but stock release pending: orderSn=%s, error=%v", orderSn, sagaErr)
			closed = true
			return nil
		}
		return sagaErr
	})
	if err != nil {
		uc.log.Errorf("CloseOrder failed: orderSn=%s, error=%v", orderSn, err)
		return false, err
	}
	if closed {
		uc.log.Infof("order auto cancelled: orderSn=%s", orderSn)
	}
	return closed, nil
}

// CancelOrder 用户取消订单并释放库存
// 释放库存失败时订单已是取消状态，返回错误，库存由补偿任务继续释放。
func (uc *OrderUseCase) CancelOrder(ctx context.Context, memberID, orderID int64) error {
	order, err := uc.ownedOrder(ctx, memberID, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusPendingPayment {
		return orderErrors.ErrInvalidState
	}

	return uc.withOrderLock(ctx, order.OrderSn, func() error {
		if err := uc.settlePayment(ctx, order.OrderSn); err != nil {
			return err
		}
		order, err := uc.ownedOrder(ctx, memberID, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderStatusPendingPayment {
			return orderErrors.ErrInvalidState
		}

		if err := uc.saga.Execute(ctx, SagaOrderCancel, order.OrderSn, &SagaPayload{
			OrderID:      order.ID,
			OrderSn:      order.OrderSn,
			MemberID:     order.MemberID,
			TargetStatus: OrderStatusUserCancel,
		}); err != nil {
			uc.log.Errorf("CancelOrder failed: orderId=%d, orderSn=%s, error=%v", order.ID, order.OrderSn, err)
			return err
		}
		uc.log.Infof("order cancelled by member: orderId=%d, orderSn=%s", order.ID, order.OrderSn)
		return nil
	})
}

// DeleteOrder 删除已取消的订单
func (uc *OrderUseCase) DeleteOrder(ctx context.Context, memberID, orderID int64) error {
	order, err := uc.ownedOrder(ctx, memberID, orderID)
	if err != nil {
		return err
	}
	if !order.Status.CanTransitTo(OrderStatusDeleted) {
		return orderErrors.ErrInvalidState
	}

	ok, err := uc.repo.DeleteOrder(ctx, order.ID, []OrderStatus{OrderStatusUserCancel, OrderStatusAutoCancel})
	if err != nil {
		uc.log.Errorf("DeleteOrder failed: orderId=%d, error=%v", orderID, err)
		return err
	}
	if !ok {
		return orderErrors.ErrOrderNotFound
	}
	uc.metrics.TransitionTotal.WithLabelValues(OrderStatusDeleted.String(), "success").Inc()
	return nil
}

// settlePayment 取消前先结束进行中的支付：扣库存后的支付向前完成，之前的退回余额
// 无法结束时返回 OrderBusy，订单保持待支付。
func (uc *OrderUseCase) settlePayment(ctx context.Context, orderSn string) error {
	if _, err := uc.resumePayment(ctx, orderSn); err != nil {
		uc.log.Warnf("unfinished payment blocks cancellation: orderSn=%s, error=%v", orderSn, err)
		return orderErrors.ErrOrderBusy.WithCause(err)
	}
	return nil
}

// cancelSaga 改为取消状态 -> 释放库存
// 状态一旦变更不再回滚，释放库存失败只能向前重试。
func (uc *OrderUseCase) cancelSaga(name string) *SagaDefinition {
	return &SagaDefinition{
		Name: name,
		Steps: []SagaStep{
			{
				Name:   "mark_cancelled",
				Pivot:  true,
				Action: uc.markStatus(func(p *SagaPayload) OrderStatus { return p.TargetStatus }),
			},
			{
				Name: "unlock_stock",
				Action: func(ctx context.Context, p *SagaPayload) error {
					return uc.skus.UnlockStock(ctx, p.OrderSn)
				},
			},
		},
	}
}

// markStatus 幂等地将订单流转到目标状态
func (uc *OrderUseCase) markStatus(target func(p *SagaPayload) OrderStatus) func(ctx context.Context, p *SagaPayload) error {
	return func(ctx context.Context, p *SagaPayload) error {
		order, err := uc.repo.GetOrderBySn(ctx, p.OrderSn)
		if err != nil {
			return err
		}
		if order == nil {
			return orderErrors.ErrOrderNotFound
		}
		to := target(p)
		if order.Status == to {
			return nil
		}
		if to == OrderStatusPaid {
			now := uc.now()
			order.PayType = PayTypeBalance
			order.PaidAt = &now
		}
		return uc.updateStatus(ctx, order, to)
	}
}
