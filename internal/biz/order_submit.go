package biz

import (
	"context"
	"fmt"
	"time"

	orderErrors "order-service/internal/errors"
)

// SubmitRequest 提交订单请求，金额单位：分
type SubmitRequest struct {
	MemberID   int64
	OrderToken string
	Items      []*OrderItem // 客户端提交的商品，只信任 SkuID 与 SkuQuantity
	TotalPrice int64        // 客户端计算的总价
	PayAmount  int64        // 应付金额，0 表示与总价一致
	Remark     string
	SourceType int32
}

// SubmitResult 提交订单结果
type SubmitResult struct {
	OrderID int64
	OrderSn string
}

// Submit 提交订单
// 令牌一经消费不会恢复，后续任一步骤失败都需要客户端重新确认订单。
func (uc *OrderUseCase) Submit(ctx context.Context, req *SubmitRequest) (result *SubmitResult, err error) {
	start := time.Now()
	defer func() {
		uc.metrics.SubmitDuration.Observe(time.Since(start).Seconds())
		uc.metrics.SubmitTotal.WithLabelValues(resultLabel(err)).Inc()
		if err != nil {
			uc.log.Warnf("Submit failed: memberId=%d, orderSn=%s, error=%v", req.MemberID, req.OrderToken, err)
		}
	}()

	// 1. 原子消费令牌
	if err := uc.consumeToken(ctx, req.OrderToken); err != nil {
		return nil, err
	}

	// 2. 非空校验
	if len(req.Items) == 0 {
		return nil, orderErrors.ErrEmptyOrder
	}

	// 3. 按当前价格重新计价
	order, err := uc.priceOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	// 4-5. 锁定库存并落库
	locks := make([]*SkuLock, 0, len(order.Items))
	for _, item := range order.Items {
		locks = append(locks, &SkuLock{
			SkuID:      item.SkuID,
			Count:      item.SkuQuantity,
			OrderToken: order.OrderSn,
		})
	}
	payload := &SagaPayload{
		OrderSn:   order.OrderSn,
		MemberID:  order.MemberID,
		PayAmount: order.PayAmount,
		Order:     order,
		Locks:     locks,
	}
	if err := uc.saga.Execute(ctx, SagaOrderSubmit, order.OrderSn, payload); err != nil {
		return nil, err
	}

	// 6. 发布 order.create，失败不回滚，由补偿任务重新投递
	uc.publishOrderCreated(ctx, order.OrderSn)

	uc.log.Infof("order submitted: orderId=%d, orderSn=%s, memberId=%d, totalAmount=%d", order.ID, order.OrderSn, order.MemberID, order.TotalAmount)
	return &SubmitResult{OrderID: order.ID, OrderSn: order.OrderSn}, nil
}

func (uc *OrderUseCase) consumeToken(ctx context.Context, token string) error {
	if token == "" {
		uc.metrics.TokenConsumeTotal.WithLabelValues("rejected").Inc()
		return orderErrors.ErrDuplicateSubmission
	}
	consumed, err := uc.tokens.Consume(ctx, token)
	if err != nil {
		uc.metrics.TokenConsumeTotal.WithLabelValues("error").Inc()
		return orderErrors.Remote(fmt.Errorf("consume order token: %w", err))
	}
	if !consumed {
		uc.metrics.TokenConsumeTotal.WithLabelValues("rejected").Inc()
		return orderErrors.ErrDuplicateSubmission
	}
	uc.metrics.TokenConsumeTotal.WithLabelValues("consumed").Inc()
	return nil
}

// priceOrder 以商品服务的当前价格构建订单，与客户端总价不一致时拒绝
func (uc *OrderUseCase) priceOrder(ctx context.Context, req *SubmitRequest) (*Order, error) {
	order := &Order{
		OrderSn:    req.OrderToken,
		MemberID:   req.MemberID,
		Status:     OrderStatusPendingPayment,
		SourceType: req.SourceType,
		Remark:     req.Remark,
		Items:      make([]*OrderItem, 0, len(req.Items)),
	}
	if order.SourceType == 0 {
		order.SourceType = OrderSourceApp
	}

	for _, in := range req.Items {
		if in == nil || in.SkuID <= 0 || in.SkuQuantity <= 0 {
			return nil, orderErrors.ErrInvalidItem
		}
		sku, err := uc.skus.GetSku(ctx, in.SkuID)
		if err != nil {
			return nil, err
		}
		if sku == nil {
			// 商品已下架，按价格变动处理
			return nil, orderErrors.ErrPriceMismatch.WithCause(fmt.Errorf("sku %d not found", in.SkuID))
		}
		item := &OrderItem{
			SkuID:         sku.ID,
			SkuSn:         sku.SkuSn,
			SkuName:       sku.Name,
			SkuPic:        sku.PicURL,
			SpuName:       sku.SpuName,
			SkuPrice:      sku.Price,
			SkuQuantity:   in.SkuQuantity,
			SkuTotalPrice: sku.Price * int64(in.SkuQuantity),
		}
		order.Items = append(order.Items, item)
		order.TotalAmount += item.SkuTotalPrice
		order.TotalQuantity += item.SkuQuantity
	}

	if order.TotalAmount != req.TotalPrice {
		return nil, orderErrors.ErrPriceMismatch.WithCause(
			fmt.Errorf("claimed %d, current %d", req.TotalPrice, order.TotalAmount))
	}

	order.PayAmount = req.PayAmount
	if order.PayAmount == 0 {
		order.PayAmount = order.TotalAmount
	}
	if order.PayAmount < 0 || order.PayAmount > order.TotalAmount {
		return nil, orderErrors.ErrPriceMismatch.WithCause(
			fmt.Errorf("pay amount %d exceeds total %d", order.PayAmount, order.TotalAmount))
	}
	return order, nil
}

// submitSaga 锁库存 -> 写订单
func (uc *OrderUseCase) submitSaga() *SagaDefinition {
	return &SagaDefinition{
		Name: SagaOrderSubmit,
		Steps: []SagaStep{
			{
				Name: "lock_stock",
				Action: func(ctx context.Context, p *SagaPayload) error {
					return uc.skus.LockStock(ctx, p.OrderSn, p.Locks)
				},
				Compensate: func(ctx context.Context, p *SagaPayload) error {
					return uc.skus.UnlockStock(ctx, p.OrderSn)
				},
			},
			{
				Name: "persist_order",
				Action: func(ctx context.Context, p *SagaPayload) error {
					if err := uc.repo.CreateOrder(ctx, p.Order); err != nil {
						return err
					}
					p.OrderID = p.Order.ID
					return nil
				},
				Compensate: func(ctx context.Context, p *SagaPayload) error {
					return uc.repo.DeleteOrderBySn(ctx, p.OrderSn)
				},
			},
		},
	}
}

// publishOrderCreated 投递 order.create 并标记，失败只记录日志
func (uc *OrderUseCase) publishOrderCreated(ctx context.Context, orderSn string) bool {
	if err := uc.events.PublishOrderCreated(ctx, orderSn); err != nil {
		uc.metrics.EventPublishTotal.WithLabelValues("failed").Inc()
		uc.log.Errorf("publish order.create failed, will be republished by sweep: orderSn=%s, error=%v", orderSn, err)
		return false
	}
	uc.metrics.EventPublishTotal.WithLabelValues("success").Inc()
	if err := uc.repo.MarkEventPublished(ctx, orderSn); err != nil {
		// 重复投递时关单是幂等的
		uc.log.Warnf("mark order.create published failed: orderSn=%s, error=%v", orderSn, err)
	}
	return true
}
