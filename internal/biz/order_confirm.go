package biz

import (
	"context"
	"fmt"
	"time"

	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"

	"golang.org/x/sync/errgroup"
)

// ConfirmRequest 订单确认请求，SkuID 为空时使用购物车中勾选的商品
type ConfirmRequest struct {
	MemberID int64
	SkuID    int64
	Count    int32
}

// OrderConfirmView 订单确认视图
type OrderConfirmView struct {
	OrderToken string
	OrderItems []*OrderItem
	Addresses  []*Address
}

// Confirm 订单确认：并发获取商品、地址并生成订单号，全部成功后保存为下单令牌
func (uc *OrderUseCase) Confirm(ctx context.Context, req *ConfirmRequest) (*OrderConfirmView, error) {
	start := time.Now()
	source := "cart"
	if req.SkuID > 0 {
		source = "sku"
	}

	var (
		items     []*OrderItem
		addresses []*Address
		token     string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return uc.bounded(gctx, func() (err error) {
			items, err = uc.confirmItems(gctx, req)
			return err
		})
	})
	g.Go(func() error {
		return uc.bounded(gctx, func() (err error) {
			addresses, err = uc.addresses.ListAddresses(gctx, req.MemberID)
			return err
		})
	})
	g.Go(func() error {
		return uc.bounded(gctx, func() (err error) {
			token, err = uc.bizNo.Generate(gctx, constants.BusinessTypeOrder)
			return err
		})
	})
	err := g.Wait()
	if err == nil {
		// 全部成功后才保存令牌
		err = uc.tokens.Save(ctx, token, uc.conf.TokenTTL)
	}

	uc.metrics.ConfirmDuration.Observe(time.Since(start).Seconds())
	uc.metrics.ConfirmTotal.WithLabelValues(source, resultLabel(err)).Inc()
	if err != nil {
		uc.log.Errorf("Confirm failed: memberId=%d, skuId=%d, error=%v", req.MemberID, req.SkuID, err)
		return nil, err
	}

	return &OrderConfirmView{
		OrderToken: token,
		OrderItems: items,
		Addresses:  addresses,
	}, nil
}

// bounded 在全局并发上限内执行 fn
func (uc *OrderUseCase) bounded(ctx context.Context, fn func() error) error {
	if err := uc.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer uc.sem.Release(1)
	return fn()
}

// confirmItems 直接购买时查询 SKU 当前价格，否则取购物车勾选商品
func (uc *OrderUseCase) confirmItems(ctx context.Context, req *ConfirmRequest) ([]*OrderItem, error) {
	if req.SkuID > 0 {
		if req.Count <= 0 {
			return nil, orderErrors.ErrInvalidItem
		}
		sku, err := uc.skus.GetSku(ctx, req.SkuID)
		if err != nil {
			return nil, err
		}
		if sku == nil {
			return nil, orderErrors.ErrInvalidItem.WithCause(fmt.Errorf("sku %d not found", req.SkuID))
		}
		return []*OrderItem{{
			SkuID:         sku.ID,
			SkuSn:         sku.SkuSn,
			SkuName:       sku.Name,
			SkuPic:        sku.PicURL,
			SpuName:       sku.SpuName,
			SkuPrice:      sku.Price,
			SkuQuantity:   req.Count,
			SkuTotalPrice: sku.Price * int64(req.Count),
		}}, nil
	}

	cartItems, err := uc.carts.ListCartItems(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	items := make([]*OrderItem, 0, len(cartItems))
	for _, c := range cartItems {
		if !c.Checked {
			continue
		}
		items = append(items, &OrderItem{
			SkuID:         c.SkuID,
			SkuSn:         c.SkuSn,
			SkuName:       c.SkuName,
			SkuPic:        c.PicURL,
			SpuName:       c.SpuName,
			SkuPrice:      c.Price,
			SkuQuantity:   c.Count,
			SkuTotalPrice: c.Price * int64(c.Count),
		})
	}
	return items, nil
}
