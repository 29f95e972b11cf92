package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"order-service/internal/biz"
	"order-service/internal/conf"
	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-resty/resty/v2"
)

// skuDTO 商品服务 SKU
type skuDTO struct {
	ID       int64  `json:"id"`
	SkuSn    string `json:"skuSn"`
	Name     string `json:"name"`
	SpuName  string `json:"spuName"`
	Price    int64  `json:"price"`
	PicURL   string `json:"picUrl"`
	StockNum int32  `json:"stockNum"`
}

// skuLockDTO 锁定库存请求
type skuLockDTO struct {
	SkuID      int64  `json:"skuId"`
	Count      int32  `json:"count"`
	OrderToken string `json:"orderToken"`
}

// PmsClient 商品服务（价格、库存）客户端
type PmsClient struct {
	client *resty.Client
	log    *log.Helper
}

// NewPmsClient 创建商品服务客户端
func NewPmsClient(c *conf.Bootstrap, logger log.Logger) (*PmsClient, error) {
	if c.Gateway == nil || c.Gateway.Pms == nil || c.Gateway.Pms.Endpoint == "" {
		return nil, fmt.Errorf("pms gateway config is nil")
	}
	return &PmsClient{
		client: newRestyClient(c.Gateway.Pms),
		log:    log.NewHelper(logger),
	}, nil
}

// GetSku 查询 SKU 当前价格与信息
func (c *PmsClient) GetSku(ctx context.Context, skuID int64) (*biz.Sku, error) {
	res, err := execute(c.client.R().
		SetContext(ctx).
		SetPathParam("skuId", strconv.FormatInt(skuID, 10)), http.MethodGet, "/app-api/v1/skus/{skuId}")
	if err != nil {
		c.log.Errorf("GetSku failed: skuId=%d, error=%v", skuID, err)
		return nil, err
	}
	if res == nil || !res.ok() || len(res.Data) == 0 || string(res.Data) == "null" {
		return nil, nil
	}

	var dto skuDTO
	if err := json.Unmarshal(res.Data, &dto); err != nil {
		return nil, orderErrors.Remote(fmt.Errorf("decode sku %d: %w", skuID, err))
	}
	return &biz.Sku{
		ID:       dto.ID,
		SkuSn:    dto.SkuSn,
		Name:     dto.Name,
		SpuName:  dto.SpuName,
		Price:    dto.Price,
		PicURL:   dto.PicURL,
		StockNum: dto.StockNum,
	}, nil
}

// LockStock 锁定库存，商品服务保证全部成功或全部失败
func (c *PmsClient) LockStock(ctx context.Context, orderToken string, locks []*biz.SkuLock) error {
	body := make([]*skuLockDTO, 0, len(locks))
	for _, l := range locks {
		body = append(body, &skuLockDTO{SkuID: l.SkuID, Count: l.Count, OrderToken: orderToken})
	}
	res, err := execute(c.client.R().SetContext(ctx).SetBody(body), http.MethodPut, "/app-api/v1/skus/lock")
	if err != nil {
		return err
	}
	switch {
	case res != nil && res.ok():
		return nil
	case res == nil || res.Code == constants.GatewayCodeStockInsufficient:
		c.log.Warnf("LockStock rejected: orderToken=%s, result=%+v", orderToken, res)
		return orderErrors.ErrStockUnavailable.WithCause(rejection(res))
	default:
		// 其他拒绝原因无法确认是否已部分锁定，按下游异常处理
		c.log.Errorf("LockStock failed: orderToken=%s, result=%+v", orderToken, res)
		return orderErrors.Remote(rejection(res))
	}
}

// DeductStock 扣减订单锁定的库存
func (c *PmsClient) DeductStock(ctx context.Context, orderToken string) error {
	res, err := execute(c.client.R().
		SetContext(ctx).
		SetPathParam("orderToken", orderToken), http.MethodPut, "/app-api/v1/skus/{orderToken}/deduct")
	if err != nil {
		return err
	}
	if res == nil || !res.ok() {
		c.log.Warnf("DeductStock rejected: orderToken=%s, result=%+v", orderToken, res)
		return orderErrors.ErrStockDeductionFailed.WithCause(rejection(res))
	}
	return nil
}

// UnlockStock 释放订单锁定的库存
func (c *PmsClient) UnlockStock(ctx context.Context, orderToken string) error {
	res, err := execute(c.client.R().
		SetContext(ctx).
		SetPathParam("orderToken", orderToken), http.MethodPut, "/app-api/v1/skus/{orderToken}/unlock")
	if err != nil {
		return err
	}
	// 锁定记录不存在视为已释放
	if res == nil {
		return nil
	}
	if !res.ok() {
		c.log.Warnf("UnlockStock rejected: orderToken=%s, result=%+v", orderToken, res)
		return orderErrors.Remote(rejection(res))
	}
	return nil
}

func rejection(res *gatewayResult) error {
	if res == nil {
		return fmt.Errorf("resource not found")
	}
	return fmt.Errorf("code=%s, msg=%s", res.Code, res.Msg)
}
