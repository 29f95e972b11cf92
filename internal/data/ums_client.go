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

// addressDTO 会员收货地址
type addressDTO struct {
	ID              int64  `json:"id"`
	ConsigneeName   string `json:"consigneeName"`
	ConsigneeMobile string `json:"consigneeMobile"`
	Province        string `json:"province"`
	City            string `json:"city"`
	District        string `json:"district"`
	DetailAddress   string `json:"detailAddress"`
	DefaultFlag     int32  `json:"defaultFlag"`
}

// balanceDTO 余额变动请求，requestId 用于下游幂等
type balanceDTO struct {
	Amount    int64  `json:"amount"`
	OrderSn   string `json:"orderSn"`
	RequestID string `json:"requestId"`
}

// UmsClient 会员服务（地址、余额）客户端
type UmsClient struct {
	client *resty.Client
	log    *log.Helper
}

// NewUmsClient 创建会员服务客户端
func NewUmsClient(c *conf.Bootstrap, logger log.Logger) (*UmsClient, error) {
	if c.Gateway == nil || c.Gateway.Ums == nil || c.Gateway.Ums.Endpoint == "" {
		return nil, fmt.Errorf("ums gateway config is nil")
	}
	return &UmsClient{
		client: newRestyClient(c.Gateway.Ums),
		log:    log.NewHelper(logger),
	}, nil
}

// ListAddresses 查询会员收货地址
func (c *UmsClient) ListAddresses(ctx context.Context, memberID int64) ([]*biz.Address, error) {
	res, err := execute(c.client.R().
		SetContext(ctx).
		SetPathParam("memberId", strconv.FormatInt(memberID, 10)), http.MethodGet, "/app-api/v1/members/{memberId}/addresses")
	if err != nil {
		c.log.Errorf("ListAddresses failed: memberId=%d, error=%v", memberID, err)
		return nil, err
	}
	if res != nil && !res.ok() {
		return nil, orderErrors.Remote(rejection(res))
	}
	if res == nil || len(res.Data) == 0 || string(res.Data) == "null" {
		return []*biz.Address{}, nil
	}

	var dtos []*addressDTO
	if err := json.Unmarshal(res.Data, &dtos); err != nil {
		return nil, orderErrors.Remote(fmt.Errorf("decode addresses of member %d: %w", memberID, err))
	}
	addresses := make([]*biz.Address, 0, len(dtos))
	for _, d := range dtos {
		addresses = append(addresses, &biz.Address{
			ID:              d.ID,
			ConsigneeName:   d.ConsigneeName,
			ConsigneeMobile: d.ConsigneeMobile,
			Province:        d.Province,
			City:            d.City,
			District:        d.District,
			DetailAddress:   d.DetailAddress,
			DefaultFlag:     d.DefaultFlag == 1,
		})
	}
	return addresses, nil
}

// DeductBalance 扣减会员余额
func (c *UmsClient) DeductBalance(ctx context.Context, memberID, amount int64, orderSn, requestID string) error {
	res, err := c.balance(ctx, memberID, "deduct", amount, orderSn, requestID)
	if err != nil {
		return err
	}
	switch {
	case res != nil && res.ok():
		return nil
	case res != nil && res.Code == constants.GatewayCodeInsufficientBalance:
		return orderErrors.ErrInsufficientBalance
	default:
		c.log.Warnf("DeductBalance rejected: memberId=%d, orderSn=%s, result=%+v", memberID, orderSn, res)
		return orderErrors.ErrPaymentFailed.WithCause(rejection(res))
	}
}

// RefundBalance 退回已扣减的余额
func (c *UmsClient) RefundBalance(ctx context.Context, memberID, amount int64, orderSn, requestID string) error {
	res, err := c.balance(ctx, memberID, "refund", amount, orderSn, requestID)
	if err != nil {
		return err
	}
	if res == nil || !res.ok() {
		c.log.Errorf("RefundBalance rejected: memberId=%d, orderSn=%s, result=%+v", memberID, orderSn, res)
		return orderErrors.Remote(rejection(res))
	}
	return nil
}

func (c *UmsClient) balance(ctx context.Context, memberID int64, op string, amount int64, orderSn, requestID string) (*gatewayResult, error) {
	return execute(c.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"memberId": strconv.FormatInt(memberID, 10),
			"op":       op,
		}).
		SetBody(&balanceDTO{Amount: amount, OrderSn: orderSn, RequestID: requestID}), http.MethodPut, "/app-api/v1/members/{memberId}/balances/{op}")
}
