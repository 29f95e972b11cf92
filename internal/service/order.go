package service

import (
	"context"
	"strconv"

	v1 "order-service/api/order/v1"
	"order-service/internal/biz"
	"order-service/internal/constants"
	orderErrors "order-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
)

const timeLayout = "2006-01-02 15:04:05"

// OrderService 订单 APP 接口与内部关单接口
type OrderService struct {
	uc  *biz.OrderUseCase
	log *log.Helper
}

var (
	_ v1.OrderServiceHTTPServer         = (*OrderService)(nil)
	_ v1.OrderInternalServiceHTTPServer = (*OrderService)(nil)
)

// NewOrderService 创建 OrderService
func NewOrderService(uc *biz.OrderUseCase, logger log.Logger) *OrderService {
	return &OrderService{
		uc:  uc,
		log: log.NewHelper(logger),
	}
}

// ConfirmOrder 订单确认
func (s *OrderService) ConfirmOrder(ctx context.Context, req *v1.ConfirmOrderRequest) (*v1.ConfirmOrderReply, error) {
	memberID, err := memberFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.uc.Confirm(ctx, &biz.ConfirmRequest{
		MemberID: memberID,
		SkuID:    req.SkuId,
		Count:    req.Count,
	})
	if err != nil {
		return nil, err
	}

	reply := &v1.ConfirmOrderReply{
		OrderToken: view.OrderToken,
		OrderItems: toOrderItems(view.OrderItems),
		Addresses:  make([]*v1.Address, 0, len(view.Addresses)),
	}
	for _, a := range view.Addresses {
		reply.Addresses = append(reply.Addresses, &v1.Address{
			Id:              a.ID,
			ConsigneeName:   a.ConsigneeName,
			ConsigneeMobile: a.ConsigneeMobile,
			Province:        a.Province,
			City:            a.City,
			District:        a.District,
			DetailAddress:   a.DetailAddress,
			DefaultFlag:     a.DefaultFlag,
		})
	}
	return reply, nil
}

// SubmitOrder 提交订单
func (s *OrderService) SubmitOrder(ctx context.Context, req *v1.SubmitOrderRequest) (*v1.SubmitOrderReply, error) {
	memberID, err := memberFromContext(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*biz.OrderItem, 0, len(req.OrderItems))
	for _, i := range req.OrderItems {
		if i == nil {
			continue
		}
		items = append(items, &biz.OrderItem{
			SkuID:       i.SkuId,
			SkuPrice:    i.Price,
			SkuQuantity: i.Count,
		})
	}
	sourceType := req.SourceType
	if sourceType == 0 {
		sourceType = biz.OrderSourceApp
	}

	result, err := s.uc.Submit(ctx, &biz.SubmitRequest{
		MemberID:   memberID,
		OrderToken: req.OrderToken,
		Items:      items,
		TotalPrice: req.TotalPrice,
		PayAmount:  req.PayAmount,
		Remark:     req.Remark,
		SourceType: sourceType,
	})
	if err != nil {
		return nil, err
	}
	return &v1.SubmitOrderReply{OrderId: result.OrderID, OrderSn: result.OrderSn}, nil
}

// PayOrder 余额支付
func (s *OrderService) PayOrder(ctx context.Context, req *v1.OrderIdRequest) (*v1.Empty, error) {
	memberID, err := memberFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.uc.Pay(ctx, memberID, req.OrderId); err != nil {
		return nil, err
	}
	return &v1.Empty{}, nil
}

// CancelOrder 用户取消订单
func (s *OrderService) CancelOrder(ctx context.Context, req *v1.OrderIdRequest) (*v1.Empty, error) {
	memberID, err := memberFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.uc.CancelOrder(ctx, memberID, req.OrderId); err != nil {
		return nil, err
	}
	return &v1.Empty{}, nil
}

// DeleteOrder 删除已取消的订单
func (s *OrderService) DeleteOrder(ctx context.Context, req *v1.OrderIdRequest) (*v1.Empty, error) {
	memberID, err := memberFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.uc.DeleteOrder(ctx, memberID, req.OrderId); err != nil {
		return nil, err
	}
	return &v1.Empty{}, nil
}

// GetOrder 订单详情
func (s *OrderService) GetOrder(ctx context.Context, req *v1.OrderIdRequest) (*v1.Order, error) {
	memberID, err := memberFromContext(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.uc.GetOrder(ctx, memberID, req.OrderId)
	if err != nil {
		return nil, err
	}

	reply := &v1.Order{
		Id:            o.ID,
		OrderSn:       o.OrderSn,
		Status:        int32(o.Status),
		StatusText:    o.Status.String(),
		SourceType:    o.SourceType,
		TotalQuantity: o.TotalQuantity,
		TotalAmount:   o.TotalAmount,
		PayAmount:     o.PayAmount,
		PayType:       o.PayType,
		Remark:        o.Remark,
		CreatedAt:     o.CreatedAt.Format(timeLayout),
		OrderItems:    toOrderItems(o.Items),
	}
	if o.PaidAt != nil {
		reply.PaidAt = o.PaidAt.Format(timeLayout)
	}
	return reply, nil
}

// CloseOrder 超时关单（内部接口，延迟消息丢失或人工处理时调用）
func (s *OrderService) CloseOrder(ctx context.Context, req *v1.CloseOrderRequest) (*v1.CloseOrderReply, error) {
	if req.OrderSn == "" {
		return nil, orderErrors.ErrInvalidArgument
	}
	closed, err := s.uc.CloseOrder(ctx, req.OrderSn)
	if err != nil {
		return nil, err
	}
	return &v1.CloseOrderReply{Closed: closed}, nil
}

func toOrderItems(items []*biz.OrderItem) []*v1.OrderItem {
	out := make([]*v1.OrderItem, 0, len(items))
	for _, i := range items {
		out = append(out, &v1.OrderItem{
			SkuId:       i.SkuID,
			SkuSn:       i.SkuSn,
			SkuName:     i.SkuName,
			SpuName:     i.SpuName,
			PicUrl:      i.SkuPic,
			Price:       i.SkuPrice,
			Count:       i.SkuQuantity,
			TotalAmount: i.SkuTotalPrice,
		})
	}
	return out
}

// memberFromContext 从网关透传的请求头中获取会员 ID
func memberFromContext(ctx context.Context) (int64, error) {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return 0, orderErrors.ErrInvalidArgument
	}
	id, err := strconv.ParseInt(tr.RequestHeader().Get(constants.HeaderMemberID), 10, 64)
	if err != nil || id <= 0 {
		return 0, orderErrors.ErrInvalidArgument.WithCause(err)
	}
	return id, nil
}

