package v1

import (
	context "context"

	http "github.com/go-kratos/kratos/v2/transport/http"
)

const OperationOrderServiceConfirmOrder = "/api.order.v1.OrderService/ConfirmOrder"
const OperationOrderServiceSubmitOrder = "/api.order.v1.OrderService/SubmitOrder"
const OperationOrderServicePayOrder = "/api.order.v1.OrderService/PayOrder"
const OperationOrderServiceCancelOrder = "/api.order.v1.OrderService/CancelOrder"
const OperationOrderServiceDeleteOrder = "/api.order.v1.OrderService/DeleteOrder"
const OperationOrderServiceGetOrder = "/api.order.v1.OrderService/GetOrder"
const OperationOrderInternalServiceCloseOrder = "/api.order.v1.OrderInternalService/CloseOrder"

// OrderServiceHTTPServer 面向 APP 的订单接口
type OrderServiceHTTPServer interface {
	ConfirmOrder(context.Context, *ConfirmOrderRequest) (*ConfirmOrderReply, error)
	SubmitOrder(context.Context, *SubmitOrderRequest) (*SubmitOrderReply, error)
	PayOrder(context.Context, *OrderIdRequest) (*Empty, error)
	CancelOrder(context.Context, *OrderIdRequest) (*Empty, error)
	DeleteOrder(context.Context, *OrderIdRequest) (*Empty, error)
	GetOrder(context.Context, *OrderIdRequest) (*Order, error)
}

// OrderInternalServiceHTTPServer 面向内部服务的订单接口
type OrderInternalServiceHTTPServer interface {
	CloseOrder(context.Context, *CloseOrderRequest) (*CloseOrderReply, error)
}

func RegisterOrderServiceHTTPServer(s *http.Server, srv OrderServiceHTTPServer) {
	r := s.Route("/")
	r.POST("/app-api/v1/orders/confirm", _OrderService_ConfirmOrder0_HTTP_Handler(srv))
	r.POST("/app-api/v1/orders/submit", _OrderService_SubmitOrder0_HTTP_Handler(srv))
	r.POST("/app-api/v1/orders/{orderId}/payment", _OrderService_PayOrder0_HTTP_Handler(srv))
	r.POST("/app-api/v1/orders/{orderId}/cancel", _OrderService_CancelOrder0_HTTP_Handler(srv))
	r.DELETE("/app-api/v1/orders/{orderId}", _OrderService_DeleteOrder0_HTTP_Handler(srv))
	r.GET("/app-api/v1/orders/{orderId}", _OrderService_GetOrder0_HTTP_Handler(srv))
}

func RegisterOrderInternalServiceHTTPServer(s *http.Server, srv OrderInternalServiceHTTPServer) {
	r := s.Route("/")
	r.POST("/internal/v1/orders/{orderSn}/close", _OrderInternalService_CloseOrder0_HTTP_Handler(srv))
}

func _OrderService_ConfirmOrder0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ConfirmOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderServiceConfirmOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ConfirmOrder(ctx, req.(*ConfirmOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*ConfirmOrderReply))
	}
}

func _OrderService_SubmitOrder0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in SubmitOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderServiceSubmitOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.SubmitOrder(ctx, req.(*SubmitOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*SubmitOrderReply))
	}
}

func _OrderService_PayOrder0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OrderIdRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderServicePayOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.PayOrder(ctx, req.(*OrderIdRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*Empty))
	}
}

func _OrderService_CancelOrder0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OrderIdRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderServiceCancelOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CancelOrder(ctx, req.(*OrderIdRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*Empty))
	}
}

func _OrderService_DeleteOrder0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OrderIdRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderServiceDeleteOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.DeleteOrder(ctx, req.(*OrderIdRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*Empty))
	}
}

func _OrderService_GetOrder0_HTTP_Handler(srv OrderServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in OrderIdRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderServiceGetOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetOrder(ctx, req.(*OrderIdRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*Order))
	}
}

func _OrderInternalService_CloseOrder0_HTTP_Handler(srv OrderInternalServiceHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CloseOrderRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationOrderInternalServiceCloseOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CloseOrder(ctx, req.(*CloseOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out.(*CloseOrderReply))
	}
}
