package errors

import (
	"strconv"

	kratosErrors "github.com/go-kratos/kratos/v2/errors"
)

// Order Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Order 固定为 20
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   00: 通用模块
//   01: 下单模块
//   02: 订单状态模块
//   03: 支付模块
//   04: 下游服务
//
// 每个错误同时携带 HTTP 状态码与稳定的 Reason，业务码放在 metadata.biz_code 中。

// 通用模块错误码 (200000-200099)
const (
	// ErrCodeInternal 内部错误
	ErrCodeInternal = 200001
	// ErrCodeInvalidArgument 参数错误
	ErrCodeInvalidArgument = 200002
	// ErrCodeOrderBusy 订单正在被其他请求处理
	ErrCodeOrderBusy = 200003
)

// 下单模块错误码 (200100-200199)
const (
	// ErrCodeDuplicateSubmission 令牌缺失、过期或已被使用
	ErrCodeDuplicateSubmission = 200101
	// ErrCodeEmptyOrder 订单商品为空
	ErrCodeEmptyOrder = 200102
	// ErrCodePriceMismatch 订单价格与当前价格不一致
	ErrCodePriceMismatch = 200103
	// ErrCodeStockUnavailable 库存不足，锁定失败
	ErrCodeStockUnavailable = 200104
	// ErrCodeInvalidItem 订单商品参数非法
	ErrCodeInvalidItem = 200105
)

// 订单状态模块错误码 (200200-200299)
const (
	// ErrCodeOrderNotFound 订单不存在
	ErrCodeOrderNotFound = 200201
	// ErrCodeInvalidState 当前状态不允许该操作
	ErrCodeInvalidState = 200202
	// ErrCodeIllegalStateTransition 非法的状态流转
	ErrCodeIllegalStateTransition = 200203
)

// 支付模块错误码 (200300-200399)
const (
	// ErrCodeInsufficientBalance 余额不足
	ErrCodeInsufficientBalance = 200301
	// ErrCodePaymentFailed 支付失败
	ErrCodePaymentFailed = 200302
	// ErrCodeStockDeductionFailed 扣减库存失败
	ErrCodeStockDeductionFailed = 200303
)

// 下游服务错误码 (200400-200499)
const (
	// ErrCodeRemoteUnavailable 下游服务不可用或超时
	ErrCodeRemoteUnavailable = 200401
)

var (
	ErrInternal        = newError(500, ErrCodeInternal, "INTERNAL", "internal server error")
	ErrInvalidArgument = newError(400, ErrCodeInvalidArgument, "INVALID_ARGUMENT", "invalid argument")
	ErrOrderBusy       = newError(409, ErrCodeOrderBusy, "ORDER_BUSY", "order is being processed, please retry later")

	ErrDuplicateSubmission = newError(409, ErrCodeDuplicateSubmission, "DUPLICATE_SUBMISSION", "order token is missing, expired or already used, please confirm the order again")
	ErrEmptyOrder          = newError(400, ErrCodeEmptyOrder, "EMPTY_ORDER", "order has no items")
	ErrPriceMismatch       = newError(400, ErrCodePriceMismatch, "PRICE_MISMATCH", "order price has changed, please confirm the order again")
	ErrStockUnavailable    = newError(409, ErrCodeStockUnavailable, "STOCK_UNAVAILABLE", "insufficient stock")
	ErrInvalidItem         = newError(400, ErrCodeInvalidItem, "INVALID_ITEM", "order item must have a sku and a positive count")

	ErrOrderNotFound          = newError(404, ErrCodeOrderNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrInvalidState           = newError(409, ErrCodeInvalidState, "INVALID_STATE", "operation is not allowed in the current order status")
	ErrIllegalStateTransition = newError(409, ErrCodeIllegalStateTransition, "ILLEGAL_STATE_TRANSITION", "illegal order status transition")

	ErrInsufficientBalance  = newError(402, ErrCodeInsufficientBalance, "INSUFFICIENT_BALANCE", "insufficient balance")
	ErrPaymentFailed        = newError(402, ErrCodePaymentFailed, "PAYMENT_FAILED", "payment failed")
	ErrStockDeductionFailed = newError(409, ErrCodeStockDeductionFailed, "STOCK_DEDUCTION_FAILED", "stock deduction failed")

	ErrRemoteUnavailable = newError(503, ErrCodeRemoteUnavailable, "REMOTE_UNAVAILABLE", "dependent service is unavailable")
)

func newError(httpCode, bizCode int, reason, message string) *kratosErrors.Error {
	return kratosErrors.New(httpCode, reason, message).WithMetadata(map[string]string{
		"biz_code": strconv.Itoa(bizCode),
	})
}

// Remote 将下游调用失败包装为 RemoteUnavailable
func Remote(cause error) error {
	return ErrRemoteUnavailable.WithCause(cause)
}

// IsBizError 判断是否为已定义的业务错误
func IsBizError(err error) bool {
	if err == nil {
		return false
	}
	e := kratosErrors.FromError(err)
	return e.Reason != "" && e.Metadata["biz_code"] != ""
}

// Public 对外暴露的错误，未定义的错误统一转为 INTERNAL，避免泄露内部细节
func Public(err error) error {
	if err == nil {
		return nil
	}
	if IsBizError(err) {
		e := kratosErrors.FromError(err)
		// 仅保留 code/reason/message/metadata
		return kratosErrors.New(int(e.Code), e.Reason, e.Message).WithMetadata(e.Metadata)
	}
	return ErrInternal
}

// Reason 返回错误的稳定原因标识
func Reason(err error) string {
	return kratosErrors.Reason(err)
}
