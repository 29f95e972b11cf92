package biz

import (
	"strconv"

	orderErrors "order-service/internal/errors"
)

// OrderStatus 订单状态
type OrderStatus int32

const (
	OrderStatusPendingPayment OrderStatus = 101 // 待支付
	OrderStatusUserCancel     OrderStatus = 102 // 用户取消
	OrderStatusAutoCancel     OrderStatus = 103 // 超时自动取消
	OrderStatusPaid           OrderStatus = 201 // 已支付
	OrderStatusDeleted        OrderStatus = -1  // 已删除（记录不存在，仅用于状态机校验）
)

// orderTransitions 合法的状态流转
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusUserCancel, OrderStatusAutoCancel},
	OrderStatusUserCancel:     {OrderStatusDeleted},
	OrderStatusAutoCancel:     {OrderStatusDeleted},
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPendingPayment:
		return "PENDING_PAYMENT"
	case OrderStatusUserCancel:
		return "USER_CANCEL"
	case OrderStatusAutoCancel:
		return "AUTO_CANCEL"
	case OrderStatusPaid:
		return "PAID"
	case OrderStatusDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// CanTransitTo 是否允许从当前状态流转到 to
func (s OrderStatus) CanTransitTo(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsCancelled 是否为取消状态
func (s OrderStatus) IsCancelled() bool {
	return s == OrderStatusUserCancel || s == OrderStatusAutoCancel
}

// TransitTo 在内存中执行状态流转，非法流转返回 IllegalStateTransition
func (o *Order) TransitTo(to OrderStatus) error {
	if !o.Status.CanTransitTo(to) {
		return orderErrors.ErrIllegalStateTransition.WithMetadata(map[string]string{
			"biz_code": strconv.Itoa(orderErrors.ErrCodeIllegalStateTransition),
			"from":     o.Status.String(),
			"to":       to.String(),
		})
	}
	o.Status = to
	return nil
}
