package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-service/internal/biz"
	"order-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// orderRepo 订单数据访问
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单 repo（返回 biz.OrderRepo 接口）
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateOrder 写入订单及明细
func (r *orderRepo) CreateOrder(ctx context.Context, order *biz.Order) error {
	m := toOrderModel(order)
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		items := make([]*model.OrderItem, 0, len(order.Items))
		for _, item := range order.Items {
			mi := toOrderItemModel(item)
			mi.OrderID = m.ID
			items = append(items, mi)
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		for i, item := range order.Items {
			item.ID = items[i].ID
			item.OrderID = m.ID
		}
		return nil
	})
	if err != nil {
		r.log.Errorf("CreateOrder failed: orderSn=%s, error=%v", order.OrderSn, err)
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.ID = m.ID
	order.CreatedAt = m.CreatedAt
	order.UpdatedAt = m.UpdatedAt
	return nil
}

// GetOrder 按 ID 查询订单，不存在返回 nil
func (r *orderRepo) GetOrder(ctx context.Context, id int64) (*biz.Order, error) {
	return r.getOrder(ctx, "id = ?", id)
}

// GetOrderBySn 按订单号查询订单，不存在返回 nil
func (r *orderRepo) GetOrderBySn(ctx context.Context, orderSn string) (*biz.Order, error) {
	return r.getOrder(ctx, "order_sn = ?", orderSn)
}

func (r *orderRepo) getOrder(ctx context.Context, query string, arg interface{}) (*biz.Order, error) {
	db := r.data.db.WithContext(ctx)
	var m model.Order
	if err := db.Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	var items []*model.OrderItem
	if err := db.Where("order_id = ?", m.ID).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	return toOrder(&m, items), nil
}

// UpdateOrderStatus 条件更新订单状态与支付信息
func (r *orderRepo) UpdateOrderStatus(ctx context.Context, order *biz.Order, from biz.OrderStatus) (bool, error) {
	updates := map[string]interface{}{
		"status": int32(order.Status),
	}
	if order.PayType != 0 {
		updates["pay_type"] = order.PayType
	}
	if order.PaidAt != nil {
		updates["paid_at"] = *order.PaidAt
	}
	result := r.data.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_sn = ? AND status = ?", order.OrderSn, int32(from)).
		Updates(updates)
	if result.Error != nil {
		r.log.Errorf("UpdateOrderStatus failed: orderSn=%s, from=%d, to=%d, error=%v", order.OrderSn, from, order.Status, result.Error)
		return false, fmt.Errorf("failed to update order status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// DeleteOrder 删除指定状态下的订单及明细
func (r *orderRepo) DeleteOrder(ctx context.Context, id int64, allowed []biz.OrderStatus) (bool, error) {
	statuses := make([]int32, 0, len(allowed))
	for _, s := range allowed {
		statuses = append(statuses, int32(s))
	}

	deleted := false
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND status IN ?", id, statuses).Delete(&model.Order{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error
	})
	if err != nil {
		r.log.Errorf("DeleteOrder failed: id=%d, error=%v", id, err)
		return false, fmt.Errorf("failed to delete order: %w", err)
	}
	return deleted, nil
}

// DeleteOrderBySn 按订单号删除订单及明细，不存在视为成功
func (r *orderRepo) DeleteOrderBySn(ctx context.Context, orderSn string) error {
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Order
		if err := tx.Select("id").Where("order_sn = ?", orderSn).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("order_id = ?", m.ID).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Order{}, m.ID).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", orderSn, err)
	}
	return nil
}

// MarkEventPublished 标记 order.create 已投递
func (r *orderRepo) MarkEventPublished(ctx context.Context, orderSn string) error {
	return r.data.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_sn = ?", orderSn).
		Update("event_published", true).Error
}

// ListPendingOrders 查询创建时间早于 createdBefore 的待支付订单
func (r *orderRepo) ListPendingOrders(ctx context.Context, createdBefore time.Time, limit int) ([]*biz.Order, error) {
	return r.listOrders(r.data.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", int32(biz.OrderStatusPendingPayment), createdBefore), limit)
}

// ListUnpublishedOrders 查询 order.create 未投递成功的待支付订单
func (r *orderRepo) ListUnpublishedOrders(ctx context.Context, createdBefore time.Time, limit int) ([]*biz.Order, error) {
	return r.listOrders(r.data.db.WithContext(ctx).
		Where("status = ? AND event_published = ? AND created_at < ?", int32(biz.OrderStatusPendingPayment), false, createdBefore), limit)
}

func (r *orderRepo) listOrders(query *gorm.DB, limit int) ([]*biz.Order, error) {
	var ms []*model.Order
	if err := query.Order("id").Limit(limit).Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]*biz.Order, 0, len(ms))
	for _, m := range ms {
		orders = append(orders, toOrder(m, nil))
	}
	return orders, nil
}

func toOrderModel(o *biz.Order) *model.Order {
	return &model.Order{
		ID:             o.ID,
		OrderSn:        o.OrderSn,
		MemberID:       o.MemberID,
		Status:         int32(o.Status),
		SourceType:     o.SourceType,
		TotalQuantity:  o.TotalQuantity,
		TotalAmount:    o.TotalAmount,
		PayAmount:      o.PayAmount,
		PayType:        o.PayType,
		Remark:         o.Remark,
		EventPublished: o.EventPublished,
		PaidAt:         o.PaidAt,
	}
}

func toOrderItemModel(i *biz.OrderItem) *model.OrderItem {
	return &model.OrderItem{
		OrderID:       i.OrderID,
		SkuID:         i.SkuID,
		SkuSn:         i.SkuSn,
		SkuName:       i.SkuName,
		SkuPic:        i.SkuPic,
		SpuName:       i.SpuName,
		SkuPrice:      i.SkuPrice,
		SkuQuantity:   i.SkuQuantity,
		SkuTotalPrice: i.SkuTotalPrice,
	}
}

func toOrder(m *model.Order, items []*model.OrderItem) *biz.Order {
	o := &biz.Order{
		ID:             m.ID,
		OrderSn:        m.OrderSn,
		MemberID:       m.MemberID,
		Status:         biz.OrderStatus(m.Status),
		SourceType:     m.SourceType,
		TotalQuantity:  m.TotalQuantity,
		TotalAmount:    m.TotalAmount,
		PayAmount:      m.PayAmount,
		PayType:        m.PayType,
		Remark:         m.Remark,
		EventPublished: m.EventPublished,
		PaidAt:         m.PaidAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Items:          make([]*biz.OrderItem, 0, len(items)),
	}
	for _, i := range items {
		o.Items = append(o.Items, &biz.OrderItem{
			ID:            i.ID,
			OrderID:       i.OrderID,
			SkuID:         i.SkuID,
			SkuSn:         i.SkuSn,
			SkuName:       i.SkuName,
			SkuPic:        i.SkuPic,
			SpuName:       i.SpuName,
			SkuPrice:      i.SkuPrice,
			SkuQuantity:   i.SkuQuantity,
			SkuTotalPrice: i.SkuTotalPrice,
		})
	}
	return o
}
