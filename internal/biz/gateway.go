package biz

import "context"

// Sku 商品 SKU（来自商品服务）
type Sku struct {
	ID       int64
	SkuSn    string
	Name     string
	SpuName  string
	Price    int64 // 当前售价（分）
	PicURL   string
	StockNum int32
}

// SkuLock 锁定库存请求，以订单号作为关联 ID
type SkuLock struct {
	SkuID      int64  `json:"sku_id"`
	Count      int32  `json:"count"`
	OrderToken string `json:"order_token"`
}

// Address 会员收货地址
type Address struct {
	ID              int64
	ConsigneeName   string
	ConsigneeMobile string
	Province        string
	City            string
	District        string
	DetailAddress   string
	DefaultFlag     bool
}

// CartItem 购物车商品
type CartItem struct {
	SkuID   int64  `json:"skuId"`
	SkuSn   string `json:"skuSn"`
	SkuName string `json:"skuName"`
	SpuName string `json:"spuName"`
	PicURL  string `json:"picUrl"`
	Price   int64  `json:"price"`
	Count   int32  `json:"count"`
	Checked bool   `json:"checked"`
}

// SkuGateway 商品与库存服务
type SkuGateway interface {
	// GetSku 查询 SKU，不存在时返回 nil
	GetSku(ctx context.Context, skuID int64) (*Sku, error)
	// LockStock 全部锁定或全部失败，失败返回 ErrStockUnavailable
	LockStock(ctx context.Context, orderToken string, locks []*SkuLock) error
	// DeductStock 将订单锁定的库存转为扣减，失败返回 ErrStockDeductionFailed
	DeductStock(ctx context.Context, orderToken string) error
	// UnlockStock 释放订单锁定的库存，幂等
	UnlockStock(ctx context.Context, orderToken string) error
}

// AddressGateway 会员地址服务
type AddressGateway interface {
	ListAddresses(ctx context.Context, memberID int64) ([]*Address, error)
}

// MemberGateway 会员余额服务，requestID 为幂等键
type MemberGateway interface {
	// DeductBalance 扣减余额，余额不足返回 ErrInsufficientBalance，其他拒绝返回 ErrPaymentFailed
	DeductBalance(ctx context.Context, memberID, amount int64, orderSn, requestID string) error
	// RefundBalance 退回 requestID 对应的扣款，未扣款时为空操作
	RefundBalance(ctx context.Context, memberID, amount int64, orderSn, requestID string) error
}

// CartRepo 会员购物车
type CartRepo interface {
	ListCartItems(ctx context.Context, memberID int64) ([]*CartItem, error)
	RemoveCheckedItems(ctx context.Context, memberID int64) error
}
