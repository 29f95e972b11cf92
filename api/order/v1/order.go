package v1

// ConfirmOrderRequest 订单确认请求，skuId 为空时取购物车勾选商品
type ConfirmOrderRequest struct {
	SkuId int64 `json:"skuId,omitempty"`
	Count int32 `json:"count,omitempty"`
}

// ConfirmOrderReply 订单确认结果
type ConfirmOrderReply struct {
	OrderToken string       `json:"orderToken"`
	OrderItems []*OrderItem `json:"orderItems"`
	Addresses  []*Address   `json:"addresses"`
}

// SubmitOrderRequest 提交订单请求
type SubmitOrderRequest struct {
	OrderToken string       `json:"orderToken"`
	OrderItems []*OrderItem `json:"orderItems"`
	TotalPrice int64        `json:"totalPrice"`
	PayAmount  int64        `json:"payAmount,omitempty"`
	Remark     string       `json:"remark,omitempty"`
	SourceType int32        `json:"sourceType,omitempty"`
}

// SubmitOrderReply 提交订单结果
type SubmitOrderReply struct {
	OrderId int64  `json:"orderId"`
	OrderSn string `json:"orderSn"`
}

// OrderIdRequest 按订单 ID 操作
type OrderIdRequest struct {
	OrderId int64 `json:"orderId"`
}

// CloseOrderRequest 内部关单请求
type CloseOrderRequest struct {
	OrderSn string `json:"orderSn"`
}

// CloseOrderReply 内部关单结果
type CloseOrderReply struct {
	Closed bool `json:"closed"`
}

// Empty 空响应
type Empty struct{}

// OrderItem 订单商品
type OrderItem struct {
	SkuId       int64  `json:"skuId"`
	SkuSn       string `json:"skuSn,omitempty"`
	SkuName     string `json:"skuName,omitempty"`
	SpuName     string `json:"spuName,omitempty"`
	PicUrl      string `json:"picUrl,omitempty"`
	Price       int64  `json:"price"`
	Count       int32  `json:"count"`
	TotalAmount int64  `json:"totalAmount,omitempty"`
}

// Address 收货地址
type Address struct {
	Id              int64  `json:"id"`
	ConsigneeName   string `json:"consigneeName"`
	ConsigneeMobile string `json:"consigneeMobile"`
	Province        string `json:"province"`
	City            string `json:"city"`
	District        string `json:"district"`
	DetailAddress   string `json:"detailAddress"`
	DefaultFlag     bool   `json:"defaultFlag"`
}

// Order 订单详情
type Order struct {
	Id            int64        `json:"id"`
	OrderSn       string       `json:"orderSn"`
	Status        int32        `json:"status"`
	StatusText    string       `json:"statusText"`
	SourceType    int32        `json:"sourceType"`
	TotalQuantity int32        `json:"totalQuantity"`
	TotalAmount   int64        `json:"totalAmount"`
	PayAmount     int64        `json:"payAmount"`
	PayType       int32        `json:"payType,omitempty"`
	Remark        string       `json:"remark,omitempty"`
	PaidAt        string       `json:"paidAt,omitempty"`
	CreatedAt     string       `json:"createdAt"`
	OrderItems    []*OrderItem `json:"orderItems"`
}
