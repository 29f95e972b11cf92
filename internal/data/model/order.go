package model

import (
	"time"
)

// Order 订单表，金额单位：分
type Order struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	OrderSn        string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	MemberID       int64      `gorm:"not null;index"`
	Status         int32      `gorm:"type:smallint;not null;index:idx_status_created,priority:1"` // 101:待支付 102:用户取消 103:自动取消 201:已支付
	SourceType     int32      `gorm:"type:tinyint;default:1"`                                     // 1:APP 2:PC
	TotalQuantity  int32      `gorm:"default:0"`
	TotalAmount    int64      `gorm:"default:0"`
	PayAmount      int64      `gorm:"default:0"`
	PayType        int32      `gorm:"type:tinyint;default:0"` // 3:余额
	Remark         string     `gorm:"type:varchar(500)"`
	EventPublished bool       `gorm:"default:false"`
	PaidAt         *time.Time `gorm:"type:datetime"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index:idx_status_created,priority:2"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "oms_order"
}

// OrderItem 订单明细表
type OrderItem struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	OrderID       int64     `gorm:"not null;index"`
	SkuID         int64     `gorm:"not null"`
	SkuSn         string    `gorm:"type:varchar(64)"`
	SkuName       string    `gorm:"type:varchar(128)"`
	SkuPic        string    `gorm:"type:varchar(255)"`
	SpuName       string    `gorm:"type:varchar(128)"`
	SkuPrice      int64     `gorm:"default:0"`
	SkuQuantity   int32     `gorm:"default:0"`
	SkuTotalPrice int64     `gorm:"default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "oms_order_item"
}
