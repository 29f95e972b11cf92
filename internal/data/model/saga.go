package model

import (
	"time"
)

// SagaInstance saga 当前状态表
type SagaInstance struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Name      string    `gorm:"type:varchar(32);not null;index:idx_biz_key_name,priority:2"`
	BizKey    string    `gorm:"type:varchar(64);not null;index:idx_biz_key_name,priority:1"` // 订单号
	Status    string    `gorm:"type:varchar(16);not null;index:idx_status_updated,priority:1"`
	DoneSteps int       `gorm:"default:0"`
	Payload   string    `gorm:"type:text"` // JSON
	Errors    string    `gorm:"type:text"` // JSON 数组
	TraceID   string    `gorm:"type:varchar(32)"`
	SpanID    string    `gorm:"type:varchar(16)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"index:idx_status_updated,priority:2"`
}

// TableName 指定表名
func (SagaInstance) TableName() string {
	return "oms_saga_instance"
}

// SagaLog saga 流水表（只追加）
type SagaLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SagaID    string    `gorm:"type:varchar(36);not null;index"`
	Name      string    `gorm:"type:varchar(32);not null"`
	Step      string    `gorm:"type:varchar(32)"`
	Status    string    `gorm:"type:varchar(16);not null"`
	DoneSteps int       `gorm:"default:0"`
	Error     string    `gorm:"type:text"`
	TraceID   string    `gorm:"type:varchar(32)"`
	SpanID    string    `gorm:"type:varchar(16)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SagaLog) TableName() string {
	return "oms_saga_log"
}
