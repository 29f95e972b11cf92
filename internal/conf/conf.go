package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 服务配置根节点
type Bootstrap struct {
	Server  *Server  `json:"server"`
	Data    *Data    `json:"data"`
	Gateway *Gateway `json:"gateway"`
	Order   *Order   `json:"order"`
	Log     *Log     `json:"log"`
}

// Server 传输层配置
type Server struct {
	Http *Server_HTTP `json:"http"`
}

// Server_HTTP HTTP 服务配置
type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Data 数据层配置
type Data struct {
	Database *Data_Database `json:"database"`
	Redis    *Data_Redis    `json:"redis"`
	Rocketmq *Data_Rocketmq `json:"rocketmq"`
}

// Data_Database 数据库配置
type Data_Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Data_Redis Redis 配置
type Data_Redis struct {
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int       `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
}

// Data_Rocketmq RocketMQ 配置
type Data_Rocketmq struct {
	Enabled       bool     `json:"enabled"`
	NameServers   []string `json:"name_servers"`
	GroupName     string   `json:"group_name"`
	ProducerGroup string   `json:"producer_group"`
	Topic         string   `json:"topic"`
	RetryTimes    int32    `json:"retry_times"`
	// DelayLevel order.create 消息的延迟级别，用于支付超时自动关单
	DelayLevel int32 `json:"delay_level"`
}

// Gateway 下游服务配置
type Gateway struct {
	Pms *Gateway_Endpoint `json:"pms"`
	Ums *Gateway_Endpoint `json:"ums"`
}

// Gateway_Endpoint 单个下游 HTTP 服务
type Gateway_Endpoint struct {
	Endpoint   string    `json:"endpoint"`
	Timeout    *Duration `json:"timeout"`
	RetryCount int       `json:"retry_count"`
}

// Order 订单业务配置
type Order struct {
	TokenTtl       *Duration `json:"token_ttl"`
	ConfirmWorkers int64     `json:"confirm_workers"`
	PayTimeout     *Duration `json:"pay_timeout"`
	LockExpiry     *Duration `json:"lock_expiry"`
	SagaStaleAfter *Duration `json:"saga_stale_after"`
	SweepBatchSize int       `json:"sweep_batch_size"`
}

// Log 日志配置
type Log struct {
	Level    string `json:"level"`
	Format   string `json:"format"`
	Output   string `json:"output"`
	FilePath string `json:"file_path"`
}

// Duration 支持 "1s"、"200ms" 形式的时长配置
type Duration struct {
	time.Duration
}

// NewDuration 构造 Duration
func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration 返回 time.Duration，nil 时为 0
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
