package data

import (
	"fmt"
	"time"

	"order-service/internal/biz"
	"order-service/internal/conf"
	"order-service/internal/data/model"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewData,
	NewOrderRepo,
	NewSagaRepo,
	NewOrderTokenRepo,
	NewBizNoGenerator,
	NewCartRepo,
	NewLocker,
	NewOrderEventPublisher,
	NewPmsClient,
	NewUmsClient,
	wire.Bind(new(biz.SkuGateway), new(*PmsClient)),
	wire.Bind(new(biz.AddressGateway), new(*UmsClient)),
	wire.Bind(new(biz.MemberGateway), new(*UmsClient)),
)

// Data 数据层结构体
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
	mq  rocketmq.Producer // 未启用 RocketMQ 时为 nil
	mqc *conf.Data_Rocketmq
}

// NewDB 创建数据库连接
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	db, err := gorm.Open(mysql.Open(c.Data.Database.Source), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.Order{}, &model.OrderItem{}, &model.SagaInstance{}, &model.SagaLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return db, nil
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           c.Data.Redis.Db,
		ReadTimeout:  c.Data.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Data.Redis.WriteTimeout.AsDuration(),
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 创建基于 Redis 的分布式锁
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	logHelper := log.NewHelper(logger)
	d := &Data{
		db:  db,
		rdb: rdb,
	}

	if c.Data != nil && c.Data.Rocketmq != nil && c.Data.Rocketmq.Enabled {
		p, err := newProducer(c.Data.Rocketmq)
		if err != nil {
			return nil, nil, err
		}
		d.mq = p
		d.mqc = c.Data.Rocketmq
	} else {
		logHelper.Warn("rocketmq producer is disabled, order.create events will not be delivered")
	}

	cleanup := func() {
		logHelper.Info("closing the data resources")
		if d.mq != nil {
			if err := d.mq.Shutdown(); err != nil {
				logHelper.Errorf("failed to shutdown rocketmq producer: %v", err)
			}
		}
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if err := rdb.Close(); err != nil {
			logHelper.Errorf("failed to close redis: %v", err)
		}
	}

	return d, cleanup, nil
}

func newProducer(c *conf.Data_Rocketmq) (rocketmq.Producer, error) {
	group := c.ProducerGroup
	if group == "" {
		group = c.GroupName + "-producer"
	}
	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(c.NameServers)),
		producer.WithGroupName(group),
		producer.WithRetry(int(c.RetryTimes)),
		producer.WithSendMsgTimeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rocketmq producer: %w", err)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("failed to start rocketmq producer: %w", err)
	}
	return p, nil
}
