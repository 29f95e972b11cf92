package data

import (
	"context"
	"fmt"
	"time"

	"order-service/internal/biz"
	"order-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
)

// bizNoGenerator 业务编号：时间(秒) + 业务类型 + 当日自增序列
type bizNoGenerator struct {
	data *Data
	log  *log.Helper
	now  func() time.Time
}

// NewBizNoGenerator 创建业务编号生成器
func NewBizNoGenerator(data *Data, logger log.Logger) biz.BizNoGenerator {
	return &bizNoGenerator{
		data: data,
		log:  log.NewHelper(logger),
		now:  time.Now,
	}
}

// Generate 生成业务编号
func (g *bizNoGenerator) Generate(ctx context.Context, businessType string) (string, error) {
	now := g.now()
	key := fmt.Sprintf("%s%s:%s", constants.RedisKeyBusinessNo, businessType, now.Format("20060102"))

	var incr *redis.IntCmd
	_, err := g.data.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, constants.BusinessNoKeyTTL)
		return nil
	})
	if err != nil {
		g.log.Errorf("generate business no failed: type=%s, error=%v", businessType, err)
		return "", fmt.Errorf("failed to generate business no: %w", err)
	}

	return fmt.Sprintf("%s%s%0*d", now.Format(constants.BusinessNoTimeLayout), businessType, constants.BusinessNoDigits, incr.Val()), nil
}
