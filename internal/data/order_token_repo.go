package data

import (
	"context"
	"fmt"
	"time"

	"order-service/internal/biz"
	"order-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// releaseTokenScript 值匹配时删除 key，返回删除数量
const releaseTokenScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// orderTokenRepo 下单令牌（Redis）
type orderTokenRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderTokenRepo 创建下单令牌 repo
func NewOrderTokenRepo(data *Data, logger log.Logger) biz.OrderTokenRepo {
	return &orderTokenRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Save 存储令牌，值为令牌本身
func (r *orderTokenRepo) Save(ctx context.Context, token string, ttl time.Duration) error {
	if err := r.data.rdb.Set(ctx, constants.RedisKeyOrderToken+token, token, ttl).Err(); err != nil {
		r.log.Errorf("save order token failed: token=%s, error=%v", token, err)
		return fmt.Errorf("failed to save order token: %w", err)
	}
	return nil
}

// Consume 通过 Lua 脚本原子地比较并删除令牌
func (r *orderTokenRepo) Consume(ctx context.Context, token string) (bool, error) {
	res, err := r.data.rdb.Eval(ctx, releaseTokenScript, []string{constants.RedisKeyOrderToken + token}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to consume order token: %w", err)
	}
	return res == 1, nil
}
