package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"order-service/internal/biz"
	"order-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
)

// cartRepo 会员购物车，Redis hash：field 为 skuId，value 为 JSON
type cartRepo struct {
	data *Data
	log  *log.Helper
}

// NewCartRepo 创建购物车 repo
func NewCartRepo(data *Data, logger log.Logger) biz.CartRepo {
	return &cartRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func cartKey(memberID int64) string {
	return constants.RedisKeyCart + strconv.FormatInt(memberID, 10)
}

// ListCartItems 查询购物车全部商品，按 skuId 排序
func (r *cartRepo) ListCartItems(ctx context.Context, memberID int64) ([]*biz.CartItem, error) {
	values, err := r.data.rdb.HGetAll(ctx, cartKey(memberID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	items := make([]*biz.CartItem, 0, len(values))
	for field, v := range values {
		var item biz.CartItem
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			r.log.Warnf("skip malformed cart item: memberId=%d, field=%s, error=%v", memberID, field, err)
			continue
		}
		items = append(items, &item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SkuID < items[j].SkuID })
	return items, nil
}

// RemoveCheckedItems 删除购物车中已勾选的商品
func (r *cartRepo) RemoveCheckedItems(ctx context.Context, memberID int64) error {
	items, err := r.ListCartItems(ctx, memberID)
	if err != nil {
		return err
	}
	fields := make([]string, 0, len(items))
	for _, item := range items {
		if item.Checked {
			fields = append(fields, strconv.FormatInt(item.SkuID, 10))
		}
	}
	if len(fields) == 0 {
		return nil
	}
	if err := r.data.rdb.HDel(ctx, cartKey(memberID), fields...).Err(); err != nil {
		return fmt.Errorf("failed to remove checked cart items: %w", err)
	}
	return nil
}
