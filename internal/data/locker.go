package data

import (
	"context"
	"sync"
	"time"

	"order-service/internal/biz"
	orderErrors "order-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// locker 基于 redsync 的分布式锁
type locker struct {
	rs  *redsync.Redsync
	log *log.Helper
}

// NewLocker 创建分布式锁
func NewLocker(rs *redsync.Redsync, logger log.Logger) biz.Locker {
	return &locker{
		rs:  rs,
		log: log.NewHelper(logger),
	}
}

// Lock 尝试一次获取锁，失败返回 ErrOrderBusy
// 持有期间后台按过期时间的三分之一续期，直到调用 unlock。
func (l *locker) Lock(ctx context.Context, key string, expiry time.Duration) (func(), error) {
	mutex := l.rs.NewMutex(key, redsync.WithExpiry(expiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, orderErrors.ErrOrderBusy.WithCause(err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(mutex, key, expiry/3, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			if ok, err := mutex.Unlock(); !ok || err != nil {
				l.log.Warnf("Failed to unlock: key=%s, error=%v", key, err)
			}
		})
	}, nil
}

func (l *locker) keepAlive(mutex *redsync.Mutex, key string, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if ok, err := mutex.Extend(); !ok || err != nil {
				l.log.Warnf("Failed to extend lock: key=%s, error=%v", key, err)
				return
			}
		}
	}
}
