package cache

import (
	"context"
	"time"

	"Heritage/storage/redis"
)

// 基于 SetNX 的分布式锁，保证同一天的扫描只有一个调度实例执行
const (
	lockPrefix = "hrtg:lock"
)

func TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fullkey := redis.Key(lockPrefix, key)

	result, err := redis.Client().SetNX(ctx, fullkey, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return result, err
}

func Unlock(ctx context.Context, key string) error {
	fullkey := redis.Key(lockPrefix, key)

	return redis.Client().Del(ctx, fullkey).Err()
}
