package cache

import (
	"context"
	"fmt"
	"time"

	"Heritage/storage/redis"
)

const (
	messageProcessedPrefix = "message:processed"
	effectDispatchedPrefix = "effect:dispatched"

	dispatchedTTL = 24 * time.Hour
	processedTTL  = 48 * time.Hour
)

// EffectKey 构造一次升级效果的幂等键
// 同一周期内 (用户, 效果类型, 提前天数) 唯一，cycleStart 用 unix 秒避免时区差异
func EffectKey(userID int64, effectType string, offsetDays int, cycleStart time.Time) string {
	return fmt.Sprintf("%d:%s:%d:%d", userID, effectType, offsetDays, cycleStart.Unix())
}

// IsEffectDispatched 检查某个升级效果在当前周期内是否已成功投递
func IsEffectDispatched(ctx context.Context, effectKey string) (bool, error) {
	key := redis.Key(effectDispatchedPrefix, effectKey)
	result, err := redis.Client().Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check effect dispatched status: %w", err)
	}
	return result > 0, nil
}

// MarkEffectDispatched 标记升级效果已投递，到期自动失效后由通知流水兜底去重
func MarkEffectDispatched(ctx context.Context, effectKey string) error {
	key := redis.Key(effectDispatchedPrefix, effectKey)
	return redis.Client().Set(ctx, key, "1", dispatchedTTL).Err()
}

// UnmarkEffectDispatched 清除投递标记，投递失败后允许下一轮重发
func UnmarkEffectDispatched(ctx context.Context, effectKey string) error {
	key := redis.Key(effectDispatchedPrefix, effectKey)
	return redis.Client().Del(ctx, key).Err()
}

// TryMarkMessageProcessing 尝试原子性地标记消息正在处理（使用 SETNX）
// 返回 true 表示成功标记（首次处理），false 表示已被标记（重复消息或正在处理）
func TryMarkMessageProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	key := redis.Key(messageProcessedPrefix, messageID)
	if ttl <= 0 {
		ttl = processedTTL
	}

	result, err := redis.Client().SetNX(ctx, key, "processing", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return result, nil
}

// UnmarkMessageProcessing 取消消息处理标记（处理失败时调用，允许重试）
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	return redis.Client().Del(ctx, key).Err()
}

// MarkMessageProcessed 标记消息已处理（处理成功时调用，延长 TTL）
func MarkMessageProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	if ttl <= 0 {
		ttl = processedTTL
	}
	return redis.Client().Set(ctx, key, "completed", ttl).Err()
}
