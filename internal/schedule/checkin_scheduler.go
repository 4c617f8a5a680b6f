package schedule

// 存活调度器：每天定点扫描全部打卡记录，逐条评估升级状态并投递效果消息
// 评估是纯函数，持久化走乐观锁，用户打卡永远赢过过期的 tick

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"Heritage/config"
	"Heritage/internal/cache"
	"Heritage/internal/escalate"
	"Heritage/internal/model"
	"Heritage/internal/repository"
	"Heritage/pkg/logger"
	"Heritage/pkg/metrics"
	"Heritage/pkg/snowflake"
	"Heritage/storage/database"
)

var (
	schedulerOnce sync.Once
	schedulerInst *CheckinScheduler
)

// PublishFunc 效果投递函数，生产环境指向 queue.PublishEffect
type PublishFunc func(batchID string, effect escalate.Effect) error

type CheckinScheduler struct {
	logger       *zap.Logger
	store        repository.CheckinStore
	publish      PublishFunc
	confirmation time.Duration
	batchSize    int
	concurrency  int
	now          func() time.Time

	tickRunning  bool
	tickMu       sync.Mutex
	lastTickTime time.Time
}

func GetScheduler(publish PublishFunc) *CheckinScheduler {
	schedulerOnce.Do(func() {
		cfg := config.Cfg
		schedulerInst = NewCheckinScheduler(
			repository.NewCheckinRepo(database.DB()),
			publish,
			time.Duration(cfg.ConfirmationWindowDays)*24*time.Hour,
			cfg.TickBatchSize,
			cfg.TickConcurrency,
		)
	})
	return schedulerInst
}

func NewCheckinScheduler(
	store repository.CheckinStore,
	publish PublishFunc,
	confirmation time.Duration,
	batchSize int,
	concurrency int,
) *CheckinScheduler {
	if batchSize <= 0 {
		batchSize = 500
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	return &CheckinScheduler{
		logger:       logger.Logger,
		store:        store,
		publish:      publish,
		confirmation: confirmation,
		batchSize:    batchSize,
		concurrency:  concurrency,
		now:          time.Now,
	}
}

// RunTick 执行一次全表扫描
// 进程内用 running 标记防重入，实例间用 redis 日期锁防并发
func (s *CheckinScheduler) RunTick(ctx context.Context) error {
	s.tickMu.Lock()
	if s.tickRunning {
		s.tickMu.Unlock()
		s.logger.Info("Tick already running, skipping")
		return nil
	}
	s.tickRunning = true
	s.tickMu.Unlock()

	defer func() {
		s.tickMu.Lock()
		s.tickRunning = false
		s.tickMu.Unlock()
	}()

	startTime := s.now()
	s.lastTickTime = startTime

	lockKey := "tick:" + startTime.Format("2006-01-02T15")
	acquired, err := cache.TryLock(ctx, lockKey, time.Hour)
	if err != nil {
		s.logger.Warn("Failed to acquire tick lock, proceeding anyway",
			zap.String("lock_key", lockKey),
			zap.Error(err),
		)
	} else if !acquired {
		s.logger.Info("Another instance holds the tick lock, skipping",
			zap.String("lock_key", lockKey),
		)
		return nil
	}

	batchIDInt, err := snowflake.NextID()
	if err != nil {
		return fmt.Errorf("failed to generate batch ID: %w", err)
	}
	batchID := fmt.Sprintf("tick_%d", batchIDInt)

	s.logger.Info("Starting liveness tick",
		zap.String("batch_id", batchID),
		zap.Time("start_time", startTime),
	)

	var (
		scanned   int64
		failed    int64
		conflicts int64
		countMu   sync.Mutex
	)

	afterID := int64(0)
	for {
		batch, err := s.store.ListBatch(ctx, afterID, s.batchSize)
		if err != nil {
			return fmt.Errorf("failed to list checkin records: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		sem := make(chan struct{}, s.concurrency)
		var wg sync.WaitGroup
		for i := range batch {
			rec := batch[i]
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				conflict, perr := s.processRecord(ctx, batchID, rec, startTime)
				countMu.Lock()
				scanned++
				if conflict {
					conflicts++
				}
				if perr != nil {
					failed++
				}
				countMu.Unlock()

				if perr != nil {
					s.logger.Error("Failed to process record",
						zap.String("batch_id", batchID),
						zap.Int64("user_id", rec.UserID),
						zap.Error(perr),
					)
				}
			}()
		}
		wg.Wait()

		if len(batch) < s.batchSize {
			break
		}
	}

	duration := time.Since(startTime)
	metrics.RecordTick(duration.Seconds(), scanned)

	s.logger.Info("Liveness tick completed",
		zap.String("batch_id", batchID),
		zap.Duration("duration", duration),
		zap.Int64("scanned", scanned),
		zap.Int64("conflicts", conflicts),
		zap.Int64("failed", failed),
	)

	if failed > 0 {
		return fmt.Errorf("tick completed with %d failures", failed)
	}
	return nil
}

// processRecord 评估单条记录，先落库再投递
// CAS 冲突说明用户刚打了卡，本次评估作废，效果不投递
func (s *CheckinScheduler) processRecord(
	ctx context.Context,
	batchID string,
	rec model.CheckinRecord,
	now time.Time,
) (conflict bool, err error) {
	updated, effects := escalate.Evaluate(rec, now, s.confirmation)

	if updated.Status != rec.Status || updated.RemindersSent != rec.RemindersSent || changedEscalatedAt(rec, updated) {
		if err := s.store.UpdateCAS(ctx, &updated); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				metrics.RecordCASConflict()
				return true, nil
			}
			return false, fmt.Errorf("failed to persist record: %w", err)
		}
	}

	for _, effect := range effects {
		if err := s.publish(batchID, effect); err != nil {
			// 投递失败不回滚状态，下一个 tick 会重发
			return false, fmt.Errorf("failed to publish %s effect: %w", effect.Type, err)
		}
	}

	return false, nil
}

func changedEscalatedAt(before, after model.CheckinRecord) bool {
	if (before.EscalatedAt == nil) != (after.EscalatedAt == nil) {
		return true
	}
	return before.EscalatedAt != nil && !before.EscalatedAt.Equal(*after.EscalatedAt)
}
