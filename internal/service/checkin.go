package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"Heritage/config"
	"Heritage/internal/model"
	"Heritage/internal/repository"
	pkgerrors "Heritage/pkg/errors"
	"Heritage/pkg/logger"
	"Heritage/storage/database"
	"Heritage/utils"
)

// 打卡冲突重试次数，冲突方基本只有调度 tick，一两次内必然收敛
const checkinCASRetries = 3

type CheckinService struct {
	store repository.CheckinStore
	now   func() time.Time
}

var (
	checkinService *CheckinService
	checkinOnce    sync.Once
)

func Checkin() *CheckinService {
	checkinOnce.Do(func() {
		checkinService = NewCheckinService(repository.NewCheckinRepo(database.DB()))
	})

	return checkinService
}

func NewCheckinService(store repository.CheckinStore) *CheckinService {
	return &CheckinService{
		store: store,
		now:   time.Now,
	}
}

// RecordCheckin 记录一次存活打卡
// 首次打卡创建记录，之后的打卡重置周期并清空升级进度
// 终态记录不可通过打卡复活，返回 CheckInLocked
func (s *CheckinService) RecordCheckin(ctx context.Context, req model.CheckinRequest) (*model.CheckinData, error) {
	if req.UserID <= 0 {
		return nil, pkgerrors.InvalidUserID
	}
	if req.Phone != "" && !utils.ValidatePhone(req.Phone) {
		return nil, pkgerrors.InvalidPhone
	}

	now := s.now()

	for attempt := 0; attempt <= checkinCASRetries; attempt++ {
		rec, err := s.store.GetByUserID(ctx, req.UserID)
		if errors.Is(err, repository.ErrRecordNotFound) {
			created, cerr := s.createRecord(ctx, req, now)
			if errors.Is(cerr, repository.ErrDuplicateRecord) {
				continue // 并发首次打卡，下一轮走更新路径
			}
			if cerr != nil {
				return nil, cerr
			}
			return created, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load checkin record: %w", err)
		}

		if rec.Status == model.CheckinStatusInheritanceTriggered {
			return nil, pkgerrors.CheckInLocked
		}

		s.resetCycle(rec, now)
		if req.Phone != "" {
			if err := s.attachPhone(rec, req.Phone); err != nil {
				return nil, err
			}
		}

		err = s.store.UpdateCAS(ctx, rec)
		if errors.Is(err, repository.ErrVersionConflict) {
			logger.Logger.Debug("Checkin CAS conflict, retrying",
				zap.Int64("user_id", req.UserID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update checkin record: %w", err)
		}

		logger.Logger.Info("Check-in recorded",
			zap.Int64("user_id", req.UserID),
			zap.Time("next_due_at", rec.NextDueAt),
		)

		return &model.CheckinData{
			Status:        string(rec.Status),
			NextDueAt:     rec.NextDueAt,
			RemindersSent: rec.RemindersSent,
		}, nil
	}

	return nil, pkgerrors.StoreUnavailable
}

// GetStatus 查询当前打卡状态，从未打卡返回 RecordNotFound
func (s *CheckinService) GetStatus(ctx context.Context, userID int64) (*model.CheckinStatusData, error) {
	if userID <= 0 {
		return nil, pkgerrors.InvalidUserID
	}

	rec, err := s.store.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, pkgerrors.RecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkin record: %w", err)
	}

	return &model.CheckinStatusData{
		Status:          string(rec.Status),
		LastCheckinAt:   rec.LastCheckinAt,
		NextDueAt:       rec.NextDueAt,
		RemindersSent:   rec.RemindersSent,
		MaxReminders:    rec.MaxReminders,
		GracePeriodDays: rec.GracePeriodDays,
	}, nil
}

// ListNotifications 按时间倒序返回用户的通知日志
func (s *CheckinService) ListNotifications(ctx context.Context, userID int64, limit int) ([]model.NotificationData, error) {
	if userID <= 0 {
		return nil, pkgerrors.InvalidUserID
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]model.NotificationData, 0, len(rows))
	for _, n := range rows {
		out = append(out, model.NotificationData{
			ID:             n.ID,
			Type:           string(n.Type),
			SentAt:         n.SentAt,
			Message:        n.Message,
			ActionRequired: n.ActionRequired,
		})
	}
	return out, nil
}

func (s *CheckinService) createRecord(ctx context.Context, req model.CheckinRequest, now time.Time) (*model.CheckinData, error) {
	cfg := config.Cfg

	rec := &model.CheckinRecord{
		UserID:               req.UserID,
		LastCheckinAt:        now,
		Status:               model.CheckinStatusActive,
		IntervalDays:         cfg.IntervalDays,
		MaxReminders:         cfg.MaxReminders,
		GracePeriodDays:      cfg.GracePeriodDays,
		ReminderScheduleDays: model.IntList(cfg.ReminderScheduleDays),
	}
	rec.NextDueAt = now.AddDate(0, 0, rec.IntervalDays)

	if req.Phone != "" {
		if err := s.attachPhone(rec, req.Phone); err != nil {
			return nil, err
		}
	}

	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicateRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create checkin record: %w", err)
	}

	logger.Logger.Info("First check-in, record created",
		zap.Int64("user_id", req.UserID),
		zap.Time("next_due_at", rec.NextDueAt),
	)

	return &model.CheckinData{
		Status:        string(rec.Status),
		NextDueAt:     rec.NextDueAt,
		RemindersSent: rec.RemindersSent,
	}, nil
}

// resetCycle 打卡即重开周期，strategy 快照同时刷新到最新配置
func (s *CheckinService) resetCycle(rec *model.CheckinRecord, now time.Time) {
	cfg := config.Cfg

	rec.LastCheckinAt = now
	rec.Status = model.CheckinStatusActive
	rec.RemindersSent = 0
	rec.EscalatedAt = nil
	rec.IntervalDays = cfg.IntervalDays
	rec.MaxReminders = cfg.MaxReminders
	rec.GracePeriodDays = cfg.GracePeriodDays
	rec.ReminderScheduleDays = model.IntList(cfg.ReminderScheduleDays)
	rec.NextDueAt = now.AddDate(0, 0, rec.IntervalDays)
}

func (s *CheckinService) attachPhone(rec *model.CheckinRecord, phone string) error {
	encoded, err := utils.EncryptPhone(phone)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone: %w", err)
	}
	raw, err := utils.DecodeCipher(encoded)
	if err != nil {
		return err
	}
	hash := utils.HashPhone(phone)
	rec.PhoneCipher = raw
	rec.PhoneHash = &hash
	return nil
}
