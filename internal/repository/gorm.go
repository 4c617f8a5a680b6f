package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Heritage/internal/model"
)

// CheckinRepo CheckinStore 的 GORM/PostgreSQL 实现
type CheckinRepo struct {
	db *gorm.DB
}

func NewCheckinRepo(db *gorm.DB) *CheckinRepo {
	return &CheckinRepo{db: db}
}

func (r *CheckinRepo) GetByUserID(ctx context.Context, userID int64) (*model.CheckinRecord, error) {
	var rec model.CheckinRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to query checkin record: %w", err)
	}
	return &rec, nil
}

func (r *CheckinRepo) Create(ctx context.Context, rec *model.CheckinRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateRecord
		}
		return fmt.Errorf("failed to create checkin record: %w", err)
	}
	return nil
}

// UpdateCAS 条件更新：WHERE id = ? AND version = ?
// RowsAffected == 0 统一视为版本冲突，让调用方重读重算
func (r *CheckinRepo) UpdateCAS(ctx context.Context, rec *model.CheckinRecord) error {
	updates := map[string]interface{}{
		"last_checkin_at":        rec.LastCheckinAt,
		"next_due_at":            rec.NextDueAt,
		"status":                 rec.Status,
		"reminders_sent":         rec.RemindersSent,
		"escalated_at":           rec.EscalatedAt,
		"interval_days":          rec.IntervalDays,
		"max_reminders":          rec.MaxReminders,
		"grace_period_days":      rec.GracePeriodDays,
		"reminder_schedule_days": rec.ReminderScheduleDays,
		"phone_cipher":           rec.PhoneCipher,
		"phone_hash":             rec.PhoneHash,
		"beneficiaries":          rec.Beneficiaries,
		"version":                rec.Version + 1,
		"updated_at":             time.Now(),
	}

	result := r.db.WithContext(ctx).
		Model(&model.CheckinRecord{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update checkin record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}

	rec.Version++
	return nil
}

func (r *CheckinRepo) ListBatch(ctx context.Context, afterID int64, limit int) ([]model.CheckinRecord, error) {
	var records []model.CheckinRecord
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkin records: %w", err)
	}
	return records, nil
}

func (r *CheckinRepo) AppendNotification(ctx context.Context, n *model.BeneficiaryNotification) error {
	// 日志只追加，冲突时静默跳过（相同去重键的并发写入）
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(n).Error
	if err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

func (r *CheckinRepo) ListNotifications(ctx context.Context, userID int64, limit int) ([]model.BeneficiaryNotification, error) {
	var notifications []model.BeneficiaryNotification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sent_at DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *CheckinRepo) HasNotification(ctx context.Context, userID int64, typ model.BeneficiaryNotificationType, offsetDays *int, cycleStart time.Time) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&model.BeneficiaryNotification{}).
		Where("user_id = ? AND type = ? AND cycle_start = ?", userID, typ, cycleStart)
	if offsetDays != nil {
		query = query.Where("offset_days = ?", *offsetDays)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to query notification dedup: %w", err)
	}
	return count > 0, nil
}
