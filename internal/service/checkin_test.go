package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Heritage/internal/model"
	"Heritage/internal/repository"
	pkgerrors "Heritage/pkg/errors"
)

func newTestCheckinService(now time.Time) (*CheckinService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	s := NewCheckinService(store)
	s.now = func() time.Time { return now }
	return s, store
}

func TestRecordCheckinCreatesRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, store := newTestCheckinService(now)

	data, err := s.RecordCheckin(ctx, model.CheckinRequest{UserID: 100})
	require.NoError(t, err)
	require.Equal(t, string(model.CheckinStatusActive), data.Status)
	require.Equal(t, 0, data.RemindersSent)
	require.True(t, data.NextDueAt.Equal(now.AddDate(0, 0, 182)))

	rec, err := store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 182, rec.IntervalDays)
	require.Equal(t, model.IntList{30, 14, 7, 1}, rec.ReminderScheduleDays)
}

func TestRecordCheckinResetsEscalation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, store := newTestCheckinService(now)

	_, err := s.RecordCheckin(ctx, model.CheckinRequest{UserID: 100})
	require.NoError(t, err)

	// 人为推进到已升级状态
	rec, err := store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	escalated := now.AddDate(0, 0, 212)
	rec.Status = model.CheckinStatusEscalated
	rec.RemindersSent = 4
	rec.EscalatedAt = &escalated
	require.NoError(t, store.UpdateCAS(ctx, rec))

	later := escalated.AddDate(0, 0, 5)
	s.now = func() time.Time { return later }

	data, err := s.RecordCheckin(ctx, model.CheckinRequest{UserID: 100})
	require.NoError(t, err)
	require.Equal(t, string(model.CheckinStatusActive), data.Status)
	require.Equal(t, 0, data.RemindersSent)

	rec, err = store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.Nil(t, rec.EscalatedAt)
	require.True(t, rec.LastCheckinAt.Equal(later))
	require.True(t, rec.NextDueAt.Equal(later.AddDate(0, 0, 182)))
}

func TestRecordCheckinLockedAfterInheritance(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, store := newTestCheckinService(now)

	_, err := s.RecordCheckin(ctx, model.CheckinRequest{UserID: 100})
	require.NoError(t, err)

	rec, err := store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	rec.Status = model.CheckinStatusInheritanceTriggered
	require.NoError(t, store.UpdateCAS(ctx, rec))

	_, err = s.RecordCheckin(ctx, model.CheckinRequest{UserID: 100})
	require.ErrorIs(t, err, pkgerrors.CheckInLocked)

	// 终态保持不变
	rec, err = store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, model.CheckinStatusInheritanceTriggered, rec.Status)
}

func TestRecordCheckinRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestCheckinService(time.Now())

	_, err := s.RecordCheckin(ctx, model.CheckinRequest{UserID: 0})
	require.ErrorIs(t, err, pkgerrors.InvalidUserID)

	_, err = s.RecordCheckin(ctx, model.CheckinRequest{UserID: 1, Phone: "12345"})
	require.ErrorIs(t, err, pkgerrors.InvalidPhone)
}

func TestGetStatusNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestCheckinService(time.Now())

	_, err := s.GetStatus(ctx, 999)
	require.ErrorIs(t, err, pkgerrors.RecordNotFound)
}

func TestGetStatusReturnsSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, _ := newTestCheckinService(now)

	_, err := s.RecordCheckin(ctx, model.CheckinRequest{UserID: 100})
	require.NoError(t, err)

	status, err := s.GetStatus(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, string(model.CheckinStatusActive), status.Status)
	require.True(t, status.LastCheckinAt.Equal(now))
	require.Equal(t, 4, status.MaxReminders)
	require.Equal(t, 30, status.GracePeriodDays)
}

func TestListNotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s, store := newTestCheckinService(now)

	cycle := now.AddDate(0, 0, -200)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendNotification(ctx, &model.BeneficiaryNotification{
			UserID:     100,
			Type:       model.NotificationTypeReminderSent,
			SentAt:     now.AddDate(0, 0, i),
			Message:    "reminder",
			CycleStart: cycle,
		}))
	}

	list, err := s.ListNotifications(ctx, 100, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].SentAt.After(list[1].SentAt))
}
