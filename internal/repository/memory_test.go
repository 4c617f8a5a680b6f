package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Heritage/internal/model"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := &model.CheckinRecord{
		UserID:        1001,
		LastCheckinAt: time.Now(),
		NextDueAt:     time.Now().AddDate(0, 0, 182),
		Status:        model.CheckinStatusActive,
		IntervalDays:  182,
	}
	require.NoError(t, store.Create(ctx, rec))
	require.NotZero(t, rec.ID)

	got, err := store.GetByUserID(ctx, 1001)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, model.CheckinStatusActive, got.Status)

	_, err = store.GetByUserID(ctx, 9999)
	require.ErrorIs(t, err, ErrRecordNotFound)

	err = store.Create(ctx, &model.CheckinRecord{UserID: 1001})
	require.ErrorIs(t, err, ErrDuplicateRecord)
}

func TestMemoryStoreUpdateCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec := &model.CheckinRecord{UserID: 42, Status: model.CheckinStatusActive}
	require.NoError(t, store.Create(ctx, rec))

	// 两个并发读取方拿到同一版本
	a, err := store.GetByUserID(ctx, 42)
	require.NoError(t, err)
	b, err := store.GetByUserID(ctx, 42)
	require.NoError(t, err)

	a.Status = model.CheckinStatusWarning
	a.RemindersSent = 1
	require.NoError(t, store.UpdateCAS(ctx, a))
	require.Equal(t, int64(1), a.Version)

	// 持旧版本的写入必须失败
	b.Status = model.CheckinStatusOverdue
	require.ErrorIs(t, store.UpdateCAS(ctx, b), ErrVersionConflict)

	got, err := store.GetByUserID(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, model.CheckinStatusWarning, got.Status)
	require.Equal(t, 1, got.RemindersSent)
}

func TestMemoryStoreListBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, store.Create(ctx, &model.CheckinRecord{UserID: i}))
	}

	first, err := store.ListBatch(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := store.ListBatch(ctx, first[len(first)-1].ID, 10)
	require.NoError(t, err)
	require.Len(t, second, 3)
	require.Greater(t, second[0].ID, first[1].ID)
}

func TestMemoryStoreNotifications(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	cycle := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	offset := 30
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendNotification(ctx, &model.BeneficiaryNotification{
		UserID: 7, Type: model.NotificationTypeReminderSent, SentAt: base,
		CycleStart: cycle, OffsetDays: &offset,
	}))
	require.NoError(t, store.AppendNotification(ctx, &model.BeneficiaryNotification{
		UserID: 7, Type: model.NotificationTypeBeneficiaryAlerted, SentAt: base.Add(time.Hour),
		CycleStart: cycle,
	}))
	require.NoError(t, store.AppendNotification(ctx, &model.BeneficiaryNotification{
		UserID: 8, Type: model.NotificationTypeReminderSent, SentAt: base,
		CycleStart: cycle, OffsetDays: &offset,
	}))

	list, err := store.ListNotifications(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, model.NotificationTypeBeneficiaryAlerted, list[0].Type)

	ok, err := store.HasNotification(ctx, 7, model.NotificationTypeReminderSent, &offset, cycle)
	require.NoError(t, err)
	require.True(t, ok)

	other := 14
	ok, err = store.HasNotification(ctx, 7, model.NotificationTypeReminderSent, &other, cycle)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.HasNotification(ctx, 7, model.NotificationTypeReminderSent, &offset, cycle.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.False(t, ok)
}
