package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Heritage/internal/escalate"
	"Heritage/internal/model"
	"Heritage/internal/repository"
)

type capturedEffects struct {
	mu      sync.Mutex
	effects []escalate.Effect
}

func (c *capturedEffects) publish(batchID string, effect escalate.Effect) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.effects = append(c.effects, effect)
	return nil
}

func (c *capturedEffects) byType(t escalate.EffectType) []escalate.Effect {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]escalate.Effect, 0)
	for _, e := range c.effects {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestScheduler(store repository.CheckinStore, sink *capturedEffects, now time.Time) *CheckinScheduler {
	s := NewCheckinScheduler(store, sink.publish, 30*24*time.Hour, 100, 4)
	s.now = func() time.Time { return now }
	return s
}

func seedRecord(t *testing.T, store repository.CheckinStore, userID int64, last time.Time) *model.CheckinRecord {
	t.Helper()
	rec := &model.CheckinRecord{
		UserID:               userID,
		LastCheckinAt:        last,
		NextDueAt:            last.AddDate(0, 0, 182),
		Status:               model.CheckinStatusActive,
		IntervalDays:         182,
		MaxReminders:         4,
		GracePeriodDays:      30,
		ReminderScheduleDays: model.IntList{30, 14, 7, 1},
	}
	require.NoError(t, store.Create(context.Background(), rec))
	return rec
}

func TestProcessRecordPublishesReminder(t *testing.T) {
	store := repository.NewMemoryStore()
	sink := &capturedEffects{}

	last := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := last.AddDate(0, 0, 160) // 提前 30 天档位已过
	rec := seedRecord(t, store, 1, last)

	s := newTestScheduler(store, sink, now)
	conflict, err := s.processRecord(context.Background(), "batch", *rec, now)
	require.NoError(t, err)
	require.False(t, conflict)

	reminders := sink.byType(escalate.EffectSendReminder)
	require.Len(t, reminders, 1)
	require.Equal(t, 30, reminders[0].OffsetDays)
	require.True(t, reminders[0].CycleStart.Equal(last))

	got, err := store.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, model.CheckinStatusWarning, got.Status)
	require.Equal(t, 1, got.RemindersSent)
}

func TestProcessRecordStaleVersionSkipsEffects(t *testing.T) {
	store := repository.NewMemoryStore()
	sink := &capturedEffects{}

	last := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := last.AddDate(0, 0, 160)
	rec := seedRecord(t, store, 1, last)
	stale := *rec

	// 用户抢先打卡，版本号前进
	fresh, err := store.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	fresh.LastCheckinAt = now
	fresh.NextDueAt = now.AddDate(0, 0, 182)
	require.NoError(t, store.UpdateCAS(context.Background(), fresh))

	s := newTestScheduler(store, sink, now)
	conflict, err := s.processRecord(context.Background(), "batch", stale, now)
	require.NoError(t, err)
	require.True(t, conflict)
	require.Empty(t, sink.effects)

	got, err := store.GetByUserID(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, got.LastCheckinAt.Equal(now))
}

func TestProcessRecordEscalationPath(t *testing.T) {
	store := repository.NewMemoryStore()
	sink := &capturedEffects{}

	last := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := last.AddDate(0, 0, 182+31)
	rec := seedRecord(t, store, 2, last)

	s := newTestScheduler(store, sink, now)
	conflict, err := s.processRecord(context.Background(), "batch", *rec, now)
	require.NoError(t, err)
	require.False(t, conflict)

	alerts := sink.byType(escalate.EffectAlertBeneficiaries)
	require.Len(t, alerts, 1)

	got, err := store.GetByUserID(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, model.CheckinStatusEscalated, got.Status)
	require.NotNil(t, got.EscalatedAt)

	// 已升级的记录每个 tick 都重发告警，状态不再变化
	sink.effects = nil
	conflict, err = s.processRecord(context.Background(), "batch2", *got, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.False(t, conflict)
	require.Len(t, sink.byType(escalate.EffectAlertBeneficiaries), 1)
}

func TestProcessRecordTriggersInheritanceAfterConfirmation(t *testing.T) {
	store := repository.NewMemoryStore()
	sink := &capturedEffects{}

	last := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	escalatedAt := last.AddDate(0, 0, 182+30)
	now := escalatedAt.AddDate(0, 0, 31)

	rec := seedRecord(t, store, 3, last)
	got, err := store.GetByUserID(context.Background(), 3)
	require.NoError(t, err)
	got.Status = model.CheckinStatusEscalated
	got.EscalatedAt = &escalatedAt
	require.NoError(t, store.UpdateCAS(context.Background(), got))

	s := newTestScheduler(store, sink, now)
	_ = rec
	conflict, err := s.processRecord(context.Background(), "batch", *got, now)
	require.NoError(t, err)
	require.False(t, conflict)

	require.Len(t, sink.byType(escalate.EffectTriggerInheritance), 1)

	final, err := store.GetByUserID(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, model.CheckinStatusInheritanceTriggered, final.Status)
}

func TestProcessRecordQuietWindowNoEffects(t *testing.T) {
	store := repository.NewMemoryStore()
	sink := &capturedEffects{}

	last := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := last.AddDate(0, 0, 10)
	rec := seedRecord(t, store, 4, last)

	s := newTestScheduler(store, sink, now)
	conflict, err := s.processRecord(context.Background(), "batch", *rec, now)
	require.NoError(t, err)
	require.False(t, conflict)
	require.Empty(t, sink.effects)

	got, err := store.GetByUserID(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Version) // 无变化不写库
}
