package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Heritage/config"
	"Heritage/internal/model"
	"Heritage/internal/repository"
	pkgerrors "Heritage/pkg/errors"
	"Heritage/pkg/inherit"
	"Heritage/pkg/notify"
	"Heritage/utils"
)

func newTestNotificationService(t *testing.T) (*NotificationService, *repository.MemoryStore, *notify.MockClient, *inherit.MockTrigger) {
	t.Helper()

	config.Cfg.EncryptionKey = "0123456789abcdef0123456789abcdef"
	config.Cfg.DispatchBackoffMilli = 1

	store := repository.NewMemoryStore()
	sender := notify.NewMockClient()
	trigger := inherit.NewMockTrigger()
	s := NewNotificationService(store, sender, trigger)
	return s, store, sender, trigger
}

func seedEscalatedRecord(t *testing.T, store *repository.MemoryStore, userID int64, cycle time.Time, beneficiaryPhones []string) *model.CheckinRecord {
	t.Helper()
	ctx := context.Background()

	rec := &model.CheckinRecord{
		UserID:        userID,
		LastCheckinAt: cycle,
		NextDueAt:     cycle.AddDate(0, 0, 182),
		Status:        model.CheckinStatusEscalated,
		IntervalDays:  182,
	}
	for i, phone := range beneficiaryPhones {
		cipher, err := utils.EncryptPhone(phone)
		require.NoError(t, err)
		rec.Beneficiaries = append(rec.Beneficiaries, model.Beneficiary{
			DisplayName:       "contact",
			PhoneCipherBase64: cipher,
			PhoneHash:         utils.HashPhone(phone),
			Priority:          i + 1,
		})
	}
	require.NoError(t, store.Create(ctx, rec))
	return rec
}

func effectMsg(userID int64, effectType string, offset int, cycle time.Time) model.EffectMessage {
	return model.EffectMessage{
		MessageID:   "m1",
		BatchID:     "b1",
		EffectType:  effectType,
		UserID:      userID,
		OffsetDays:  offset,
		CycleStart:  cycle.Format(time.RFC3339),
		ScheduledAt: time.Now().Format(time.RFC3339),
	}
}

func TestHandleReminderSendsAndLogs(t *testing.T) {
	ctx := context.Background()
	s, store, sender, _ := newTestNotificationService(t)

	cycle := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rec := &model.CheckinRecord{
		UserID:        7,
		LastCheckinAt: cycle,
		NextDueAt:     cycle.AddDate(0, 0, 182),
		Status:        model.CheckinStatusWarning,
	}
	cipher, err := utils.EncryptPhone("13812345678")
	require.NoError(t, err)
	raw, err := utils.DecodeCipher(cipher)
	require.NoError(t, err)
	rec.PhoneCipher = raw
	require.NoError(t, store.Create(ctx, rec))

	require.NoError(t, s.HandleReminder(ctx, effectMsg(7, "send_reminder", 30, cycle)))
	require.Equal(t, 1, sender.CallCount())
	require.Equal(t, "13812345678", sender.Calls[0].Phone)

	list, err := store.ListNotifications(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, model.NotificationTypeReminderSent, list[0].Type)
	require.True(t, list[0].ActionRequired)

	// 重复消息：通知日志已有记录，跳过且不再发送
	err = s.HandleReminder(ctx, effectMsg(7, "send_reminder", 30, cycle))
	var skip *pkgerrors.SkipMessageError
	require.ErrorAs(t, err, &skip)
	require.Equal(t, 1, sender.CallCount())
}

func TestHandleReminderSkipsSupersededCycle(t *testing.T) {
	ctx := context.Background()
	s, store, sender, _ := newTestNotificationService(t)

	cycle := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rec := &model.CheckinRecord{
		UserID:        7,
		LastCheckinAt: cycle.AddDate(0, 0, 100), // 用户已重新打卡
		NextDueAt:     cycle.AddDate(0, 0, 282),
		Status:        model.CheckinStatusActive,
	}
	require.NoError(t, store.Create(ctx, rec))

	err := s.HandleReminder(ctx, effectMsg(7, "send_reminder", 30, cycle))
	var skip *pkgerrors.SkipMessageError
	require.ErrorAs(t, err, &skip)
	require.Equal(t, 0, sender.CallCount())
}

func TestHandleAlertNotifiesAllBeneficiaries(t *testing.T) {
	ctx := context.Background()
	s, store, sender, _ := newTestNotificationService(t)

	cycle := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	seedEscalatedRecord(t, store, 8, cycle, []string{"13800000001", "13800000002"})

	require.NoError(t, s.HandleAlert(ctx, effectMsg(8, "alert_beneficiaries", 0, cycle)))
	require.Equal(t, 2, sender.CallCount())

	list, err := store.ListNotifications(ctx, 8, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, model.NotificationTypeBeneficiaryAlerted, list[0].Type)

	// 周期级去重：重投的告警不再发送
	err = s.HandleAlert(ctx, effectMsg(8, "alert_beneficiaries", 0, cycle))
	var skip *pkgerrors.SkipMessageError
	require.ErrorAs(t, err, &skip)
	require.Equal(t, 2, sender.CallCount())
}

func TestHandleAlertPartialFailureStillLogs(t *testing.T) {
	ctx := context.Background()
	s, store, sender, _ := newTestNotificationService(t)

	cycle := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	seedEscalatedRecord(t, store, 8, cycle, []string{"13800000001", "13800000002"})

	// 第一个受益人首次发送失败，重试后成功
	sender.FailNext = true
	require.NoError(t, s.HandleAlert(ctx, effectMsg(8, "alert_beneficiaries", 0, cycle)))
	require.GreaterOrEqual(t, sender.CallCount(), 2)

	list, err := store.ListNotifications(ctx, 8, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestHandleInheritanceTriggersRelease(t *testing.T) {
	ctx := context.Background()
	s, store, _, trigger := newTestNotificationService(t)

	cycle := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	seedEscalatedRecord(t, store, 9, cycle, nil)

	require.NoError(t, s.HandleInheritance(ctx, effectMsg(9, "trigger_inheritance", 0, cycle)))
	require.Equal(t, 1, trigger.ReleaseCount())
	require.Equal(t, int64(9), trigger.Released[0])

	list, err := store.ListNotifications(ctx, 9, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, model.NotificationTypeInheritanceTriggered, list[0].Type)

	// 终态效果每个 tick 重发，但释放只触发一次
	err = s.HandleInheritance(ctx, effectMsg(9, "trigger_inheritance", 0, cycle))
	var skip *pkgerrors.SkipMessageError
	require.ErrorAs(t, err, &skip)
	require.Equal(t, 1, trigger.ReleaseCount())
}

func TestHandleInheritanceRetriesOnFailure(t *testing.T) {
	ctx := context.Background()
	s, store, _, trigger := newTestNotificationService(t)

	cycle := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	seedEscalatedRecord(t, store, 9, cycle, nil)

	trigger.FailNext = true
	require.NoError(t, s.HandleInheritance(ctx, effectMsg(9, "trigger_inheritance", 0, cycle)))
	require.Equal(t, 1, trigger.ReleaseCount())
}
