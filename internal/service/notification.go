package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"Heritage/config"
	"Heritage/internal/model"
	"Heritage/internal/repository"
	pkgerrors "Heritage/pkg/errors"
	"Heritage/pkg/inherit"
	"Heritage/pkg/logger"
	"Heritage/pkg/metrics"
	"Heritage/pkg/notify"
	"Heritage/storage/database"
	"Heritage/utils"
)

// 消费端效果处理，幂等性基于通知日志：
// 同一周期 (cycle_start) 内同类通知只落账一次，重复消息直接跳过

var (
	notificationService *NotificationService
	notificationOnce    sync.Once
)

func Notification() *NotificationService {
	notificationOnce.Do(func() {
		notificationService = NewNotificationService(
			repository.NewCheckinRepo(database.DB()),
			notify.GetSender(),
			inherit.GetTrigger(),
		)
	})
	return notificationService
}

type NotificationService struct {
	store   repository.CheckinStore
	sender  notify.Sender
	trigger inherit.Trigger
	now     func() time.Time
}

func NewNotificationService(store repository.CheckinStore, sender notify.Sender, trigger inherit.Trigger) *NotificationService {
	return &NotificationService{
		store:   store,
		sender:  sender,
		trigger: trigger,
		now:     time.Now,
	}
}

// HandleReminder 处理到期提醒效果，短信发给用户本人
func (s *NotificationService) HandleReminder(ctx context.Context, msg model.EffectMessage) error {
	cycle, err := parseCycleStart(msg.CycleStart)
	if err != nil {
		return &pkgerrors.SkipMessageError{Reason: "malformed cycle_start"}
	}

	done, err := s.store.HasNotification(ctx, msg.UserID, model.NotificationTypeReminderSent, &msg.OffsetDays, cycle)
	if err != nil {
		return fmt.Errorf("failed to check notification log: %w", err)
	}
	if done {
		return &pkgerrors.SkipMessageError{Reason: "reminder already sent for this cycle"}
	}

	rec, err := s.store.GetByUserID(ctx, msg.UserID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return &pkgerrors.SkipMessageError{Reason: "record no longer exists"}
	}
	if err != nil {
		return fmt.Errorf("failed to load checkin record: %w", err)
	}

	// 消息投递期间用户打了卡，旧周期的提醒作废
	if !rec.LastCheckinAt.Equal(cycle) {
		return &pkgerrors.SkipMessageError{Reason: "cycle superseded by a newer check-in"}
	}

	message := fmt.Sprintf("Your check-in is due in %d day(s). Please check in to keep your plan active.", msg.OffsetDays)

	if rec.PhoneCipher != nil {
		phone, derr := utils.DecryptPhone(rec.PhoneCipher)
		if derr != nil {
			logger.Logger.Error("Failed to decrypt user phone, reminder not delivered",
				zap.Int64("user_id", msg.UserID),
				zap.Error(derr),
			)
		} else if serr := s.sendSMS(ctx, phone, fmt.Sprintf(`{"days":"%d"}`, msg.OffsetDays), string(model.NotificationTypeReminderSent)); serr != nil {
			return serr
		}
	} else {
		logger.Logger.Warn("No phone registered, reminder recorded without SMS",
			zap.Int64("user_id", msg.UserID),
		)
	}

	offset := msg.OffsetDays
	if err := s.store.AppendNotification(ctx, &model.BeneficiaryNotification{
		UserID:         msg.UserID,
		Type:           model.NotificationTypeReminderSent,
		SentAt:         s.now(),
		Message:        message,
		ActionRequired: true,
		CycleStart:     cycle,
		OffsetDays:     &offset,
	}); err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}

	metrics.RecordReminderSent(msg.OffsetDays)
	logger.Logger.Info("Reminder processed",
		zap.Int64("user_id", msg.UserID),
		zap.Int("offset_days", msg.OffsetDays),
	)
	return nil
}

// HandleAlert 处理受益人告警效果，按优先级逐个发送
func (s *NotificationService) HandleAlert(ctx context.Context, msg model.EffectMessage) error {
	cycle, err := parseCycleStart(msg.CycleStart)
	if err != nil {
		return &pkgerrors.SkipMessageError{Reason: "malformed cycle_start"}
	}

	done, err := s.store.HasNotification(ctx, msg.UserID, model.NotificationTypeBeneficiaryAlerted, nil, cycle)
	if err != nil {
		return fmt.Errorf("failed to check notification log: %w", err)
	}
	if done {
		return &pkgerrors.SkipMessageError{Reason: "beneficiaries already alerted for this cycle"}
	}

	rec, err := s.store.GetByUserID(ctx, msg.UserID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return &pkgerrors.SkipMessageError{Reason: "record no longer exists"}
	}
	if err != nil {
		return fmt.Errorf("failed to load checkin record: %w", err)
	}

	if !rec.LastCheckinAt.Equal(cycle) {
		return &pkgerrors.SkipMessageError{Reason: "cycle superseded by a newer check-in"}
	}

	ordered := make([]model.Beneficiary, len(rec.Beneficiaries))
	copy(ordered, rec.Beneficiaries)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	delivered := 0
	for _, b := range ordered {
		phone, derr := utils.DecryptPhoneBase64(b.PhoneCipherBase64)
		if derr != nil {
			logger.Logger.Error("Failed to decrypt beneficiary phone",
				zap.Int64("user_id", msg.UserID),
				zap.Int("priority", b.Priority),
				zap.Error(derr),
			)
			continue
		}

		if serr := s.sendSMS(ctx, phone, `{"event":"missed_checkin"}`, string(model.NotificationTypeBeneficiaryAlerted)); serr != nil {
			logger.Logger.Error("Failed to alert beneficiary",
				zap.Int64("user_id", msg.UserID),
				zap.Int("priority", b.Priority),
				zap.Error(serr),
			)
			continue
		}
		delivered++
	}

	if len(ordered) > 0 && delivered == 0 {
		return fmt.Errorf("failed to alert any of %d beneficiaries for user %d", len(ordered), msg.UserID)
	}

	message := fmt.Sprintf("Grace period expired. %d beneficiary contact(s) have been alerted.", delivered)
	if err := s.store.AppendNotification(ctx, &model.BeneficiaryNotification{
		UserID:         msg.UserID,
		Type:           model.NotificationTypeBeneficiaryAlerted,
		SentAt:         s.now(),
		Message:        message,
		ActionRequired: false,
		CycleStart:     cycle,
	}); err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}

	metrics.RecordEscalation()
	logger.Logger.Info("Beneficiary alert processed",
		zap.Int64("user_id", msg.UserID),
		zap.Int("delivered", delivered),
	)
	return nil
}

// HandleInheritance 处理资产释放效果，不可逆的最后一步
func (s *NotificationService) HandleInheritance(ctx context.Context, msg model.EffectMessage) error {
	cycle, err := parseCycleStart(msg.CycleStart)
	if err != nil {
		return &pkgerrors.SkipMessageError{Reason: "malformed cycle_start"}
	}

	done, err := s.store.HasNotification(ctx, msg.UserID, model.NotificationTypeInheritanceTriggered, nil, cycle)
	if err != nil {
		return fmt.Errorf("failed to check notification log: %w", err)
	}
	if done {
		return &pkgerrors.SkipMessageError{Reason: "inheritance already triggered for this cycle"}
	}

	cfg := config.Cfg
	backoff := time.Duration(cfg.DispatchBackoffMilli) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= cfg.DispatchMaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordDispatchRetry(msg.EffectType)
			time.Sleep(backoff * time.Duration(attempt))
		}
		if lastErr = s.trigger.BeginRelease(ctx, msg.UserID); lastErr == nil {
			break
		}
		logger.Logger.Warn("Inheritance trigger attempt failed",
			zap.Int64("user_id", msg.UserID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}
	if lastErr != nil {
		return fmt.Errorf("failed to trigger inheritance release: %w", lastErr)
	}

	if err := s.store.AppendNotification(ctx, &model.BeneficiaryNotification{
		UserID:         msg.UserID,
		Type:           model.NotificationTypeInheritanceTriggered,
		SentAt:         s.now(),
		Message:        "Confirmation window expired. Inheritance release has been initiated.",
		ActionRequired: false,
		CycleStart:     cycle,
	}); err != nil {
		return fmt.Errorf("failed to append notification log: %w", err)
	}

	metrics.RecordInheritanceTrigger()
	logger.Logger.Info("Inheritance release triggered",
		zap.Int64("user_id", msg.UserID),
	)
	return nil
}

// sendSMS 带重试的单条短信发送
func (s *NotificationService) sendSMS(ctx context.Context, phone, templateParam, effectType string) error {
	cfg := config.Cfg
	backoff := time.Duration(cfg.DispatchBackoffMilli) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= cfg.DispatchMaxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordDispatchRetry(effectType)
			time.Sleep(backoff * time.Duration(attempt))
		}
		if lastErr = s.sender.SendSingle(ctx, phone, cfg.SMSSignName, cfg.SMSTemplateCode, templateParam); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("failed to send SMS after %d attempts: %w", cfg.DispatchMaxRetries+1, lastErr)
}

func parseCycleStart(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, raw)
}
