package escalate

// 升级引擎：对单条打卡记录和当前时间做纯函数决策，无 I/O
// 持久化与效果投递由调度器负责

import (
	"sort"
	"time"

	"Heritage/internal/model"
)

// EffectType 效果类型枚举
type EffectType string

const (
	EffectSendReminder       EffectType = "send_reminder"
	EffectAlertBeneficiaries EffectType = "alert_beneficiaries"
	EffectTriggerInheritance EffectType = "trigger_inheritance"
)

// Effect 调度器需要执行的副作用指令
type Effect struct {
	Type       EffectType
	UserID     int64
	OffsetDays int       // 仅 send_reminder 有效，命中的提醒档位
	CycleStart time.Time // 本轮周期起点，下游幂等去重用
}

const (
	defaultIntervalDays    = 182
	defaultGracePeriodDays = 30
	defaultMaxReminders    = 4
)

var defaultSchedule = []int{30, 14, 7, 1}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// NormalizeSchedule 提醒档位降序排列，引擎按 reminders_sent 作为下标扫描
func NormalizeSchedule(schedule []int) []int {
	if len(schedule) == 0 {
		out := make([]int, len(defaultSchedule))
		copy(out, defaultSchedule)
		return out
	}
	out := make([]int, 0, len(schedule))
	for _, d := range schedule {
		if d > 0 {
			out = append(out, d)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Evaluate 对一条记录做一次 tick 决策，返回更新后的记录和待执行的效果
// 对任意输入都不 panic；now 早于 last_checkin_at（时钟回拨）视为无事发生
//
// 已升级（escalated）与终态（inheritance_triggered）每个 tick 都会重发对应效果，
// 由消费端依据通知日志去重，这样崩溃丢失的投递会在下一个 tick 补发
func Evaluate(rec model.CheckinRecord, now time.Time, confirmation time.Duration) (model.CheckinRecord, []Effect) {
	if now.Before(rec.LastCheckinAt) {
		return rec, nil
	}

	cycle := rec.LastCheckinAt

	// 终态不回退，仅补发触发效果
	if rec.Status == model.CheckinStatusInheritanceTriggered {
		return rec, []Effect{{
			Type:       EffectTriggerInheritance,
			UserID:     rec.UserID,
			CycleStart: cycle,
		}}
	}

	grace := rec.GracePeriodDays
	if grace <= 0 {
		grace = defaultGracePeriodDays
	}
	graceDeadline := rec.NextDueAt.Add(days(grace))

	// 1. 宽限期已过：升级路径
	if !now.Before(graceDeadline) {
		if rec.EscalatedAt == nil {
			t := now
			rec.EscalatedAt = &t
			rec.Status = model.CheckinStatusEscalated
			return rec, []Effect{{
				Type:       EffectAlertBeneficiaries,
				UserID:     rec.UserID,
				CycleStart: cycle,
			}}
		}

		// 确认窗口结束后，进入不可逆终态
		if confirmation > 0 && !now.Before(rec.EscalatedAt.Add(confirmation)) {
			rec.Status = model.CheckinStatusInheritanceTriggered
			return rec, []Effect{{
				Type:       EffectTriggerInheritance,
				UserID:     rec.UserID,
				CycleStart: cycle,
			}}
		}

		rec.Status = model.CheckinStatusEscalated
		return rec, []Effect{{
			Type:       EffectAlertBeneficiaries,
			UserID:     rec.UserID,
			CycleStart: cycle,
		}}
	}

	// 2. 已过期但在宽限期内：不再发提醒
	if !now.Before(rec.NextDueAt) {
		rec.Status = model.CheckinStatusOverdue
		return rec, nil
	}

	// 3. 到期前的提醒窗口：reminders_sent 即下一个待检查的档位下标
	// 同一 tick 跨过多个阈值时只发最紧急的一条，计数一次跳到位
	schedule := NormalizeSchedule(rec.ReminderScheduleDays)
	maxReminders := rec.MaxReminders
	if maxReminders <= 0 {
		maxReminders = defaultMaxReminders
	}

	fired := -1
	for i := rec.RemindersSent; i < len(schedule) && i < maxReminders; i++ {
		threshold := rec.NextDueAt.Add(-days(schedule[i]))
		if now.Before(threshold) {
			break
		}
		fired = i
	}

	if fired >= 0 {
		rec.Status = model.CheckinStatusWarning
		rec.RemindersSent = fired + 1
		return rec, []Effect{{
			Type:       EffectSendReminder,
			UserID:     rec.UserID,
			OffsetDays: schedule[fired],
			CycleStart: cycle,
		}}
	}

	// 4. 未到任一阈值
	if rec.RemindersSent == 0 {
		rec.Status = model.CheckinStatusActive
	}
	return rec, nil
}
