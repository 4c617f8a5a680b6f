package model

// EffectMessage 调度 tick 产出的副作用消息
// 三类效果共用一个消息体，按 routing key 区分队列
type EffectMessage struct {
	MessageID   string `json:"message_id"`
	BatchID     string `json:"batch_id"`
	EffectType  string `json:"effect_type"` // send_reminder, alert_beneficiaries, trigger_inheritance
	UserID      int64  `json:"user_id"`
	OffsetDays  int    `json:"offset_days,omitempty"` // 仅 send_reminder 有效
	CycleStart  string `json:"cycle_start"`           // RFC3339，本轮周期起点，下游幂等去重用
	ScheduledAt string `json:"scheduled_at"`
}
