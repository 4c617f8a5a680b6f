package model

import "time"

// BeneficiaryNotificationType 通知类别枚举
type BeneficiaryNotificationType string

const (
	NotificationTypeReminderSent         BeneficiaryNotificationType = "reminder_sent"         // 到期提醒已发送
	NotificationTypeBeneficiaryAlerted   BeneficiaryNotificationType = "beneficiary_alerted"   // 受益人已收到告警
	NotificationTypeInheritanceTriggered BeneficiaryNotificationType = "inheritance_triggered" // 资产释放已触发
)

// BeneficiaryNotification 只追加的通知日志，一经写入不可变
// (user_id, type, offset_days, cycle_start) 同时充当效果投递的幂等账本
type BeneficiaryNotification struct {
	BaseModel
	UserID         int64                       `gorm:"not null;index:idx_beneficiary_notifications_user" json:"user_id"`
	Type           BeneficiaryNotificationType `gorm:"type:varchar(32);not null;index:idx_beneficiary_notifications_dedup" json:"type"`
	SentAt         time.Time                   `gorm:"type:timestamptz;not null" json:"sent_at"`
	Message        string                      `gorm:"type:text;not null" json:"message"`
	ActionRequired bool                        `gorm:"not null;default:false" json:"action_required"`

	// 去重键：本轮周期起点（最近一次成功打卡时间）与提醒档位
	CycleStart time.Time `gorm:"type:timestamptz;not null;index:idx_beneficiary_notifications_dedup" json:"cycle_start"`
	OffsetDays *int      `gorm:"type:smallint" json:"offset_days,omitempty"`
}

// TableName 指定表名
func (BeneficiaryNotification) TableName() string {
	return "beneficiary_notifications"
}
