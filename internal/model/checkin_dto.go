package model

import "time"

// ========== CheckIn 相关 DTO ==========

// CheckinRequest 打卡请求
type CheckinRequest struct {
	UserID int64  `json:"user_id"`
	Phone  string `json:"phone,omitempty"` // 可选，更新本人提醒号码
}

// CheckinData 打卡响应数据
type CheckinData struct {
	Status        string    `json:"status"`
	NextDueAt     time.Time `json:"next_due_at"`
	RemindersSent int       `json:"reminders_sent"`
}

// CheckinStatusData 打卡状态查询数据
type CheckinStatusData struct {
	Status          string    `json:"status"`
	LastCheckinAt   time.Time `json:"last_checkin_at"`
	NextDueAt       time.Time `json:"next_due_at"`
	RemindersSent   int       `json:"reminders_sent"`
	MaxReminders    int       `json:"max_reminders"`
	GracePeriodDays int       `json:"grace_period_days"`
}

// NotificationData 通知日志条目
type NotificationData struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	SentAt         time.Time `json:"sent_at"`
	Message        string    `json:"message"`
	ActionRequired bool      `json:"action_required"`
}

// ========== Beneficiary 相关 DTO ==========

// CreateBeneficiaryRequest 新增受益人请求
type CreateBeneficiaryRequest struct {
	UserID       int64  `json:"user_id"`
	DisplayName  string `json:"display_name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
	Priority     int    `json:"priority"` // 1-3
}

// BeneficiaryData 受益人信息（不含联系方式明文/密文）
type BeneficiaryData struct {
	DisplayName  string `json:"display_name"`
	Relationship string `json:"relationship"`
	Priority     int    `json:"priority"`
	CreatedAt    string `json:"created_at"`
}
