package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CheckinStatus 存活打卡状态枚举
type CheckinStatus string

const (
	CheckinStatusActive               CheckinStatus = "active"                // 正常
	CheckinStatusWarning              CheckinStatus = "warning"               // 已发送到期提醒
	CheckinStatusOverdue              CheckinStatus = "overdue"               // 已过期，宽限期内
	CheckinStatusEscalated            CheckinStatus = "escalated"             // 宽限期已过，已通知受益人
	CheckinStatusInheritanceTriggered CheckinStatus = "inheritance_triggered" // 终态，已触发资产释放
)

// CheckinRecord 每用户一条的存活打卡记录
// next_due_at 恒等于 last_checkin_at + interval，只在打卡时一并重算
type CheckinRecord struct {
	BaseModel
	UserID        int64         `gorm:"uniqueIndex;not null" json:"user_id"`
	LastCheckinAt time.Time     `gorm:"type:timestamptz;not null" json:"last_checkin_at"`
	NextDueAt     time.Time     `gorm:"type:timestamptz;not null;index:idx_checkin_records_due" json:"next_due_at"`
	Status        CheckinStatus `gorm:"type:varchar(32);not null;default:'active';index:idx_checkin_records_status" json:"status"`
	RemindersSent int           `gorm:"type:smallint;not null;default:0" json:"reminders_sent"`
	EscalatedAt   *time.Time    `gorm:"type:timestamptz" json:"escalated_at,omitempty"`

	// 策略快照，创建时取自配置，打卡时刷新
	IntervalDays         int     `gorm:"not null;default:182" json:"interval_days"`
	MaxReminders         int     `gorm:"type:smallint;not null;default:4" json:"max_reminders"`
	GracePeriodDays      int     `gorm:"type:smallint;not null;default:30" json:"grace_period_days"`
	ReminderScheduleDays IntList `gorm:"type:jsonb;default:'[30,14,7,1]'" json:"reminder_schedule_days"`

	// 乐观锁版本号，打卡与调度 tick 都走 CAS 更新
	Version int64 `gorm:"not null;default:0" json:"-"`

	// 用户本人联系方式，提醒短信的收件人
	PhoneCipher []byte  `gorm:"type:bytea" json:"-"`
	PhoneHash   *string `gorm:"type:char(64)" json:"-"`

	// 受益人数组（JSONB），告警短信的收件人
	Beneficiaries Beneficiaries `gorm:"type:jsonb;default:'[]'" json:"beneficiaries"`
}

// TableName 指定表名
func (CheckinRecord) TableName() string {
	return "checkin_records"
}

// IntList JSONB 整型数组
type IntList []int

func (l IntList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *IntList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal IntList value")
	}
	return json.Unmarshal(bytes, l)
}

// Beneficiaries 受益人数组（JSONB）
type Beneficiaries []Beneficiary

// Beneficiary 受益人结构（存储在 checkin_records.beneficiaries JSONB 中）
type Beneficiary struct {
	DisplayName       string `json:"display_name"`
	Relationship      string `json:"relationship"`
	PhoneCipherBase64 string `json:"phone_cipher_base64"` // base64 编码的密文
	PhoneHash         string `json:"phone_hash"`
	Priority          int    `json:"priority"` // 1-3
	CreatedAt         string `json:"created_at"`
}

func (b Beneficiaries) Value() (driver.Value, error) {
	if b == nil {
		return json.Marshal(Beneficiaries{})
	}
	return json.Marshal(b)
}

func (b *Beneficiaries) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal Beneficiaries value")
	}
	return json.Unmarshal(bytes, b)
}
