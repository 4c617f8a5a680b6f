package repository

import (
	"context"
	"errors"
	"time"

	"Heritage/internal/model"
)

var (
	// ErrRecordNotFound 指定用户没有打卡记录
	ErrRecordNotFound = errors.New("checkin record not found")
	// ErrVersionConflict CAS 更新失败，记录已被并发修改（通常是用户抢先打卡）
	ErrVersionConflict = errors.New("checkin record version conflict")
	// ErrDuplicateRecord 并发创建撞上了 user_id 唯一索引
	ErrDuplicateRecord = errors.New("checkin record already exists")
)

// CheckinStore 打卡记录与通知日志的持久化契约
// 所有状态变更都通过 UpdateCAS 走乐观锁，杜绝 tick 和用户打卡互相覆盖
type CheckinStore interface {
	GetByUserID(ctx context.Context, userID int64) (*model.CheckinRecord, error)
	Create(ctx context.Context, rec *model.CheckinRecord) error
	// UpdateCAS 按 version 做条件更新，成功后递增 rec.Version
	UpdateCAS(ctx context.Context, rec *model.CheckinRecord) error
	// ListBatch 按主键游标分页，调度器整表扫描用
	ListBatch(ctx context.Context, afterID int64, limit int) ([]model.CheckinRecord, error)

	// AppendNotification 写入只追加的通知日志
	AppendNotification(ctx context.Context, n *model.BeneficiaryNotification) error
	// ListNotifications 按时间倒序返回用户的通知日志
	ListNotifications(ctx context.Context, userID int64, limit int) ([]model.BeneficiaryNotification, error)
	// HasNotification 幂等查询：本轮周期内同类通知是否已经落账
	// offsetDays 为 nil 时不参与匹配
	HasNotification(ctx context.Context, userID int64, typ model.BeneficiaryNotificationType, offsetDays *int, cycleStart time.Time) (bool, error)
}
