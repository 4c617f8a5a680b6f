package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"Heritage/internal/model"
)

// MemoryStore CheckinStore 的内存参考实现，测试与本地开发用
// CAS 语义与 GORM 实现保持一致
type MemoryStore struct {
	mu            sync.Mutex
	nextID        int64
	records       map[int64]model.CheckinRecord // keyed by record ID
	byUser        map[int64]int64               // user_id -> record ID
	notifications []model.BeneficiaryNotification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[int64]model.CheckinRecord),
		byUser:  make(map[int64]int64),
	}
}

func (s *MemoryStore) GetByUserID(ctx context.Context, userID int64) (*model.CheckinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUser[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	rec := s.records[id]
	return &rec, nil
}

func (s *MemoryStore) Create(ctx context.Context, rec *model.CheckinRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUser[rec.UserID]; ok {
		return ErrDuplicateRecord
	}

	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	s.records[rec.ID] = *rec
	s.byUser[rec.UserID] = rec.ID
	return nil
}

func (s *MemoryStore) UpdateCAS(ctx context.Context, rec *model.CheckinRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.ID]
	if !ok || current.Version != rec.Version {
		return ErrVersionConflict
	}

	rec.Version++
	rec.UpdatedAt = time.Now()
	s.records[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) ListBatch(ctx context.Context, afterID int64, limit int) ([]model.CheckinRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]model.CheckinRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out, nil
}

func (s *MemoryStore) AppendNotification(ctx context.Context, n *model.BeneficiaryNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = time.Now()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, userID int64, limit int) ([]model.BeneficiaryNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.BeneficiaryNotification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	// 时间倒序，最新的在前
	sort.Slice(out, func(i, j int) bool {
		if out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SentAt.After(out[j].SentAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) HasNotification(ctx context.Context, userID int64, typ model.BeneficiaryNotificationType, offsetDays *int, cycleStart time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.UserID != userID || n.Type != typ || !n.CycleStart.Equal(cycleStart) {
			continue
		}
		if offsetDays != nil {
			if n.OffsetDays == nil || *n.OffsetDays != *offsetDays {
				continue
			}
		}
		return true, nil
	}
	return false, nil
}
