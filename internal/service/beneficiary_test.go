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
	"Heritage/utils"
)

func newTestBeneficiaryService(t *testing.T) (*BeneficiaryService, *repository.MemoryStore) {
	t.Helper()
	config.Cfg.EncryptionKey = "0123456789abcdef0123456789abcdef"

	store := repository.NewMemoryStore()
	return NewBeneficiaryService(store), store
}

func seedCheckinRecord(t *testing.T, store *repository.MemoryStore, userID int64) {
	t.Helper()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	err := store.Create(context.Background(), &model.CheckinRecord{
		UserID:        userID,
		Status:        model.CheckinStatusActive,
		LastCheckinAt: now,
		NextDueAt:     now.AddDate(0, 0, 182),
	})
	require.NoError(t, err)
}

func TestAddBeneficiary(t *testing.T) {
	ctx := context.Background()
	s, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	data, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID:       100,
		DisplayName:  "张三",
		Relationship: "spouse",
		Phone:        "13800138000",
		Priority:     1,
	})
	require.NoError(t, err)
	require.Equal(t, "张三", data.DisplayName)
	require.Equal(t, 1, data.Priority)

	// 号码只以密文落库，且可以解出原文
	rec, err := store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.Len(t, rec.Beneficiaries, 1)
	require.NotEqual(t, "13800138000", rec.Beneficiaries[0].PhoneCipherBase64)
	phone, err := utils.DecryptPhoneBase64(rec.Beneficiaries[0].PhoneCipherBase64)
	require.NoError(t, err)
	require.Equal(t, "13800138000", phone)
}

func TestAddBeneficiaryWithoutRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestBeneficiaryService(t)

	_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID:   7,
		Phone:    "13800138000",
		Priority: 1,
	})
	require.ErrorIs(t, err, pkgerrors.RecordNotFound)
}

func TestAddBeneficiaryPriorityRules(t *testing.T) {
	ctx := context.Background()
	s, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138001", Priority: 0,
	})
	require.ErrorIs(t, err, pkgerrors.BeneficiaryPriorityConflict)

	_, err = s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138001", Priority: 2,
	})
	require.NoError(t, err)

	// 同一优先级不允许重复
	_, err = s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138002", Priority: 2,
	})
	require.ErrorIs(t, err, pkgerrors.BeneficiaryPriorityConflict)
}

func TestAddBeneficiaryLimit(t *testing.T) {
	ctx := context.Background()
	s, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	phones := []string{"13800138001", "13800138002", "13800138003"}
	for i, phone := range phones {
		_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
			UserID: 100, Phone: phone, Priority: i + 1,
		})
		require.NoError(t, err)
	}

	_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138004", Priority: 1,
	})
	require.ErrorIs(t, err, pkgerrors.BeneficiaryLimitReached)
}

func TestListBeneficiariesSortedWithoutPhone(t *testing.T) {
	ctx := context.Background()
	s, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	// 故意乱序插入
	for _, p := range []int{3, 1, 2} {
		_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
			UserID:      100,
			DisplayName: "联系人",
			Phone:       "13800138000",
			Priority:    p,
		})
		require.NoError(t, err)
	}

	list, err := s.ListBeneficiaries(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, b := range list {
		require.Equal(t, i+1, b.Priority)
	}
}

func TestRemoveBeneficiary(t *testing.T) {
	ctx := context.Background()
	s, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138001", Priority: 1,
	})
	require.NoError(t, err)
	_, err = s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138002", Priority: 2,
	})
	require.NoError(t, err)

	require.NoError(t, s.RemoveBeneficiary(ctx, 100, 1))

	list, err := s.ListBeneficiaries(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, list[0].Priority)

	require.ErrorIs(t, s.RemoveBeneficiary(ctx, 100, 1), pkgerrors.BeneficiaryNotFound)
}

// conflictingStore 前 conflicts 次 CAS 更新返回版本冲突，之后透传
type conflictingStore struct {
	repository.CheckinStore
	conflicts int
}

func (s *conflictingStore) UpdateCAS(ctx context.Context, rec *model.CheckinRecord) error {
	if s.conflicts > 0 {
		s.conflicts--
		return repository.ErrVersionConflict
	}
	return s.CheckinStore.UpdateCAS(ctx, rec)
}

func TestAddBeneficiaryRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	_, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	// 首次 CAS 撞上并发修改（比如调度 tick），重读后应当成功
	s := NewBeneficiaryService(&conflictingStore{CheckinStore: store, conflicts: 1})
	_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138001", Priority: 1,
	})
	require.NoError(t, err)

	rec, err := store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.Len(t, rec.Beneficiaries, 1)
}

func TestBeneficiaryConflictExhaustion(t *testing.T) {
	ctx := context.Background()
	_, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	s := NewBeneficiaryService(&conflictingStore{CheckinStore: store, conflicts: 100})
	_, err := s.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138001", Priority: 1,
	})
	require.ErrorIs(t, err, pkgerrors.StoreUnavailable)
}

func TestRemoveBeneficiaryRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	base, store := newTestBeneficiaryService(t)
	seedCheckinRecord(t, store, 100)

	_, err := base.AddBeneficiary(ctx, model.CreateBeneficiaryRequest{
		UserID: 100, Phone: "13800138001", Priority: 1,
	})
	require.NoError(t, err)

	s := NewBeneficiaryService(&conflictingStore{CheckinStore: store, conflicts: 1})
	require.NoError(t, s.RemoveBeneficiary(ctx, 100, 1))

	rec, err := store.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.Empty(t, rec.Beneficiaries)
}
