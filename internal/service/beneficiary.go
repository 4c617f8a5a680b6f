package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"Heritage/internal/model"
	"Heritage/internal/repository"
	pkgerrors "Heritage/pkg/errors"
	"Heritage/pkg/logger"
	"Heritage/storage/database"
	"Heritage/utils"
)

// 受益人以 JSONB 挂在打卡记录上，最多三人，优先级 1-3 互不重复
// 编辑和调度 tick 共用记录版本号，冲突时重读重试

const beneficiaryCASRetries = 3

var (
	beneficiaryService *BeneficiaryService
	beneficiaryOnce    sync.Once
)

func Beneficiary() *BeneficiaryService {
	beneficiaryOnce.Do(func() {
		beneficiaryService = NewBeneficiaryService(repository.NewCheckinRepo(database.DB()))
	})

	return beneficiaryService
}

type BeneficiaryService struct {
	store repository.CheckinStore
}

func NewBeneficiaryService(store repository.CheckinStore) *BeneficiaryService {
	return &BeneficiaryService{store: store}
}

// AddBeneficiary 新增一位受益人，需要先有打卡记录
func (s *BeneficiaryService) AddBeneficiary(
	ctx context.Context,
	req model.CreateBeneficiaryRequest,
) (*model.BeneficiaryData, error) {
	if req.UserID <= 0 {
		return nil, pkgerrors.InvalidUserID
	}
	if req.Priority < 1 || req.Priority > 3 {
		return nil, pkgerrors.BeneficiaryPriorityConflict
	}
	if !utils.ValidatePhone(req.Phone) {
		return nil, pkgerrors.InvalidPhone
	}

	phoneCipherBase64, err := utils.EncryptPhone(req.Phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt phone: %w", err)
	}

	entry := model.Beneficiary{
		DisplayName:       req.DisplayName,
		Relationship:      req.Relationship,
		PhoneCipherBase64: phoneCipherBase64,
		PhoneHash:         utils.HashPhone(req.Phone),
		Priority:          req.Priority,
		CreatedAt:         time.Now().Format(time.RFC3339),
	}

	for attempt := 0; attempt <= beneficiaryCASRetries; attempt++ {
		rec, err := s.store.GetByUserID(ctx, req.UserID)
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, pkgerrors.RecordNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load checkin record: %w", err)
		}

		// 限额与优先级检查基于最新版本，重试时重新校验
		if len(rec.Beneficiaries) >= 3 {
			return nil, pkgerrors.BeneficiaryLimitReached
		}
		for _, b := range rec.Beneficiaries {
			if b.Priority == req.Priority {
				return nil, pkgerrors.BeneficiaryPriorityConflict
			}
		}

		rec.Beneficiaries = append(rec.Beneficiaries, entry)

		err = s.store.UpdateCAS(ctx, rec)
		if errors.Is(err, repository.ErrVersionConflict) {
			logger.Logger.Debug("Beneficiary add CAS conflict, retrying",
				zap.Int64("user_id", req.UserID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to update beneficiaries: %w", err)
		}

		logger.Logger.Info("Beneficiary added",
			zap.Int64("user_id", req.UserID),
			zap.Int("priority", req.Priority),
		)

		return &model.BeneficiaryData{
			DisplayName:  entry.DisplayName,
			Relationship: entry.Relationship,
			Priority:     entry.Priority,
			CreatedAt:    entry.CreatedAt,
		}, nil
	}

	return nil, pkgerrors.StoreUnavailable
}

// ListBeneficiaries 按优先级升序返回，不含任何号码信息
func (s *BeneficiaryService) ListBeneficiaries(ctx context.Context, userID int64) ([]model.BeneficiaryData, error) {
	if userID <= 0 {
		return nil, pkgerrors.InvalidUserID
	}

	rec, err := s.store.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, pkgerrors.RecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkin record: %w", err)
	}

	out := make([]model.BeneficiaryData, 0, len(rec.Beneficiaries))
	for _, b := range rec.Beneficiaries {
		out = append(out, model.BeneficiaryData{
			DisplayName:  b.DisplayName,
			Relationship: b.Relationship,
			Priority:     b.Priority,
			CreatedAt:    b.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })

	return out, nil
}

// RemoveBeneficiary 按优先级删除
func (s *BeneficiaryService) RemoveBeneficiary(ctx context.Context, userID int64, priority int) error {
	if userID <= 0 {
		return pkgerrors.InvalidUserID
	}

	for attempt := 0; attempt <= beneficiaryCASRetries; attempt++ {
		rec, err := s.store.GetByUserID(ctx, userID)
		if errors.Is(err, repository.ErrRecordNotFound) {
			return pkgerrors.RecordNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load checkin record: %w", err)
		}

		kept := make(model.Beneficiaries, 0, len(rec.Beneficiaries))
		found := false
		for _, b := range rec.Beneficiaries {
			if b.Priority == priority {
				found = true
				continue
			}
			kept = append(kept, b)
		}
		if !found {
			return pkgerrors.BeneficiaryNotFound
		}

		rec.Beneficiaries = kept
		err = s.store.UpdateCAS(ctx, rec)
		if errors.Is(err, repository.ErrVersionConflict) {
			logger.Logger.Debug("Beneficiary remove CAS conflict, retrying",
				zap.Int64("user_id", userID),
				zap.Int("priority", priority),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to update beneficiaries: %w", err)
		}

		logger.Logger.Info("Beneficiary removed",
			zap.Int64("user_id", userID),
			zap.Int("priority", priority),
		)

		return nil
	}

	return pkgerrors.StoreUnavailable
}
