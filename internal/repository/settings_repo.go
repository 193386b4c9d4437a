package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"transfer-reconciliation-backend/internal/models"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings for the exact (account, wallet) scope. A nil
// walletID means the account-wide row.
func (r *SettingsRepository) Get(ctx context.Context, accountID uuid.UUID, walletID *uuid.UUID) (*models.MatchSettings, error) {
	var s models.MatchSettings
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if walletID != nil {
		query = query.Where("wallet_id = ?", *walletID)
	} else {
		query = query.Where("wallet_id IS NULL")
	}

	err := query.First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s *models.MatchSettings) error {
	if s == nil {
		return ErrInvalidInput
	}
	if s.AutoApproveConfidence < s.MinConfidence {
		return ErrInvalidInput
	}

	existing, err := r.Get(ctx, s.AccountID, s.WalletID)
	if errors.Is(err, ErrNotFound) {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = time.Now()
		s.UpdatedAt = s.CreatedAt
		return r.db.WithContext(ctx).Create(s).Error
	}
	if err != nil {
		return err
	}

	s.ID = existing.ID
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(s).Error
}

var _ SettingsStore = (*SettingsRepository)(nil)
