package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
)

// SettingsStore is an in-memory implementation of repository.SettingsStore.
type SettingsStore struct {
	mu   sync.RWMutex
	data map[settingsKey]*models.MatchSettings
}

type settingsKey struct {
	accountID uuid.UUID
	walletID  uuid.UUID // uuid.Nil = account-wide
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{data: make(map[settingsKey]*models.MatchSettings)}
}

func keyFor(accountID uuid.UUID, walletID *uuid.UUID) settingsKey {
	k := settingsKey{accountID: accountID}
	if walletID != nil {
		k.walletID = *walletID
	}
	return k
}

func (s *SettingsStore) Get(_ context.Context, accountID uuid.UUID, walletID *uuid.UUID) (*models.MatchSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.data[keyFor(accountID, walletID)]
	if !exists {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *SettingsStore) Upsert(_ context.Context, row *models.MatchSettings) error {
	if row == nil || row.AutoApproveConfidence < row.MinConfidence {
		return repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	s.data[keyFor(row.AccountID, row.WalletID)] = &cp
	return nil
}

var _ repository.SettingsStore = (*SettingsStore)(nil)
