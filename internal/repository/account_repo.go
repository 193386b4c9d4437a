package repository

import (
	"context"

	"gorm.io/gorm"

	"transfer-reconciliation-backend/internal/models"
)

// AccountRepository is the gorm-backed account directory adapter.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindAccountsOwningAddress returns one ref per wallet claiming the address.
// More than one ref means ambiguous ownership, which the matcher never
// auto-approves.
func (r *AccountRepository) FindAccountsOwningAddress(ctx context.Context, address string) ([]AccountRef, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).Where("address = ?", address).Find(&wallets).Error
	if err != nil {
		return nil, err
	}

	refs := make([]AccountRef, 0, len(wallets))
	for _, w := range wallets {
		refs = append(refs, AccountRef{
			AccountID:      w.AccountID,
			WalletID:       w.ID,
			AssetID:        w.AssetID,
			AcceptIncoming: w.AcceptIncoming,
			AcceptOutgoing: w.AcceptOutgoing,
		})
	}
	return refs, nil
}

var _ AccountDirectory = (*AccountRepository)(nil)
