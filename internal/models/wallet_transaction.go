package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletTransaction is the internal transaction record materialized when a
// candidate is linked. SourceSignature ties it back to the observed transfer.
type WalletTransaction struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID       uuid.UUID         `gorm:"index" json:"account_id"`
	WalletID        uuid.UUID         `gorm:"index" json:"wallet_id"`
	Direction       TransferDirection `json:"direction"`
	Amount          decimal.Decimal   `gorm:"type:numeric(38,18)" json:"amount"`
	AssetID         *string           `json:"asset_id"`
	SourceSignature string            `gorm:"uniqueIndex" json:"source_signature"`
	CreatedAt       time.Time         `json:"created_at"`
}
