package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet maps an on-ledger address to an owning account. Address ownership is
// the primary matching signal; the accept flags and asset gate the
// direction/asset consistency signal.
type Wallet struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID      uuid.UUID `gorm:"index" json:"account_id"`
	Address        string    `gorm:"index" json:"address"`
	AssetID        *string   `json:"asset_id"` // nil = native asset
	AcceptIncoming bool      `json:"accept_incoming"`
	AcceptOutgoing bool      `json:"accept_outgoing"`
	CreatedAt      time.Time `json:"created_at"`
}
