package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchSettings holds per-account (optionally per-wallet) matching
// configuration. Rows exist only after an explicit user configuration;
// otherwise system defaults apply. The reconciliation engine reads these,
// account settings management owns them.
type MatchSettings struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID             uuid.UUID  `gorm:"index:idx_match_settings_scope,unique" json:"account_id"`
	WalletID              *uuid.UUID `gorm:"index:idx_match_settings_scope,unique" json:"wallet_id"` // nil = account-wide
	Enabled               bool       `json:"enabled"`
	MinConfidence         float64    `json:"min_confidence"`
	AutoApproveConfidence float64    `json:"auto_approve_confidence"` // must be >= MinConfidence
	AutoConfirm           bool       `json:"auto_confirm"`
	TimeWindowHours       int        `json:"time_window_hours"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}
