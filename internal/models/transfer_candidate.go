package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CandidateStatus is the lifecycle state of a transfer candidate.
// linked and ignored are terminal; manual_review waits on a human reviewer.
type CandidateStatus string

const (
	StatusPending      CandidateStatus = "pending"
	StatusLinked       CandidateStatus = "linked"
	StatusManualReview CandidateStatus = "manual_review"
	StatusIgnored      CandidateStatus = "ignored"
)

// IsTerminal reports whether no further automatic transition is allowed.
func (s CandidateStatus) IsTerminal() bool {
	return s == StatusLinked || s == StatusIgnored
}

type TransferDirection string

const (
	DirectionIncoming TransferDirection = "incoming"
	DirectionOutgoing TransferDirection = "outgoing"
)

// TransferCandidate is one observed on-ledger transfer awaiting association
// with an internal account. Rows are never deleted; resolved candidates stay
// as the audit trail.
type TransferCandidate struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Signature           string            `gorm:"uniqueIndex" json:"signature"`
	Direction           TransferDirection `gorm:"index" json:"direction"`
	CounterpartyAddress string            `gorm:"index" json:"counterparty_address"`
	Amount              decimal.Decimal   `gorm:"type:numeric(38,18)" json:"amount"`
	AssetID             *string           `json:"asset_id"` // nil = native asset
	ConfidenceScore     float64           `json:"confidence_score"`
	Status              CandidateStatus   `gorm:"index" json:"status"`
	Attempts            int               `json:"attempts"`
	LastAttemptAt       *time.Time        `json:"last_attempt_at"`
	DiscoveredAt        time.Time         `json:"discovered_at"`
	ExpiresAt           time.Time         `gorm:"index" json:"expires_at"` // immutable once set
	Rationale           datatypes.JSON    `json:"rationale"`

	// Resolution. Linked account/wallet are set for linked and (as a proposal)
	// for manual_review; the transaction id only exists once linked.
	LinkedAccountID     *uuid.UUID `json:"linked_account_id"`
	LinkedWalletID      *uuid.UUID `json:"linked_wallet_id"`
	LinkedTransactionID *uuid.UUID `json:"linked_transaction_id"`
	ResolvedAt          *time.Time `json:"resolved_at"`
	ResolutionReason    string     `json:"resolution_reason"`

	CreatedAt time.Time `json:"created_at"`
}
