package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"transfer-reconciliation-backend/internal/models"
)

// AccountRef is the directory's answer to "who owns this address": one owning
// account/wallet pair plus the wallet attributes the matcher scores against.
type AccountRef struct {
	AccountID      uuid.UUID
	WalletID       uuid.UUID
	AssetID        *string
	AcceptIncoming bool
	AcceptOutgoing bool
}

// ListCandidatesQuery filters the candidate listing. Cursor is the last seen
// candidate ID from the previous page (keyset pagination).
type ListCandidatesQuery struct {
	Status models.CandidateStatus // empty = all
	Cursor string
	Limit  int
}

// TransitionCommit is everything one state-machine transition writes. The
// store applies it atomically: the candidate update is guarded on the
// (status, attempts) pair read before the decision, and the side rows only
// exist if that guard held. A lost guard surfaces as ErrStaleRecord with
// nothing written.
type TransitionCommit struct {
	CandidateID  uuid.UUID
	PrevStatus   models.CandidateStatus
	PrevAttempts int
	Updates      map[string]interface{}
	WalletTx     *models.WalletTransaction
	Audit        *models.ResolutionAuditLog
	Notification *models.NotificationOutbox
}

// CandidateStore provides access to transfer candidate storage.
type CandidateStore interface {
	// Insert adds a candidate unless its signature already exists.
	// Returns created=false (and no error) on a duplicate signature.
	Insert(ctx context.Context, c *models.TransferCandidate) (created bool, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.TransferCandidate, error)
	GetBySignature(ctx context.Context, signature string) (*models.TransferCandidate, error)

	// List returns a page of candidates plus the next cursor.
	List(ctx context.Context, q ListCandidatesQuery) ([]models.TransferCandidate, string, bool, error)

	// ListExpired returns pending candidates with expires_at <= now,
	// oldest expiry first, capped at limit.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.TransferCandidate, error)

	// CommitTransition atomically applies one guarded transition.
	CommitTransition(ctx context.Context, commit TransitionCommit) error
}

// SettingsStore provides access to match settings storage.
type SettingsStore interface {
	// Get returns the settings row for the exact (account, wallet) scope.
	// Returns ErrNotFound when the scope has never been configured.
	Get(ctx context.Context, accountID uuid.UUID, walletID *uuid.UUID) (*models.MatchSettings, error)

	Upsert(ctx context.Context, s *models.MatchSettings) error
}

// AccountDirectory is the engine's read interface to account/wallet identity.
type AccountDirectory interface {
	FindAccountsOwningAddress(ctx context.Context, address string) ([]AccountRef, error)
}

// OutboxStore provides access to the notification outbox. Rows are inserted
// by CandidateStore.CommitTransition; the dispatcher only reads and marks.
type OutboxStore interface {
	ListUndelivered(ctx context.Context, limit int) ([]models.NotificationOutbox, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, deliveryErr string) error
}
