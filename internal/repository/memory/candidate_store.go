// Package memory holds in-memory store implementations used by unit tests.
// They honor the same contracts as the gorm repositories, including the
// guarded transition semantics.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
)

// CandidateStore is an in-memory implementation of repository.CandidateStore.
type CandidateStore struct {
	mu          sync.Mutex
	data        map[uuid.UUID]*models.TransferCandidate
	bySignature map[string]uuid.UUID

	// Side rows captured by CommitTransition, inspectable in tests.
	WalletTxs []models.WalletTransaction
	Audits    []models.ResolutionAuditLog
	Outbox    []models.NotificationOutbox
}

func NewCandidateStore() *CandidateStore {
	return &CandidateStore{
		data:        make(map[uuid.UUID]*models.TransferCandidate),
		bySignature: make(map[string]uuid.UUID),
	}
}

func (s *CandidateStore) Insert(_ context.Context, c *models.TransferCandidate) (bool, error) {
	if c == nil || c.Signature == "" {
		return false, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bySignature[c.Signature]; exists {
		return false, nil
	}

	cp := *c
	s.data[cp.ID] = &cp
	s.bySignature[cp.Signature] = cp.ID
	return true, nil
}

func (s *CandidateStore) GetByID(_ context.Context, id uuid.UUID) (*models.TransferCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CandidateStore) GetBySignature(_ context.Context, signature string) (*models.TransferCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.bySignature[signature]
	if !exists {
		return nil, repository.ErrNotFound
	}
	cp := *s.data[id]
	return &cp, nil
}

func (s *CandidateStore) List(_ context.Context, q repository.ListCandidatesQuery) ([]models.TransferCandidate, string, bool, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.TransferCandidate
	for _, c := range s.data {
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		if q.Cursor != "" && c.ID.String() <= q.Cursor {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID.String() < all[j].ID.String()
	})

	hasMore := false
	var nextCursor string
	if len(all) > limit {
		hasMore = true
		nextCursor = all[limit-1].ID.String()
		all = all[:limit]
	}
	return all, nextCursor, hasMore, nil
}

func (s *CandidateStore) ListExpired(_ context.Context, now time.Time, limit int) ([]models.TransferCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []models.TransferCandidate
	for _, c := range s.data {
		if c.Status == models.StatusPending && !c.ExpiresAt.After(now) {
			expired = append(expired, *c)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

// CommitTransition mirrors the gorm repository: the update only applies if the
// stored (status, attempts) pair still matches, and side rows ride with it.
func (s *CandidateStore) CommitTransition(_ context.Context, commit repository.TransitionCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[commit.CandidateID]
	if !exists {
		return repository.ErrNotFound
	}
	if c.Status != commit.PrevStatus || c.Attempts != commit.PrevAttempts {
		return repository.ErrStaleRecord
	}

	applyUpdates(c, commit.Updates)

	if commit.WalletTx != nil {
		s.WalletTxs = append(s.WalletTxs, *commit.WalletTx)
	}
	if commit.Audit != nil {
		s.Audits = append(s.Audits, *commit.Audit)
	}
	if commit.Notification != nil {
		s.Outbox = append(s.Outbox, *commit.Notification)
	}
	return nil
}

// applyUpdates interprets the column-keyed update map the state machine
// builds for the gorm repository.
func applyUpdates(c *models.TransferCandidate, updates map[string]interface{}) {
	for col, v := range updates {
		switch col {
		case "status":
			c.Status = v.(models.CandidateStatus)
		case "attempts":
			c.Attempts = v.(int)
		case "confidence_score":
			c.ConfidenceScore = v.(float64)
		case "last_attempt_at":
			t := v.(time.Time)
			c.LastAttemptAt = &t
		case "rationale":
			c.Rationale = v.(datatypes.JSON)
		case "linked_account_id":
			c.LinkedAccountID = v.(*uuid.UUID)
		case "linked_wallet_id":
			c.LinkedWalletID = v.(*uuid.UUID)
		case "linked_transaction_id":
			c.LinkedTransactionID = v.(*uuid.UUID)
		case "resolved_at":
			t := v.(time.Time)
			c.ResolvedAt = &t
		case "resolution_reason":
			c.ResolutionReason = v.(string)
		}
	}
}

// Verify interface compliance at compile time.
var _ repository.CandidateStore = (*CandidateStore)(nil)
