// Package resolution drives transfer candidates through their lifecycle.
// Every transition is committed through a compare-and-swap on the
// (status, attempts) pair read immediately before the decision, so duplicate
// concurrent resolve calls converge on a single outcome.
package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
	"transfer-reconciliation-backend/internal/services/matching"
)

var (
	// ErrNotReviewable is returned when a reviewer decision targets a
	// candidate that is not waiting for review.
	ErrNotReviewable = errors.New("candidate is not in manual review")

	// ErrNoProposedResolution is returned when a reviewer approves a
	// manual_review candidate that carries no proposed account (ambiguous
	// ownership); such candidates can only be rejected.
	ErrNoProposedResolution = errors.New("no proposed resolution to approve")
)

// Resolution reasons recorded on the candidate and in the audit trail.
const (
	ReasonAutoApproved      = "auto_approved"
	ReasonAmbiguousOwner    = "ambiguous_ownership"
	ReasonNeedsReview       = "needs_review"
	ReasonAttemptsExhausted = "max_attempts_exhausted"
	ReasonExpired           = "expired"
	ReasonApprovedByReview  = "approved_by_reviewer"
	ReasonRejectedByReview  = "rejected_by_reviewer"
)

const actorEngine = "engine"
const actorSweeper = "sweeper"

type Machine struct {
	candidates  repository.CandidateStore
	maxAttempts int
	casRetries  int
}

func NewMachine(candidates repository.CandidateStore, maxAttempts, casRetries int) *Machine {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if casRetries <= 0 {
		casRetries = 5
	}
	return &Machine{candidates: candidates, maxAttempts: maxAttempts, casRetries: casRetries}
}

// Apply resolves one matching pass. Terminal and manual_review candidates are
// left untouched and their current status returned (idempotent close).
func (m *Machine) Apply(ctx context.Context, candidateID uuid.UUID, out matching.Outcome, settings models.MatchSettings, now time.Time) (models.CandidateStatus, error) {
	for i := 0; i < m.casRetries; i++ {
		c, err := m.candidates.GetByID(ctx, candidateID)
		if err != nil {
			return "", err
		}
		if c.Status != models.StatusPending {
			return c.Status, nil
		}

		newAttempts := c.Attempts + 1
		updates := map[string]interface{}{
			"attempts":         newAttempts,
			"last_attempt_at":  now,
			"confidence_score": out.Score,
			"rationale":        rationaleJSON(out.Rationale),
		}

		target := models.StatusPending
		reason := ""
		switch {
		case out.Ambiguous:
			target = models.StatusManualReview
			reason = ReasonAmbiguousOwner
		case out.Owner != nil && settings.AutoConfirm && out.Score >= settings.AutoApproveConfidence:
			target = models.StatusLinked
			reason = ReasonAutoApproved
		case out.Owner != nil && out.Score >= settings.MinConfidence:
			target = models.StatusManualReview
			reason = ReasonNeedsReview
		case newAttempts >= m.maxAttempts:
			target = models.StatusIgnored
			reason = ReasonAttemptsExhausted
		case now.After(c.ExpiresAt):
			target = models.StatusIgnored
			reason = ReasonExpired
		}

		commit := repository.TransitionCommit{
			CandidateID:  c.ID,
			PrevStatus:   c.Status,
			PrevAttempts: c.Attempts,
			Updates:      updates,
		}

		switch target {
		case models.StatusPending:
			// Eligible for a later pass; nothing else to write.
		case models.StatusLinked:
			walletTx := newWalletTransaction(c, *out.Owner, now)
			updates["status"] = models.StatusLinked
			updates["linked_account_id"] = &out.Owner.AccountID
			updates["linked_wallet_id"] = &out.Owner.WalletID
			updates["linked_transaction_id"] = &walletTx.ID
			updates["resolved_at"] = now
			updates["resolution_reason"] = reason
			commit.WalletTx = walletTx
			commit.Audit = newAudit(c, target, out.Score, actorEngine, reason, now)
			commit.Notification = newNotification(c.ID, target, &out.Owner.AccountID, &out.Owner.WalletID, &walletTx.ID, reason, now)
		case models.StatusManualReview:
			updates["status"] = models.StatusManualReview
			updates["resolution_reason"] = reason
			if out.Owner != nil {
				// Proposed resolution for reviewer convenience; no
				// transaction is materialized until approval.
				updates["linked_account_id"] = &out.Owner.AccountID
				updates["linked_wallet_id"] = &out.Owner.WalletID
				commit.Notification = newNotification(c.ID, target, &out.Owner.AccountID, &out.Owner.WalletID, nil, reason, now)
			} else {
				commit.Notification = newNotification(c.ID, target, nil, nil, nil, reason, now)
			}
			commit.Audit = newAudit(c, target, out.Score, actorEngine, reason, now)
		case models.StatusIgnored:
			updates["status"] = models.StatusIgnored
			updates["resolved_at"] = now
			updates["resolution_reason"] = reason
			commit.Audit = newAudit(c, target, out.Score, actorEngine, reason, now)
			commit.Notification = newNotification(c.ID, target, nil, nil, nil, reason, now)
		}

		err = m.candidates.CommitTransition(ctx, commit)
		if errors.Is(err, repository.ErrStaleRecord) {
			continue // lost the CAS, retry from a fresh read
		}
		if err != nil {
			return "", err
		}
		return target, nil
	}
	return "", fmt.Errorf("resolve candidate %s: %w after %d retries", candidateID, repository.ErrStaleRecord, m.casRetries)
}

// Expire force-resolves a stale pending candidate to ignored. Returns the
// final status and whether this call performed the transition. Anything a
// concurrent resolve already moved out of pending is a safe no-op.
func (m *Machine) Expire(ctx context.Context, candidateID uuid.UUID, now time.Time) (models.CandidateStatus, bool, error) {
	for i := 0; i < m.casRetries; i++ {
		c, err := m.candidates.GetByID(ctx, candidateID)
		if err != nil {
			return "", false, err
		}
		if c.Status != models.StatusPending {
			return c.Status, false, nil
		}
		if c.ExpiresAt.After(now) {
			return c.Status, false, nil
		}

		commit := repository.TransitionCommit{
			CandidateID:  c.ID,
			PrevStatus:   c.Status,
			PrevAttempts: c.Attempts,
			Updates: map[string]interface{}{
				"status":            models.StatusIgnored,
				"resolved_at":       now,
				"resolution_reason": ReasonExpired,
				"rationale":         rationaleJSON([]string{ReasonExpired}),
			},
			Audit:        newAudit(c, models.StatusIgnored, c.ConfidenceScore, actorSweeper, ReasonExpired, now),
			Notification: newNotification(c.ID, models.StatusIgnored, nil, nil, nil, ReasonExpired, now),
		}

		err = m.candidates.CommitTransition(ctx, commit)
		if errors.Is(err, repository.ErrStaleRecord) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		return models.StatusIgnored, true, nil
	}
	return "", false, fmt.Errorf("expire candidate %s: %w after %d retries", candidateID, repository.ErrStaleRecord, m.casRetries)
}

// Review applies a human decision to a manual_review candidate. Terminal
// candidates return their existing status unchanged; pending candidates are
// not reviewable.
func (m *Machine) Review(ctx context.Context, candidateID uuid.UUID, approve bool, reviewer string, now time.Time) (models.CandidateStatus, error) {
	for i := 0; i < m.casRetries; i++ {
		c, err := m.candidates.GetByID(ctx, candidateID)
		if err != nil {
			return "", err
		}
		switch c.Status {
		case models.StatusLinked, models.StatusIgnored:
			return c.Status, nil
		case models.StatusPending:
			return c.Status, ErrNotReviewable
		}

		commit := repository.TransitionCommit{
			CandidateID:  c.ID,
			PrevStatus:   c.Status,
			PrevAttempts: c.Attempts,
		}

		var target models.CandidateStatus
		if approve {
			if c.LinkedAccountID == nil || c.LinkedWalletID == nil {
				return c.Status, ErrNoProposedResolution
			}
			target = models.StatusLinked
			owner := repository.AccountRef{AccountID: *c.LinkedAccountID, WalletID: *c.LinkedWalletID}
			walletTx := newWalletTransaction(c, owner, now)
			commit.Updates = map[string]interface{}{
				"status":                models.StatusLinked,
				"linked_transaction_id": &walletTx.ID,
				"resolved_at":           now,
				"resolution_reason":     ReasonApprovedByReview,
			}
			commit.WalletTx = walletTx
			commit.Notification = newNotification(c.ID, target, c.LinkedAccountID, c.LinkedWalletID, &walletTx.ID, ReasonApprovedByReview, now)
			commit.Audit = newAudit(c, target, c.ConfidenceScore, reviewer, ReasonApprovedByReview, now)
		} else {
			target = models.StatusIgnored
			commit.Updates = map[string]interface{}{
				"status": models.StatusIgnored,
				// Drop the proposal; rejected candidates carry no resolution.
				"linked_account_id": (*uuid.UUID)(nil),
				"linked_wallet_id":  (*uuid.UUID)(nil),
				"resolved_at":       now,
				"resolution_reason": ReasonRejectedByReview,
			}
			commit.Notification = newNotification(c.ID, target, nil, nil, nil, ReasonRejectedByReview, now)
			commit.Audit = newAudit(c, target, c.ConfidenceScore, reviewer, ReasonRejectedByReview, now)
		}

		err = m.candidates.CommitTransition(ctx, commit)
		if errors.Is(err, repository.ErrStaleRecord) {
			continue
		}
		if err != nil {
			return "", err
		}
		return target, nil
	}
	return "", fmt.Errorf("review candidate %s: %w after %d retries", candidateID, repository.ErrStaleRecord, m.casRetries)
}

func newWalletTransaction(c *models.TransferCandidate, owner repository.AccountRef, now time.Time) *models.WalletTransaction {
	return &models.WalletTransaction{
		ID:              uuid.New(),
		AccountID:       owner.AccountID,
		WalletID:        owner.WalletID,
		Direction:       c.Direction,
		Amount:          c.Amount,
		AssetID:         c.AssetID,
		SourceSignature: c.Signature,
		CreatedAt:       now,
	}
}

func newAudit(c *models.TransferCandidate, to models.CandidateStatus, score float64, actor, reason string, now time.Time) *models.ResolutionAuditLog {
	return &models.ResolutionAuditLog{
		ID:          uuid.New(),
		CandidateID: c.ID,
		FromStatus:  c.Status,
		ToStatus:    to,
		Score:       score,
		PerformedBy: actor,
		Reason:      reason,
		CreatedAt:   now,
	}
}

// notificationPayload is the body handed to the delivery transport.
type notificationPayload struct {
	CandidateID uuid.UUID              `json:"candidate_id"`
	Status      models.CandidateStatus `json:"status"`
	Resolution  struct {
		LinkedAccountID     *uuid.UUID `json:"linked_account_id,omitempty"`
		LinkedWalletID      *uuid.UUID `json:"linked_wallet_id,omitempty"`
		LinkedTransactionID *uuid.UUID `json:"linked_transaction_id,omitempty"`
		Reason              string     `json:"reason"`
	} `json:"resolution"`
}

func newNotification(candidateID uuid.UUID, status models.CandidateStatus, accountID, walletID, txID *uuid.UUID, reason string, now time.Time) *models.NotificationOutbox {
	p := notificationPayload{CandidateID: candidateID, Status: status}
	p.Resolution.LinkedAccountID = accountID
	p.Resolution.LinkedWalletID = walletID
	p.Resolution.LinkedTransactionID = txID
	p.Resolution.Reason = reason

	body, _ := json.Marshal(p)
	return &models.NotificationOutbox{
		ID:          uuid.New(),
		CandidateID: candidateID,
		Status:      status,
		Payload:     datatypes.JSON(body),
		CreatedAt:   now,
	}
}

func rationaleJSON(rationale []string) datatypes.JSON {
	b, _ := json.Marshal(rationale)
	return datatypes.JSON(b)
}
