package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"transfer-reconciliation-backend/internal/models"
)

type CandidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Expose DB if needed
func (r *CandidateRepository) DB() *gorm.DB {
	return r.db
}

// Insert adds a new candidate, ignoring duplicates on signature so concurrent
// first-sightings of the same transfer converge on one row.
func (r *CandidateRepository) Insert(ctx context.Context, c *models.TransferCandidate) (bool, error) {
	if c == nil || c.Signature == "" {
		return false, ErrInvalidInput
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "signature"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CandidateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TransferCandidate, error) {
	var c models.TransferCandidate
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CandidateRepository) GetBySignature(ctx context.Context, signature string) (*models.TransferCandidate, error) {
	var c models.TransferCandidate
	err := r.db.WithContext(ctx).First(&c, "signature = ?", signature).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns a page of candidates with keyset pagination on id.
func (r *CandidateRepository) List(ctx context.Context, q ListCandidatesQuery) ([]models.TransferCandidate, string, bool, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var candidates []models.TransferCandidate
	query := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit + 1)

	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Cursor != "" {
		query = query.Where("id > ?", q.Cursor)
	}

	if err := query.Find(&candidates).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(candidates) > limit {
		hasMore = true
		nextCursor = candidates[limit-1].ID.String()
		candidates = candidates[:limit]
	}

	return candidates, nextCursor, hasMore, nil
}

// ListExpired selects stale pending candidates for the sweeper, oldest first.
func (r *CandidateRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.TransferCandidate, error) {
	var candidates []models.TransferCandidate
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", models.StatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&candidates).Error
	return candidates, err
}

// CommitTransition applies one guarded state transition in a single DB
// transaction. The candidate UPDATE is conditioned on the (status, attempts)
// pair the state machine decided from; zero rows affected means a concurrent
// writer got there first and nothing at all is written.
func (r *CandidateRepository) CommitTransition(ctx context.Context, commit TransitionCommit) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TransferCandidate{}).
			Where("id = ? AND status = ? AND attempts = ?",
				commit.CandidateID, commit.PrevStatus, commit.PrevAttempts).
			Updates(commit.Updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleRecord
		}

		if commit.WalletTx != nil {
			if err := tx.Create(commit.WalletTx).Error; err != nil {
				return err
			}
		}
		if commit.Audit != nil {
			if err := tx.Create(commit.Audit).Error; err != nil {
				return err
			}
		}
		if commit.Notification != nil {
			if err := tx.Create(commit.Notification).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

var _ CandidateStore = (*CandidateRepository)(nil)
