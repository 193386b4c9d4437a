// Package reconciliation orchestrates matching passes: it pulls candidate
// state together with directory and settings lookups, scores it, and hands
// the outcome to the resolution state machine.
package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/observability"
	"transfer-reconciliation-backend/internal/repository"
	"transfer-reconciliation-backend/internal/services/matching"
	"transfer-reconciliation-backend/internal/services/resolution"
)

// ReasonDisabled is recorded when matching is switched off for the owner.
const ReasonDisabled = "matching_disabled"

type Service struct {
	candidates  repository.CandidateStore
	directory   repository.AccountDirectory
	settings    repository.SettingsStore
	machine     *resolution.Machine
	weights     matching.Weights
	defaults    models.MatchSettings
	metrics     *observability.Metrics
	passTimeout time.Duration
}

func NewService(
	candidates repository.CandidateStore,
	directory repository.AccountDirectory,
	settings repository.SettingsStore,
	machine *resolution.Machine,
	weights matching.Weights,
	defaults models.MatchSettings,
	metrics *observability.Metrics,
	passTimeout time.Duration,
) *Service {
	if passTimeout <= 0 {
		passTimeout = 10 * time.Second
	}
	return &Service{
		candidates:  candidates,
		directory:   directory,
		settings:    settings,
		machine:     machine,
		weights:     weights,
		defaults:    defaults,
		metrics:     metrics,
		passTimeout: passTimeout,
	}
}

// Start launches the matching workers consuming candidate IDs from the
// ingestion queue. Returns after all workers have drained, which happens when
// the queue closes or ctx is cancelled.
func (s *Service) Start(ctx context.Context, queue <-chan uuid.UUID, workers int) {
	if workers <= 0 {
		workers = 4
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-queue:
					if !ok {
						return
					}
					if _, err := s.RunPass(ctx, id); err != nil {
						log.Printf("reconciliation: pass for %s failed: %v", id, err)
					}
				}
			}
		}()
	}
	wg.Wait()
}

// RunPass executes one matching pass for the candidate. Already-resolved and
// in-review candidates are returned untouched.
func (s *Service) RunPass(ctx context.Context, candidateID uuid.UUID) (models.CandidateStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.passTimeout)
	defer cancel()

	started := time.Now()
	defer func() {
		s.metrics.PassDuration.Observe(time.Since(started).Seconds())
	}()

	c, err := s.candidates.GetByID(ctx, candidateID)
	if err != nil {
		return "", fmt.Errorf("load candidate: %w", err)
	}
	if c.Status != models.StatusPending {
		return c.Status, nil
	}

	var owners []repository.AccountRef
	lookup := func() error {
		var dirErr error
		owners, dirErr = s.directory.FindAccountsOwningAddress(ctx, c.CounterpartyAddress)
		return dirErr
	}
	if err := backoff.Retry(lookup, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)); err != nil {
		return "", fmt.Errorf("directory lookup: %w", err)
	}

	settings := s.settingsFor(ctx, owners)
	now := time.Now()

	var outcome matching.Outcome
	if settings.Enabled {
		outcome = matching.Score(matching.ScoreInput{
			Direction:    c.Direction,
			Amount:       c.Amount,
			AssetID:      c.AssetID,
			DiscoveredAt: c.DiscoveredAt,
			Now:          now,
			Owners:       owners,
			Settings:     settings,
			Weights:      s.weights,
		})
	} else {
		// Matching switched off: a zero-score pass, which burns an
		// attempt and eventually falls to ignored.
		outcome = matching.Outcome{Rationale: []string{ReasonDisabled}}
	}

	status, err := s.machine.Apply(ctx, c.ID, outcome, settings, now)
	if err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			s.metrics.CASConflicts.Inc()
		}
		return "", err
	}

	s.metrics.Transitions.WithLabelValues(string(status)).Inc()
	return status, nil
}

// settingsFor resolves effective match settings: wallet scope first, then
// account scope, then system defaults. Ambiguous or unowned addresses always
// score against the defaults.
func (s *Service) settingsFor(ctx context.Context, owners []repository.AccountRef) models.MatchSettings {
	if len(owners) != 1 {
		return s.defaults
	}
	owner := owners[0]
	if settings, err := s.settings.Get(ctx, owner.AccountID, &owner.WalletID); err == nil {
		return *settings
	}
	if settings, err := s.settings.Get(ctx, owner.AccountID, nil); err == nil {
		return *settings
	}
	return s.defaults
}

// GetCandidate returns one candidate for the API surface.
func (s *Service) GetCandidate(ctx context.Context, id uuid.UUID) (*models.TransferCandidate, error) {
	return s.candidates.GetByID(ctx, id)
}

// ListCandidates returns a filtered page plus the next cursor.
func (s *Service) ListCandidates(ctx context.Context, q repository.ListCandidatesQuery) ([]models.TransferCandidate, string, bool, error) {
	return s.candidates.List(ctx, q)
}
