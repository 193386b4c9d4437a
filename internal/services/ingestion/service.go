// Package ingestion accepts raw transfer events from the upstream ledger
// feed. Delivery is at-least-once, so everything here is keyed and
// deduplicated by the transfer signature.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/observability"
	"transfer-reconciliation-backend/internal/repository"
)

// ErrInvalidEvent marks malformed ingestion input, rejected at the boundary
// and never stored.
var ErrInvalidEvent = errors.New("invalid transfer event")

// TransferEvent is one observed value transfer delivered by the stream source.
type TransferEvent struct {
	Signature           string                   `json:"signature"`
	Direction           models.TransferDirection `json:"direction"`
	CounterpartyAddress string                   `json:"counterparty_address"`
	Amount              decimal.Decimal          `json:"amount"`
	AssetID             *string                  `json:"asset_id"`
	ObservedAt          time.Time                `json:"observed_at"`
}

// RetryPolicy bounds the exponential backoff applied to store and directory
// I/O. Transient failures are retried here; exhaustion propagates to the
// caller, which owns retry scheduling for the event itself.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      4,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

func (p RetryPolicy) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

type Service struct {
	candidates repository.CandidateStore
	directory  repository.AccountDirectory
	settings   repository.SettingsStore
	defaults   models.MatchSettings
	retry      RetryPolicy
	queue      chan<- uuid.UUID
	metrics    *observability.Metrics
}

func NewService(
	candidates repository.CandidateStore,
	directory repository.AccountDirectory,
	settings repository.SettingsStore,
	defaults models.MatchSettings,
	retry RetryPolicy,
	queue chan<- uuid.UUID,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		candidates: candidates,
		directory:  directory,
		settings:   settings,
		defaults:   defaults,
		retry:      retry,
		queue:      queue,
		metrics:    metrics,
	}
}

// Ingest records a transfer event as a pending candidate. Re-sighting a known
// signature returns the existing candidate with created=false. On creation the
// candidate is queued for an immediate first matching pass without blocking
// the caller.
func (s *Service) Ingest(ctx context.Context, event TransferEvent) (uuid.UUID, bool, error) {
	if err := validate(event); err != nil {
		s.metrics.InvalidEvents.Inc()
		return uuid.Nil, false, err
	}

	// Fast path for re-sightings.
	existing, err := s.candidates.GetBySignature(ctx, event.Signature)
	if err == nil {
		s.metrics.DedupHits.Inc()
		return existing.ID, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, false, err
	}

	window := s.timeWindowFor(ctx, event)
	now := time.Now()
	candidate := &models.TransferCandidate{
		ID:                  uuid.New(),
		Signature:           event.Signature,
		Direction:           event.Direction,
		CounterpartyAddress: event.CounterpartyAddress,
		Amount:              event.Amount,
		AssetID:             event.AssetID,
		Status:              models.StatusPending,
		DiscoveredAt:        event.ObservedAt,
		ExpiresAt:           event.ObservedAt.Add(window),
		CreatedAt:           now,
	}

	var created bool
	insert := func() error {
		var insErr error
		created, insErr = s.candidates.Insert(ctx, candidate)
		return insErr
	}
	if err := backoff.Retry(insert, s.retry.backoff(ctx)); err != nil {
		return uuid.Nil, false, fmt.Errorf("insert candidate: %w", err)
	}

	if !created {
		// Lost the insert race to a concurrent sighting.
		existing, err := s.candidates.GetBySignature(ctx, event.Signature)
		if err != nil {
			return uuid.Nil, false, err
		}
		s.metrics.DedupHits.Inc()
		return existing.ID, false, nil
	}

	s.metrics.EventsIngested.Inc()
	s.enqueue(candidate.ID)
	return candidate.ID, true, nil
}

func validate(event TransferEvent) error {
	if event.Signature == "" {
		return fmt.Errorf("%w: empty signature", ErrInvalidEvent)
	}
	if event.CounterpartyAddress == "" {
		return fmt.Errorf("%w: empty counterparty address", ErrInvalidEvent)
	}
	if !event.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEvent)
	}
	switch event.Direction {
	case models.DirectionIncoming, models.DirectionOutgoing:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidEvent, event.Direction)
	}
	if event.ObservedAt.IsZero() {
		return fmt.Errorf("%w: missing observed_at", ErrInvalidEvent)
	}
	return nil
}

// timeWindowFor resolves the expiry window at creation time. The owner is not
// known yet unless exactly one wallet claims the address; everything else
// falls back to the system default window. Directory hiccups also fall back:
// a worse expiry window beats dropping the event.
func (s *Service) timeWindowFor(ctx context.Context, event TransferEvent) time.Duration {
	hours := s.defaults.TimeWindowHours

	var owners []repository.AccountRef
	lookup := func() error {
		var err error
		owners, err = s.directory.FindAccountsOwningAddress(ctx, event.CounterpartyAddress)
		return err
	}
	if err := backoff.Retry(lookup, s.retry.backoff(ctx)); err != nil {
		log.Printf("ingestion: directory lookup failed for %s, using default window: %v", event.CounterpartyAddress, err)
		return time.Duration(hours) * time.Hour
	}

	if len(owners) == 1 {
		if settings := s.settingsFor(ctx, owners[0]); settings != nil && settings.TimeWindowHours > 0 {
			hours = settings.TimeWindowHours
		}
	}
	return time.Duration(hours) * time.Hour
}

func (s *Service) settingsFor(ctx context.Context, owner repository.AccountRef) *models.MatchSettings {
	if settings, err := s.settings.Get(ctx, owner.AccountID, &owner.WalletID); err == nil {
		return settings
	}
	if settings, err := s.settings.Get(ctx, owner.AccountID, nil); err == nil {
		return settings
	}
	return nil
}

// enqueue hands the candidate to the matching workers. A full queue is not an
// error: the candidate is durably stored and a later pass (re-sighting or
// sweeper window) picks it up.
func (s *Service) enqueue(id uuid.UUID) {
	select {
	case s.queue <- id:
	default:
		s.metrics.QueueDrops.Inc()
		log.Printf("ingestion: match queue full, candidate %s deferred", id)
	}
}
