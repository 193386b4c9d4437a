package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
)

// OutboxStore is an in-memory implementation of repository.OutboxStore.
type OutboxStore struct {
	mu   sync.Mutex
	data map[uuid.UUID]*models.NotificationOutbox
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{data: make(map[uuid.UUID]*models.NotificationOutbox)}
}

// Add seeds a row, standing in for CandidateStore.CommitTransition.
func (s *OutboxStore) Add(row models.NotificationOutbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[row.ID] = &row
}

func (s *OutboxStore) ListUndelivered(_ context.Context, limit int) ([]models.NotificationOutbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []models.NotificationOutbox
	for _, r := range s.data {
		if r.DeliveredAt == nil {
			rows = append(rows, *r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *OutboxStore) MarkDelivered(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.data[id]
	if !exists {
		return repository.ErrNotFound
	}
	row.DeliveredAt = &at
	row.LastError = ""
	return nil
}

func (s *OutboxStore) MarkFailed(_ context.Context, id uuid.UUID, deliveryErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.data[id]
	if !exists {
		return repository.ErrNotFound
	}
	row.Attempts++
	row.LastError = deliveryErr
	return nil
}

var _ repository.OutboxStore = (*OutboxStore)(nil)
