package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
)

func candidate(signature string, status models.CandidateStatus) *models.TransferCandidate {
	now := time.Now()
	return &models.TransferCandidate{
		ID:                  uuid.New(),
		Signature:           signature,
		Direction:           models.DirectionIncoming,
		CounterpartyAddress: "addr",
		Amount:              decimal.NewFromInt(1),
		Status:              status,
		DiscoveredAt:        now,
		ExpiresAt:           now.Add(time.Hour),
		CreatedAt:           now,
	}
}

func TestInsert_DedupesBySignature(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	first := candidate("sig-1", models.StatusPending)
	created, err := store.Insert(ctx, first)
	if err != nil || !created {
		t.Fatalf("first insert: created=%v err=%v", created, err)
	}

	dup := candidate("sig-1", models.StatusPending)
	created, err = store.Insert(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if created {
		t.Fatal("duplicate signature must not create a second row")
	}

	got, err := store.GetBySignature(ctx, "sig-1")
	if err != nil {
		t.Fatalf("GetBySignature: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("lookup returned %s, want original %s", got.ID, first.ID)
	}
}

func TestInsert_RejectsEmptySignature(t *testing.T) {
	store := NewCandidateStore()
	_, err := store.Insert(context.Background(), candidate("", models.StatusPending))
	if !errors.Is(err, repository.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestGetByID_CopiesAreIsolated(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()
	c := candidate("sig-iso", models.StatusPending)
	if _, err := store.Insert(ctx, c); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Status = models.StatusLinked

	again, _ := store.GetByID(ctx, c.ID)
	if again.Status != models.StatusPending {
		t.Fatal("mutating a returned copy must not change stored state")
	}
}

func TestList_PaginatesWithCursor(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.Insert(ctx, candidate(uuid.NewString(), models.StatusPending)); err != nil {
			t.Fatal(err)
		}
	}

	page, cursor, hasMore, err := store.List(ctx, repository.ListCandidatesQuery{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 3 || !hasMore || cursor == "" {
		t.Fatalf("first page: len=%d hasMore=%v cursor=%q", len(page), hasMore, cursor)
	}

	rest, _, hasMore, err := store.List(ctx, repository.ListCandidatesQuery{Limit: 3, Cursor: cursor})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 || hasMore {
		t.Fatalf("second page: len=%d hasMore=%v", len(rest), hasMore)
	}

	seen := make(map[uuid.UUID]bool)
	for _, c := range append(page, rest...) {
		if seen[c.ID] {
			t.Fatalf("candidate %s returned twice across pages", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestListExpired_OnlyPendingPastDeadline(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()
	now := time.Now()

	due := candidate("sig-due", models.StatusPending)
	due.ExpiresAt = now.Add(-time.Minute)
	future := candidate("sig-future", models.StatusPending)
	linked := candidate("sig-linked", models.StatusLinked)
	linked.ExpiresAt = now.Add(-time.Minute)

	for _, c := range []*models.TransferCandidate{due, future, linked} {
		if _, err := store.Insert(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	expired, err := store.ListExpired(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].ID != due.ID {
		t.Fatalf("want only the due pending candidate, got %d rows", len(expired))
	}
}

func TestCommitTransition_GuardsOnStatusAndAttempts(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()
	c := candidate("sig-cas", models.StatusPending)
	if _, err := store.Insert(ctx, c); err != nil {
		t.Fatal(err)
	}

	ok := repository.TransitionCommit{
		CandidateID:  c.ID,
		PrevStatus:   models.StatusPending,
		PrevAttempts: 0,
		Updates: map[string]interface{}{
			"status":   models.StatusManualReview,
			"attempts": 1,
		},
	}
	if err := store.CommitTransition(ctx, ok); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// Replaying the same guard must now fail.
	if err := store.CommitTransition(ctx, ok); !errors.Is(err, repository.ErrStaleRecord) {
		t.Fatalf("want ErrStaleRecord on stale guard, got %v", err)
	}

	got, _ := store.GetByID(ctx, c.ID)
	if got.Status != models.StatusManualReview || got.Attempts != 1 {
		t.Fatalf("stored state %s/%d, want manual_review/1", got.Status, got.Attempts)
	}
}

func TestCommitTransition_UnknownCandidate(t *testing.T) {
	store := NewCandidateStore()
	err := store.CommitTransition(context.Background(), repository.TransitionCommit{
		CandidateID: uuid.New(),
		PrevStatus:  models.StatusPending,
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
