package matching

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
)

func testSettings() models.MatchSettings {
	return models.MatchSettings{
		Enabled:               true,
		MinConfidence:         0.6,
		AutoApproveConfidence: 0.8,
		AutoConfirm:           true,
		TimeWindowHours:       24,
	}
}

func usdc() *string {
	s := "USDC"
	return &s
}

func singleOwner(acceptIncoming bool, assetID *string) []repository.AccountRef {
	return []repository.AccountRef{{
		AccountID:      uuid.New(),
		WalletID:       uuid.New(),
		AssetID:        assetID,
		AcceptIncoming: acceptIncoming,
		AcceptOutgoing: true,
	}}
}

func baseInput(owners []repository.AccountRef) ScoreInput {
	now := time.Now()
	return ScoreInput{
		Direction:    models.DirectionIncoming,
		Amount:       decimal.NewFromFloat(5.0),
		AssetID:      usdc(),
		DiscoveredAt: now.Add(-time.Minute),
		Now:          now,
		Owners:       owners,
		Settings:     testSettings(),
		Weights:      DefaultWeights(),
	}
}

// Scenario A: single owner, plausible amount, fresh candidate. The owning
// wallet holds a different asset, so consistency contributes nothing:
// 0.5 + 0.2 + 0.2 = 0.9.
func TestScore_SingleOwnerHighConfidence(t *testing.T) {
	in := baseInput(singleOwner(true, nil))

	out := Score(in)

	assert.InDelta(t, 0.9, out.Score, 1e-9)
	assert.False(t, out.Ambiguous)
	require.NotNil(t, out.Owner)
	assert.Contains(t, out.Rationale, ReasonOwnershipMatch)
	assert.Contains(t, out.Rationale, ReasonAmountPlausible)
	assert.Contains(t, out.Rationale, ReasonFresh)
	assert.Contains(t, out.Rationale, ReasonDirectionMismatch)
}

func TestScore_ConsistencyBonusWithMatchingWallet(t *testing.T) {
	in := baseInput(singleOwner(true, usdc()))

	out := Score(in)

	assert.InDelta(t, 1.0, out.Score, 1e-9)
	assert.Contains(t, out.Rationale, ReasonDirectionAssetOK)
}

// Scenario B: two accounts claim the address. No matter what else fires, the
// score is capped and nothing is auto-approved.
func TestScore_AmbiguousOwnershipCapped(t *testing.T) {
	owners := append(singleOwner(true, usdc()), singleOwner(true, usdc())...)
	in := baseInput(owners)

	out := Score(in)

	assert.True(t, out.Ambiguous)
	assert.Nil(t, out.Owner)
	assert.LessOrEqual(t, out.Score, 0.4)
	assert.Contains(t, out.Rationale, ReasonAmbiguousOwner)
}

// Scenario C: dust amount caps the score below any review threshold.
func TestScore_DustAmountCapped(t *testing.T) {
	in := baseInput(singleOwner(true, usdc()))
	in.Amount = decimal.RequireFromString("0.0000001")

	out := Score(in)

	assert.LessOrEqual(t, out.Score, 0.3)
	assert.Contains(t, out.Rationale, ReasonDustAmount)
}

func TestScore_NoOwners(t *testing.T) {
	in := baseInput(nil)

	out := Score(in)

	assert.Zero(t, out.Score)
	assert.Equal(t, []string{ReasonNoOwnershipMatch}, out.Rationale)
	assert.Nil(t, out.Owner)
}

func TestScore_StaleCandidateLosesFreshness(t *testing.T) {
	in := baseInput(singleOwner(true, usdc()))
	in.DiscoveredAt = in.Now.Add(-48 * time.Hour)

	out := Score(in)

	assert.InDelta(t, 0.8, out.Score, 1e-9)
	assert.Contains(t, out.Rationale, ReasonStale)
}

func TestScore_DirectionNotAccepted(t *testing.T) {
	in := baseInput(singleOwner(false, usdc()))

	out := Score(in)

	assert.InDelta(t, 0.9, out.Score, 1e-9)
	assert.Contains(t, out.Rationale, ReasonDirectionMismatch)
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ScoreInput)
	}{
		{"no owners dust", func(in *ScoreInput) {
			in.Owners = nil
			in.Amount = decimal.Zero
		}},
		{"ambiguous stale dust", func(in *ScoreInput) {
			in.Owners = append(singleOwner(true, usdc()), singleOwner(true, usdc())...)
			in.DiscoveredAt = in.Now.Add(-100 * time.Hour)
			in.Amount = decimal.RequireFromString("0.00000001")
		}},
		{"everything fires", func(in *ScoreInput) {}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput(singleOwner(true, usdc()))
			tc.mutate(&in)
			out := Score(in)
			assert.GreaterOrEqual(t, out.Score, 0.0)
			assert.LessOrEqual(t, out.Score, 1.0)
		})
	}
}

// Scoring is deterministic: same input, same output.
func TestScore_Idempotent(t *testing.T) {
	in := baseInput(singleOwner(true, usdc()))

	first := Score(in)
	second := Score(in)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Rationale, second.Rationale)
}
