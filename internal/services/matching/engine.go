// Package matching computes confidence scores for transfer candidates.
// Scoring is a pure function over explicit weighted signals, so a candidate
// can be re-scored any number of times with identical results.
package matching

import (
	"time"

	"github.com/shopspring/decimal"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/repository"
)

// Rationale strings surfaced to manual reviewers.
const (
	ReasonOwnershipMatch    = "ownership_match"
	ReasonAmbiguousOwner    = "ambiguous_ownership"
	ReasonNoOwnershipMatch  = "no_ownership_match"
	ReasonAmountPlausible   = "amount_plausible"
	ReasonDustAmount        = "dust_amount"
	ReasonFresh             = "fresh"
	ReasonStale             = "stale"
	ReasonDirectionAssetOK  = "direction_asset_ok"
	ReasonDirectionMismatch = "direction_asset_mismatch"
)

// Weights are the tunable signal weights and caps. Values come from config,
// not constants, so product can adjust them without a code change.
type Weights struct {
	Ownership   float64
	Amount      float64
	Freshness   float64
	Consistency float64

	// Caps. Ambiguous ownership and dust amounts limit the maximum
	// achievable score no matter which other signals fire.
	AmbiguousCap float64
	DustCap      float64

	DustThreshold decimal.Decimal
}

func DefaultWeights() Weights {
	return Weights{
		Ownership:     0.5,
		Amount:        0.2,
		Freshness:     0.2,
		Consistency:   0.1,
		AmbiguousCap:  0.4,
		DustCap:       0.3,
		DustThreshold: decimal.RequireFromString("0.00001"),
	}
}

// ScoreInput carries one candidate's signals plus its resolved settings.
type ScoreInput struct {
	Direction    models.TransferDirection
	Amount       decimal.Decimal
	AssetID      *string
	DiscoveredAt time.Time
	Now          time.Time
	Owners       []repository.AccountRef
	Settings     models.MatchSettings
	Weights      Weights
}

// Outcome is the scoring result handed to the resolution state machine.
type Outcome struct {
	Score     float64
	Rationale []string
	Ambiguous bool
	// Owner is set only when exactly one account claims the address.
	Owner *repository.AccountRef
}

// Score accumulates the weighted signals in order and applies the caps.
// No side effects; safe to call under concurrent matching passes.
func Score(in ScoreInput) Outcome {
	w := in.Weights
	out := Outcome{}

	// Ownership signal.
	switch len(in.Owners) {
	case 0:
		out.Rationale = append(out.Rationale, ReasonNoOwnershipMatch)
		return out
	case 1:
		owner := in.Owners[0]
		out.Owner = &owner
		out.Score += w.Ownership
		out.Rationale = append(out.Rationale, ReasonOwnershipMatch)
	default:
		// Multiple accounts claim the same address. Never auto-approved.
		out.Ambiguous = true
		out.Rationale = append(out.Rationale, ReasonAmbiguousOwner)
	}

	// Amount plausibility. Dust caps the total later regardless of the
	// other signals (anti-spam rule).
	dust := !in.Amount.GreaterThan(w.DustThreshold)
	if dust {
		out.Rationale = append(out.Rationale, ReasonDustAmount)
	} else {
		out.Score += w.Amount
		out.Rationale = append(out.Rationale, ReasonAmountPlausible)
	}

	// Freshness. Always true on the first pass; matters when the sweeper
	// or a correlated event triggers a re-score later.
	window := time.Duration(in.Settings.TimeWindowHours) * time.Hour
	if in.Now.Sub(in.DiscoveredAt) <= window {
		out.Score += w.Freshness
		out.Rationale = append(out.Rationale, ReasonFresh)
	} else {
		out.Rationale = append(out.Rationale, ReasonStale)
	}

	// Direction/asset consistency, only meaningful with a single owner.
	if out.Owner != nil {
		if walletAccepts(*out.Owner, in.Direction, in.AssetID) {
			out.Score += w.Consistency
			out.Rationale = append(out.Rationale, ReasonDirectionAssetOK)
		} else {
			out.Rationale = append(out.Rationale, ReasonDirectionMismatch)
		}
	}

	if out.Ambiguous && out.Score > w.AmbiguousCap {
		out.Score = w.AmbiguousCap
	}
	if dust && out.Score > w.DustCap {
		out.Score = w.DustCap
	}
	out.Score = clamp(out.Score)
	return out
}

func walletAccepts(ref repository.AccountRef, dir models.TransferDirection, assetID *string) bool {
	switch dir {
	case models.DirectionIncoming:
		if !ref.AcceptIncoming {
			return false
		}
	case models.DirectionOutgoing:
		if !ref.AcceptOutgoing {
			return false
		}
	default:
		return false
	}
	return sameAsset(ref.AssetID, assetID)
}

func sameAsset(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
