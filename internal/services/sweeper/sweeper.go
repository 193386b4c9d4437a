// Package sweeper force-resolves stale pending candidates. It reuses the
// resolution state machine's guarded transition, so running alongside live
// resolve calls needs no extra locking.
package sweeper

import (
	"context"
	"log"
	"time"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/observability"
	"transfer-reconciliation-backend/internal/repository"
	"transfer-reconciliation-backend/internal/services/resolution"
)

type Sweeper struct {
	candidates repository.CandidateStore
	machine    *resolution.Machine
	batchSize  int
	metrics    *observability.Metrics
}

func New(candidates repository.CandidateStore, machine *resolution.Machine, batchSize int, metrics *observability.Metrics) *Sweeper {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Sweeper{candidates: candidates, machine: machine, batchSize: batchSize, metrics: metrics}
}

// Sweep expires one bounded batch of pending candidates whose expiry has
// passed. Each transition commits independently, so a cancelled run leaves
// already-expired candidates correctly resolved. Returns the number of
// candidates this run transitioned to ignored.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.candidates.ListExpired(ctx, now, s.batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		_, transitioned, err := s.machine.Expire(ctx, c.ID, now)
		if err != nil {
			// Keep sweeping; this candidate is retried next run.
			log.Printf("sweeper: expire %s failed: %v", c.ID, err)
			continue
		}
		if transitioned {
			expired++
			s.metrics.CandidatesSwept.Inc()
			s.metrics.Transitions.WithLabelValues(string(models.StatusIgnored)).Inc()
		}
	}
	return expired, nil
}

// Run is the cron entrypoint.
func (s *Sweeper) Run(ctx context.Context) {
	n, err := s.Sweep(ctx, time.Now())
	if err != nil {
		log.Printf("sweeper: sweep aborted after %d expiries: %v", n, err)
		return
	}
	if n > 0 {
		log.Printf("sweeper: expired %d stale candidates", n)
	}
}
