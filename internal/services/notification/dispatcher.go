// Package notification forwards resolution events from the durable outbox to
// the external delivery transport. Delivery is best-effort: failures are
// recorded and retried on the next dispatch run and never touch candidate
// state.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/observability"
	"transfer-reconciliation-backend/internal/repository"
)

// Transport delivers one resolution event to the outside world.
type Transport interface {
	Deliver(ctx context.Context, n models.NotificationOutbox) error
}

// WebhookTransport POSTs the outbox payload to a configured URL.
type WebhookTransport struct {
	URL    string
	Client *http.Client
}

func NewWebhookTransport(url string, timeout time.Duration) *WebhookTransport {
	return &WebhookTransport{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (t *WebhookTransport) Deliver(ctx context.Context, n models.NotificationOutbox) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(n.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// LogTransport is the fallback when no webhook is configured.
type LogTransport struct{}

func (LogTransport) Deliver(_ context.Context, n models.NotificationOutbox) error {
	log.Printf("notification: candidate %s -> %s: %s", n.CandidateID, n.Status, n.Payload)
	return nil
}

type Dispatcher struct {
	outbox    repository.OutboxStore
	transport Transport
	batchSize int
	metrics   *observability.Metrics
}

func NewDispatcher(outbox repository.OutboxStore, transport Transport, batchSize int, metrics *observability.Metrics) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{outbox: outbox, transport: transport, batchSize: batchSize, metrics: metrics}
}

// Dispatch delivers one bounded batch of undelivered outbox rows. A failed
// row keeps its place in the outbox with an incremented attempt count.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	rows, err := d.outbox.ListUndelivered(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		if err := d.transport.Deliver(ctx, row); err != nil {
			d.metrics.NotificationFailures.Inc()
			if markErr := d.outbox.MarkFailed(ctx, row.ID, err.Error()); markErr != nil {
				log.Printf("notification: mark failed for %s: %v", row.ID, markErr)
			}
			continue
		}

		if err := d.outbox.MarkDelivered(ctx, row.ID, time.Now()); err != nil {
			// The transport may redeliver next run; acceptable, delivery
			// is at-least-once on this edge.
			log.Printf("notification: mark delivered for %s: %v", row.ID, err)
			continue
		}
		d.metrics.NotificationsDelivered.Inc()
		delivered++
	}
	return delivered, nil
}

// Run is the cron entrypoint.
func (d *Dispatcher) Run(ctx context.Context) {
	if _, err := d.Dispatch(ctx); err != nil {
		log.Printf("notification: dispatch run failed: %v", err)
	}
}
