package notification

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"transfer-reconciliation-backend/internal/models"
	"transfer-reconciliation-backend/internal/observability"
	"transfer-reconciliation-backend/internal/repository/memory"
)

type fakeTransport struct {
	delivered []uuid.UUID
	failFor   map[uuid.UUID]error
}

func (t *fakeTransport) Deliver(_ context.Context, n models.NotificationOutbox) error {
	if err, ok := t.failFor[n.ID]; ok {
		return err
	}
	t.delivered = append(t.delivered, n.ID)
	return nil
}

func outboxRow(status models.CandidateStatus) models.NotificationOutbox {
	return models.NotificationOutbox{
		ID:          uuid.New(),
		CandidateID: uuid.New(),
		Status:      status,
		Payload:     datatypes.JSON(`{"status":"` + string(status) + `"}`),
		CreatedAt:   time.Now(),
	}
}

func TestDispatch_DeliversAndMarks(t *testing.T) {
	outbox := memory.NewOutboxStore()
	a := outboxRow(models.StatusLinked)
	b := outboxRow(models.StatusIgnored)
	outbox.Add(a)
	outbox.Add(b)

	transport := &fakeTransport{}
	d := NewDispatcher(outbox, transport, 100, observability.NewMetrics(prometheus.NewRegistry()))

	delivered, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, transport.delivered)

	remaining, err := outbox.ListUndelivered(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDispatch_FailureKeepsRowWithAttempt(t *testing.T) {
	outbox := memory.NewOutboxStore()
	good := outboxRow(models.StatusLinked)
	bad := outboxRow(models.StatusLinked)
	outbox.Add(good)
	outbox.Add(bad)

	transport := &fakeTransport{failFor: map[uuid.UUID]error{bad.ID: errors.New("endpoint down")}}
	d := NewDispatcher(outbox, transport, 100, observability.NewMetrics(prometheus.NewRegistry()))

	delivered, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	remaining, err := outbox.ListUndelivered(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, bad.ID, remaining[0].ID)
	assert.Equal(t, 1, remaining[0].Attempts)
	assert.Equal(t, "endpoint down", remaining[0].LastError)
}

func TestDispatch_RowIsDeliveredOnce(t *testing.T) {
	outbox := memory.NewOutboxStore()
	outbox.Add(outboxRow(models.StatusLinked))

	transport := &fakeTransport{}
	d := NewDispatcher(outbox, transport, 100, observability.NewMetrics(prometheus.NewRegistry()))

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, transport.delivered, 1)
}

func TestDispatch_BoundedBatch(t *testing.T) {
	outbox := memory.NewOutboxStore()
	for i := 0; i < 5; i++ {
		outbox.Add(outboxRow(models.StatusLinked))
	}

	transport := &fakeTransport{}
	d := NewDispatcher(outbox, transport, 2, observability.NewMetrics(prometheus.NewRegistry()))

	delivered, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	delivered, err = d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
}

func TestWebhookTransport_PostsPayload(t *testing.T) {
	var gotBody string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewWebhookTransport(srv.URL, 5*time.Second)
	row := outboxRow(models.StatusLinked)
	require.NoError(t, transport.Deliver(context.Background(), row))
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, string(row.Payload), gotBody)
}

func TestWebhookTransport_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	transport := NewWebhookTransport(srv.URL, 5*time.Second)
	err := transport.Deliver(context.Background(), outboxRow(models.StatusLinked))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
