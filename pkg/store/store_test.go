package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prabuddhasl/support-intel-enricher/pkg/codec"
	"github.com/prabuddhasl/support-intel-enricher/pkg/database"
	"github.com/prabuddhasl/support-intel-enricher/pkg/idempotency"
	"github.com/prabuddhasl/support-intel-enricher/pkg/normalize"
)

func newTestClient(t *testing.T) *database.Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test", Database: "test",
		SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestWriter_CommitEnriched(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	w := New(client.DB())

	ticket := codec.TicketEvent{
		TicketID: "T-1", Subject: "Payment failed", Body: "Error 5001",
		Channel: "email", Priority: "high",
	}
	result := normalize.Result{
		Summary: "Payment issue", Category: codec.CategoryBilling, Sentiment: codec.SentimentNegative,
		Risk: 1.0, SuggestedReply: "Sorry…",
		Citations: []codec.Citation{{ChunkID: 12, Title: "Billing FAQ", HeadingPath: "Payments"}},
	}

	tx, err := w.BeginTx(ctx)
	require.NoError(t, err)
	processed, err := idempotency.WasProcessed(ctx, tx, "evt-12345678")
	require.NoError(t, err)
	require.False(t, processed)

	require.NoError(t, w.CommitEnriched(ctx, tx, ticket, "evt-12345678", result))

	var status, category string
	var risk float64
	require.NoError(t, client.DB().QueryRowContext(ctx,
		`SELECT status, category, risk FROM enriched_tickets WHERE ticket_id = $1`, "T-1",
	).Scan(&status, &category, &risk))
	assert.Equal(t, "enriched", status)
	assert.Equal(t, "billing", category)
	assert.Equal(t, 1.0, risk)

	tx2, err := w.BeginTx(ctx)
	require.NoError(t, err)
	processed, err = idempotency.WasProcessed(ctx, tx2, "evt-12345678")
	require.NoError(t, err)
	assert.True(t, processed)
	require.NoError(t, tx2.Rollback())
}

func TestWriter_MarkFailed(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	w := New(client.DB())

	_, err := client.DB().ExecContext(ctx,
		`INSERT INTO enriched_tickets (ticket_id, last_event_id, subject, body, channel, priority, customer_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		"T-2", "evt-1", "s", "b", "email", "low", "")
	require.NoError(t, err)

	w.MarkFailed(ctx, "T-2")

	var status string
	require.NoError(t, client.DB().QueryRowContext(ctx,
		`SELECT status FROM enriched_tickets WHERE ticket_id = $1`, "T-2").Scan(&status))
	assert.Equal(t, "failed", status)
}
