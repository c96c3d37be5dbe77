package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prabuddhasl/support-intel-enricher/pkg/database"
)

func newTestDB(t *testing.T) *database.Client {
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

func TestLedger_MarkAndCheck(t *testing.T) {
	client := newTestDB(t)
	ctx := context.Background()

	tx, err := client.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	processed, err := WasProcessed(ctx, tx, "evt-1")
	require.NoError(t, err)
	require.False(t, processed)

	require.NoError(t, MarkProcessed(ctx, tx, "evt-1"))

	processed, err = WasProcessed(ctx, tx, "evt-1")
	require.NoError(t, err)
	require.True(t, processed)

	// Re-insert is a no-op, not an error.
	require.NoError(t, MarkProcessed(ctx, tx, "evt-1"))

	require.NoError(t, tx.Commit())
}
