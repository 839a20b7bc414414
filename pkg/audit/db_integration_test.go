//go:build integration

package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dive-federation/pdp/pkg/attributes"
)

// setupPostgres starts a disposable PostgreSQL container for the audit sink.
func setupPostgres(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("audit_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	cleanup := func() {
		db.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
	return db, cleanup
}

func integrationDecision(allow bool) (attributes.Subject, attributes.Resource, attributes.Decision) {
	subject := attributes.Subject{
		UniqueID:             "jdoe@army.mil",
		Clearance:            attributes.ClearanceSecret,
		CountryOfAffiliation: "USA",
		Authenticated:        true,
		SourceIdP:            "usa",
	}
	resource := attributes.Resource{
		ResourceID:     "doc-123",
		Classification: attributes.ClearanceSecret,
	}
	decision := attributes.Decision{
		DecisionID:    "dec-1",
		Allow:         allow,
		BundleVersion: "2026.08.1",
		EvaluatedAt:   time.Now().UTC(),
	}
	if !allow {
		decision.Reasons = []string{"insufficient clearance"}
	}
	return subject, resource, decision
}

func TestDBLoggerRoundTripPostgres(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	logger, err := NewDBLogger(db, "postgres")
	require.NoError(t, err)

	ctx := context.Background()
	subject, resource, decision := integrationDecision(true)
	event := NewDecisionEvent(subject, resource, decision, "req-1", 42*time.Millisecond)
	require.NoError(t, logger.Log(ctx, event))

	store := NewDBStore(logger)

	got, err := store.Get(ctx, event.RecordID)
	require.NoError(t, err)
	assert.Equal(t, event.RecordID, got.RecordID)
	assert.Equal(t, "jdoe@army.mil", got.UniqueID)
	assert.Equal(t, EventStatusAllow, got.Status)
	assert.Equal(t, "2026.08.1", got.BundleVersion)
	assert.Equal(t, int64(42), got.LatencyMs)
}

func TestDBStoreSearchAndStatsPostgres(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	logger, err := NewDBLogger(db, "postgres")
	require.NoError(t, err)
	store := NewDBStore(logger)

	ctx := context.Background()
	subject, resource, allowDecision := integrationDecision(true)
	_, _, denyDecision := integrationDecision(false)
	require.NoError(t, logger.Log(ctx, NewDecisionEvent(subject, resource, allowDecision, "req-1", 0)))
	require.NoError(t, logger.Log(ctx, NewDecisionEvent(subject, resource, denyDecision, "req-2", 0)))
	require.NoError(t, logger.Log(ctx, NewBundleEvent(EventTypeBundleActivate, "2026.08.1", "operator activation")))

	denied := EventStatusDeny
	events, err := store.Search(ctx, SearchFilter{Status: &denied})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"insufficient clearance"}, events[0].Reasons)

	stats, err := store.GetStats(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.Equal(t, int64(1), stats.Denials)
	assert.Equal(t, int64(2), stats.EventsByType[EventTypeDecision])
}

func TestDBStoreCleanupPostgres(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	logger, err := NewDBLogger(db, "postgres")
	require.NoError(t, err)
	store := NewDBStore(logger)

	ctx := context.Background()
	subject, resource, decision := integrationDecision(true)

	old := NewDecisionEvent(subject, resource, decision, "req-old", 0)
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -400)
	require.NoError(t, logger.Log(ctx, old))

	fresh := NewDecisionEvent(subject, resource, decision, "req-fresh", 0)
	require.NoError(t, logger.Log(ctx, fresh))

	deleted, err := store.Cleanup(ctx, RetentionPolicy{RetentionDays: 365})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.Get(ctx, old.RecordID)
	assert.Error(t, err)
	_, err = store.Get(ctx, fresh.RecordID)
	assert.NoError(t, err)
}
