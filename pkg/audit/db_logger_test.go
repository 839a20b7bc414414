package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDBLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_records").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger, err := NewDBLogger(db, DriverPostgres)
	require.NoError(t, err)
	return logger, mock
}

func TestNewDBLoggerRequiresDB(t *testing.T) {
	_, err := NewDBLogger(nil, DriverPostgres)
	assert.Error(t, err)
}

func TestNewDBLoggerRejectsUnknownDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewDBLogger(db, "oracle")
	assert.Error(t, err)
}

func TestDBLoggerLog(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	mock.ExpectQuery("INSERT INTO audit_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	subject, resource, decision := sampleDecision()
	event := NewDecisionEvent(subject, resource, decision, "req-1", 5*time.Millisecond)

	require.NoError(t, logger.Log(context.Background(), event))
	assert.Equal(t, int64(42), event.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerLogInsertFailure(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	mock.ExpectQuery("INSERT INTO audit_records").
		WillReturnError(assert.AnError)

	subject, resource, decision := sampleDecision()
	err := logger.Log(context.Background(), NewDecisionEvent(subject, resource, decision, "", 0))
	assert.Error(t, err)
}

func auditRecordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "record_id", "timestamp", "event_type", "status",
		"decision_id", "request_id",
		"unique_id", "source_idp", "country", "clearance",
		"resource_id", "classification",
		"bundle_version", "cache_hit", "latency_ms",
		"reasons", "obligations", "message", "detail",
	})
}

func TestDBLoggerSearch(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	now := time.Now().UTC()
	rows := auditRecordRows().AddRow(
		int64(1), "rec-1", now, "decision", "deny",
		"d-1", "req-1",
		"jdoe@army.mil", "usa", "USA", "SECRET",
		"doc-123", "SECRET",
		"2026.08.1", false, int64(7),
		[]byte(`["insufficient clearance"]`), []byte(`null`), "", []byte(`{"checks":[]}`),
	)

	mock.ExpectQuery("SELECT(.+)FROM audit_records").
		WillReturnRows(rows)

	events, err := logger.Search(context.Background(), SearchFilter{
		UniqueID: "jdoe@army.mil",
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "rec-1", e.RecordID)
	assert.Equal(t, EventTypeDecision, e.Type)
	assert.Equal(t, EventStatusDeny, e.Status)
	assert.Equal(t, []string{"insufficient clearance"}, e.Reasons)
	assert.Equal(t, "2026.08.1", e.BundleVersion)
	assert.Equal(t, int64(7), e.LatencyMs)
	assert.NotNil(t, e.Detail)
}

func TestDBLoggerGetStats(t *testing.T) {
	logger, mock := newMockDBLogger(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_records`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(100)))
	mock.ExpectQuery("SELECT event_type, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "count"}).
			AddRow("decision", int64(90)).
			AddRow("enrichment", int64(10)))
	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("allow", int64(70)).
			AddRow("deny", int64(20)))
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT unique_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT resource_id\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(30)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audit_records(.+)deny`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(20)))

	stats, err := logger.GetStats(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(100), stats.TotalEvents)
	assert.Equal(t, int64(90), stats.EventsByType[EventTypeDecision])
	assert.Equal(t, int64(20), stats.EventsByStatus[EventStatusDeny])
	assert.Equal(t, int64(12), stats.UniqueSubjects)
	assert.Equal(t, int64(20), stats.Denials)
}

func TestDBLoggerPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_records").
		WillReturnResult(sqlmock.NewResult(0, 0))

	pg, err := NewDBLogger(db, DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "$3", pg.placeholder(3))

	lite := &DBLogger{driver: DriverSQLite}
	assert.Equal(t, "?", lite.placeholder(3))
}
