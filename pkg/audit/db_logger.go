package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Drivers the DBLogger understands. The driver selects placeholder style and
// DDL dialect; the caller imports the matching database/sql driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DBLogger implements audit logging to a SQL database
type DBLogger struct {
	db     *sql.DB
	driver string
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB, driver string) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported audit database driver %q", driver)
	}

	logger := &DBLogger{
		db:     db,
		driver: driver,
	}

	// Ensure the audit_records table exists
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_records table: %w", err)
	}

	return logger, nil
}

// placeholder returns the dialect's parameter marker for 1-based index n.
func (l *DBLogger) placeholder(n int) string {
	if l.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// ensureTable creates the audit_records table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	idColumn := "id BIGSERIAL PRIMARY KEY"
	jsonType := "JSONB"
	if l.driver == DriverSQLite {
		idColumn = "id INTEGER PRIMARY KEY AUTOINCREMENT"
		jsonType = "TEXT"
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS audit_records (
		%s,
		record_id VARCHAR(36) NOT NULL UNIQUE,
		timestamp TIMESTAMP NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		status VARCHAR(10) NOT NULL,
		decision_id VARCHAR(36),
		request_id VARCHAR(100),
		unique_id VARCHAR(255),
		source_idp VARCHAR(100),
		country VARCHAR(3),
		clearance VARCHAR(20),
		resource_id VARCHAR(255),
		classification VARCHAR(20),
		bundle_version VARCHAR(50),
		cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		reasons %s,
		obligations %s,
		message TEXT,
		detail %s
	);

	CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_records_event_type ON audit_records(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_records_unique_id ON audit_records(unique_id);
	CREATE INDEX IF NOT EXISTS idx_audit_records_resource_id ON audit_records(resource_id);
	CREATE INDEX IF NOT EXISTS idx_audit_records_decision_id ON audit_records(decision_id);
	CREATE INDEX IF NOT EXISTS idx_audit_records_status ON audit_records(status);
	CREATE INDEX IF NOT EXISTS idx_audit_records_bundle ON audit_records(bundle_version);
	`, idColumn, jsonType, jsonType, jsonType)

	_, err := l.db.Exec(query)
	return err
}

// Log inserts one record. The row is never updated afterwards.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	reasonsJSON, err := json.Marshal(event.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}
	obligationsJSON, err := json.Marshal(event.Obligations)
	if err != nil {
		return fmt.Errorf("failed to marshal obligations: %w", err)
	}
	var detailJSON []byte
	if event.Detail != nil {
		detailJSON, err = json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("failed to marshal detail: %w", err)
		}
	}

	markers := make([]string, 19)
	for i := range markers {
		markers[i] = l.placeholder(i + 1)
	}
	query := fmt.Sprintf(`
		INSERT INTO audit_records (
			record_id, timestamp, event_type, status,
			decision_id, request_id,
			unique_id, source_idp, country, clearance,
			resource_id, classification,
			bundle_version, cache_hit, latency_ms,
			reasons, obligations, message, detail
		) VALUES (%s)
	`, strings.Join(markers, ", "))

	args := []interface{}{
		event.RecordID, event.Timestamp, event.Type, event.Status,
		event.DecisionID, event.RequestID,
		event.UniqueID, event.SourceIdP, event.CountryOfAffiliation, event.Clearance,
		event.ResourceID, event.Classification,
		event.BundleVersion, event.CacheHit, event.LatencyMs,
		reasonsJSON, obligationsJSON, event.Message, detailJSON,
	}

	if l.driver == DriverPostgres {
		err = l.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&event.ID)
		if err != nil {
			return fmt.Errorf("failed to insert audit record: %w", err)
		}
		return nil
	}

	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}
	return nil
}

// allowed sort columns; anything else falls back to timestamp.
var sortColumns = map[string]bool{
	"timestamp":      true,
	"event_type":     true,
	"status":         true,
	"unique_id":      true,
	"resource_id":    true,
	"bundle_version": true,
}

// Search searches audit records based on filters
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT
			id, record_id, timestamp, event_type, status,
			decision_id, request_id,
			unique_id, source_idp, country, clearance,
			resource_id, classification,
			bundle_version, cache_hit, latency_ms,
			reasons, obligations, message, detail
		FROM audit_records
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1
	add := func(clause string, value interface{}) {
		query += fmt.Sprintf(" AND %s %s", clause, l.placeholder(argCount))
		args = append(args, value)
		argCount++
	}

	if filter.StartTime != nil {
		add("timestamp >=", *filter.StartTime)
	}
	if filter.EndTime != nil {
		add("timestamp <=", *filter.EndTime)
	}
	if filter.UniqueID != "" {
		add("unique_id =", filter.UniqueID)
	}
	if filter.SourceIdP != "" {
		add("source_idp =", filter.SourceIdP)
	}
	if filter.CountryOfAffiliation != "" {
		add("country =", filter.CountryOfAffiliation)
	}
	if filter.ResourceID != "" {
		add("resource_id =", filter.ResourceID)
	}
	if filter.DecisionID != "" {
		add("decision_id =", filter.DecisionID)
	}
	if filter.BundleVersion != "" {
		add("bundle_version =", filter.BundleVersion)
	}
	if filter.Status != nil {
		add("status =", string(*filter.Status))
	}

	if len(filter.Types) > 0 {
		markers := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			markers[i] = l.placeholder(argCount)
			args = append(args, string(t))
			argCount++
		}
		query += fmt.Sprintf(" AND event_type IN (%s)", strings.Join(markers, ", "))
	}

	// Add sorting
	sortBy := "timestamp"
	if sortColumns[filter.SortBy] {
		sortBy = filter.SortBy
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, order)

	// Add pagination
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s", l.placeholder(argCount))
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %s", l.placeholder(argCount))
		args = append(args, filter.Offset)
	}

	return scanEvents(ctx, l, query, args...)
}

// scanEvents runs a full-column select and decodes each row into an Event.
func scanEvents(ctx context.Context, l *DBLogger, query string, args ...interface{}) ([]*Event, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit records: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0)
	for rows.Next() {
		event := &Event{}
		var reasonsJSON, obligationsJSON, detailJSON []byte
		var decisionID, requestID, uniqueID, sourceIdP, country, clearance sql.NullString
		var resourceID, classification, bundleVersion, message sql.NullString

		err := rows.Scan(
			&event.ID, &event.RecordID, &event.Timestamp, &event.Type, &event.Status,
			&decisionID, &requestID,
			&uniqueID, &sourceIdP, &country, &clearance,
			&resourceID, &classification,
			&bundleVersion, &event.CacheHit, &event.LatencyMs,
			&reasonsJSON, &obligationsJSON, &message, &detailJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}

		event.DecisionID = decisionID.String
		event.RequestID = requestID.String
		event.UniqueID = uniqueID.String
		event.SourceIdP = sourceIdP.String
		event.CountryOfAffiliation = country.String
		event.Clearance = clearance.String
		event.ResourceID = resourceID.String
		event.Classification = classification.String
		event.BundleVersion = bundleVersion.String
		event.Message = message.String

		if len(reasonsJSON) > 0 {
			if err := json.Unmarshal(reasonsJSON, &event.Reasons); err != nil {
				return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
			}
		}
		if len(obligationsJSON) > 0 {
			if err := json.Unmarshal(obligationsJSON, &event.Obligations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal obligations: %w", err)
			}
		}
		if len(detailJSON) > 0 {
			if err := json.Unmarshal(detailJSON, &event.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal detail: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}

	return events, nil
}

// GetStats retrieves audit record statistics
func (l *DBLogger) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	stats := &Stats{
		EventsByType:   make(map[EventType]int64),
		EventsByStatus: make(map[EventStatus]int64),
	}

	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argCount := 1

	if startTime != nil {
		whereClause += fmt.Sprintf(" AND timestamp >= %s", l.placeholder(argCount))
		args = append(args, *startTime)
		argCount++
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.Start = *startTime
	}

	if endTime != nil {
		whereClause += fmt.Sprintf(" AND timestamp <= %s", l.placeholder(argCount))
		args = append(args, *endTime)
		if stats.TimeRange == nil {
			stats.TimeRange = &TimeRange{}
		}
		stats.TimeRange.End = *endTime
	}

	// Total events
	err := l.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_records %s", whereClause), args...).Scan(&stats.TotalEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to get total events: %w", err)
	}

	// Events by type
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf("SELECT event_type, COUNT(*) FROM audit_records %s GROUP BY event_type", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType EventType
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		stats.EventsByType[eventType] = count
	}

	// Events by status
	rows, err = l.db.QueryContext(ctx, fmt.Sprintf("SELECT status, COUNT(*) FROM audit_records %s GROUP BY status", whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status EventStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.EventsByStatus[status] = count
	}

	// Unique subjects
	err = l.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT unique_id) FROM audit_records %s AND unique_id IS NOT NULL", whereClause), args...).Scan(&stats.UniqueSubjects)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique subjects: %w", err)
	}

	// Unique resources
	err = l.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT resource_id) FROM audit_records %s AND resource_id IS NOT NULL", whereClause), args...).Scan(&stats.UniqueResources)
	if err != nil {
		return nil, fmt.Errorf("failed to get unique resources: %w", err)
	}

	// Denials
	deniedClause := whereClause + " AND status = 'deny'"
	err = l.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM audit_records %s", deniedClause), args...).Scan(&stats.Denials)
	if err != nil {
		return nil, fmt.Errorf("failed to get denials: %w", err)
	}

	return stats, nil
}

// Close closes the database logger
func (l *DBLogger) Close() error {
	// We don't close the database connection as it may be shared
	return nil
}
