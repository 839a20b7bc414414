package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store provides methods for querying and managing audit records
type Store interface {
	// Search searches audit records based on filters
	Search(ctx context.Context, filter SearchFilter) ([]*Event, error)

	// Get retrieves a specific audit record by its record ID
	Get(ctx context.Context, recordID string) (*Event, error)

	// GetStats retrieves audit record statistics
	GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error)

	// Export exports audit records in the specified format
	Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error)

	// Cleanup removes audit records older than the retention period
	Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// DBStore implements Store on top of the database sink.
type DBStore struct {
	logger *DBLogger
}

// NewDBStore creates a new database-backed audit store
func NewDBStore(logger *DBLogger) *DBStore {
	return &DBStore{
		logger: logger,
	}
}

// Search searches audit records based on filters
func (s *DBStore) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	return s.logger.Search(ctx, filter)
}

// Get retrieves a specific audit record by its record ID
func (s *DBStore) Get(ctx context.Context, recordID string) (*Event, error) {
	query := `
		SELECT
			id, record_id, timestamp, event_type, status,
			decision_id, request_id,
			unique_id, source_idp, country, clearance,
			resource_id, classification,
			bundle_version, cache_hit,
			reasons, obligations, message, detail
		FROM audit_records
		WHERE record_id = ` + s.logger.placeholder(1)

	events, err := scanEvents(ctx, s.logger, query, recordID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// GetStats retrieves audit record statistics
func (s *DBStore) GetStats(ctx context.Context, startTime, endTime *time.Time) (*Stats, error) {
	return s.logger.GetStats(ctx, startTime, endTime)
}

// Export exports audit records in the specified format
func (s *DBStore) Export(ctx context.Context, filter SearchFilter, format ExportFormat) ([]byte, error) {
	// Get all events matching the filter
	events, err := s.logger.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatJSON:
		return exportJSON(events)
	case ExportFormatCSV:
		return exportCSV(events)
	case ExportFormatNDJSON:
		return exportNDJSON(events)
	default:
		return exportJSON(events)
	}
}

// Cleanup removes audit records older than the retention period. With
// archiving enabled the expiring records are exported as NDJSON to the
// archive path first; the trail shrinks but never vanishes.
func (s *DBStore) Cleanup(ctx context.Context, policy RetentionPolicy) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -policy.RetentionDays)

	if policy.ArchiveEnabled {
		if err := s.archive(ctx, cutoffDate, policy.ArchivePath); err != nil {
			return 0, fmt.Errorf("refusing to delete unarchived audit records: %w", err)
		}
	}

	query := "DELETE FROM audit_records WHERE timestamp < " + s.logger.placeholder(1)
	result, err := s.logger.db.ExecContext(ctx, query, cutoffDate)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return rowsAffected, nil
}

// archive exports everything before the cutoff to a timestamped NDJSON file.
func (s *DBStore) archive(ctx context.Context, cutoff time.Time, path string) error {
	events, err := s.logger.Search(ctx, SearchFilter{
		EndTime:   &cutoff,
		SortBy:    "timestamp",
		SortOrder: "asc",
	})
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	raw, err := exportNDJSON(events)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("audit-archive-%s.ndjson", time.Now().Format("2006-01-02-15-04-05"))
	if err := os.WriteFile(filepath.Join(path, name), raw, 0644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}
