package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dive-federation/pdp/pkg/attributes"
)

// EventType categorizes audit records.
type EventType string

const (
	// Decision events
	EventTypeDecision EventType = "decision"

	// Attribute pipeline events
	EventTypeEnrichment        EventType = "enrichment"
	EventTypeEnrichmentFailure EventType = "enrichment.failure"
	EventTypeValidationFailure EventType = "validation.failure"

	// Bundle lifecycle events
	EventTypeBundlePublish  EventType = "bundle.publish"
	EventTypeBundleActivate EventType = "bundle.activate"
	EventTypeBundlePin      EventType = "bundle.pin"
	EventTypeBundleUnpin    EventType = "bundle.unpin"
	EventTypeBundleRollback EventType = "bundle.rollback"

	// Configuration events
	EventTypeRegistryReload EventType = "registry.reload"
)

// EventStatus is the outcome a record describes.
type EventStatus string

const (
	EventStatusAllow EventStatus = "allow"
	EventStatusDeny  EventStatus = "deny"
	EventStatusError EventStatus = "error"
	EventStatusInfo  EventStatus = "info"
)

// Event is a single audit record. Events are constructed once and never
// mutated after being handed to a Logger.
type Event struct {
	// ID is the sink-assigned row identifier, zero until persisted.
	ID int64 `json:"id,omitempty"`

	// RecordID is assigned at construction and stable across sinks.
	RecordID  string      `json:"recordId"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Status    EventStatus `json:"status"`

	DecisionID string `json:"decisionId,omitempty"`
	RequestID  string `json:"requestId,omitempty"`

	// Subject attributes as evaluated
	UniqueID             string `json:"uniqueId,omitempty"`
	SourceIdP            string `json:"sourceIdP,omitempty"`
	CountryOfAffiliation string `json:"countryOfAffiliation,omitempty"`
	Clearance            string `json:"clearance,omitempty"`

	// Resource attributes as evaluated
	ResourceID     string `json:"resourceId,omitempty"`
	Classification string `json:"classification,omitempty"`

	BundleVersion string `json:"bundleVersion,omitempty"`
	CacheHit      bool   `json:"cacheHit,omitempty"`

	// LatencyMs is wall time from request receipt to decision. Zero for
	// event types that do not measure a request.
	LatencyMs int64 `json:"latencyMs"`

	Reasons     []string `json:"reasons,omitempty"`
	Obligations []string `json:"obligations,omitempty"`

	Message string `json:"message,omitempty"`

	// Detail carries type-specific payload: per-check results for decisions,
	// applied fields for enrichments.
	Detail map[string]interface{} `json:"detail,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*Event, error) {
	var event Event
	err := json.Unmarshal(data, &event)
	return &event, err
}

// newEvent builds the common envelope.
func newEvent(t EventType, status EventStatus) *Event {
	return &Event{
		RecordID:  uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      t,
		Status:    status,
	}
}

// NewDecisionEvent captures one evaluated decision with the exact subject and
// resource attributes the engine saw. latency is the wall time the request
// spent in the pipeline.
func NewDecisionEvent(subject attributes.Subject, resource attributes.Resource, d attributes.Decision, requestID string, latency time.Duration) *Event {
	status := EventStatusDeny
	if d.Allow {
		status = EventStatusAllow
	}

	e := newEvent(EventTypeDecision, status)
	e.DecisionID = d.DecisionID
	e.RequestID = requestID
	e.LatencyMs = latency.Milliseconds()
	e.UniqueID = subject.UniqueID
	e.SourceIdP = subject.SourceIdP
	e.CountryOfAffiliation = subject.CountryOfAffiliation
	e.Clearance = string(subject.Clearance)
	e.ResourceID = resource.ResourceID
	e.Classification = string(resource.Classification)
	e.BundleVersion = d.BundleVersion
	e.CacheHit = d.CacheHit
	e.Reasons = append([]string(nil), d.Reasons...)

	for _, o := range d.Obligations {
		e.Obligations = append(e.Obligations, string(o))
	}

	checks := make([]map[string]interface{}, 0, len(d.Checks))
	for _, c := range d.Checks {
		entry := map[string]interface{}{
			"check":  c.Check,
			"passed": c.Passed,
		}
		if c.Reason != "" {
			entry["reason"] = c.Reason
		}
		checks = append(checks, entry)
	}
	e.Detail = map[string]interface{}{
		"checks":      checks,
		"acpCOI":      subject.ACPCOI,
		"requiredCOI": resource.RequiredCOI,
	}
	return e
}

// NewValidationFailureEvent records a claim set rejected before evaluation.
func NewValidationFailureEvent(uniqueID, sourceIdP, field, value, reason, requestID string) *Event {
	e := newEvent(EventTypeValidationFailure, EventStatusDeny)
	e.RequestID = requestID
	e.UniqueID = uniqueID
	e.SourceIdP = sourceIdP
	e.Message = reason
	e.Detail = map[string]interface{}{
		"field": field,
		"value": value,
	}
	return e
}

// NewEnrichmentEvent records attribute values filled in before validation.
func NewEnrichmentEvent(uniqueID, requestID string, fields map[string]interface{}) *Event {
	e := newEvent(EventTypeEnrichment, EventStatusInfo)
	e.RequestID = requestID
	e.UniqueID = uniqueID
	e.Detail = fields
	return e
}

// NewEnrichmentFailureEvent records a request terminated because required
// attributes could not be inferred. The message stays in the trail; the
// caller returns only a generic response.
func NewEnrichmentFailureEvent(uniqueID, sourceIdP, message, requestID string) *Event {
	e := newEvent(EventTypeEnrichmentFailure, EventStatusError)
	e.RequestID = requestID
	e.UniqueID = uniqueID
	e.SourceIdP = sourceIdP
	e.Message = message
	return e
}

// NewBundleEvent records a bundle lifecycle transition.
func NewBundleEvent(t EventType, version, message string) *Event {
	e := newEvent(t, EventStatusInfo)
	e.BundleVersion = version
	e.Message = message
	return e
}

// SearchFilter represents filters for searching audit records
type SearchFilter struct {
	// Time range
	StartTime *time.Time
	EndTime   *time.Time

	// Subject filters
	UniqueID             string
	SourceIdP            string
	CountryOfAffiliation string

	// Resource filters
	ResourceID string

	// Event filters
	Types         []EventType
	Status        *EventStatus
	DecisionID    string
	BundleVersion string

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // field name to sort by
	SortOrder string // "asc" or "desc"
}

// ExportFormat represents the format for exporting audit records
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)

// Stats represents statistics about audit records
type Stats struct {
	TotalEvents     int64                 `json:"total_events"`
	EventsByType    map[EventType]int64   `json:"events_by_type"`
	EventsByStatus  map[EventStatus]int64 `json:"events_by_status"`
	UniqueSubjects  int64                 `json:"unique_subjects"`
	UniqueResources int64                 `json:"unique_resources"`
	Denials         int64                 `json:"denials"`
	TimeRange       *TimeRange            `json:"time_range,omitempty"`
}

// TimeRange represents a time range for statistics
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RetentionPolicy defines how long audit records should be kept
type RetentionPolicy struct {
	// RetentionDays is the number of days to keep audit records
	RetentionDays int

	// ArchiveEnabled determines if old records should be archived before deletion
	ArchiveEnabled bool

	// ArchivePath is where archived records should be stored
	ArchivePath string
}

// DefaultRetentionPolicy returns a default retention policy (365 days).
// Coalition audit trails are kept a full year before archival.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays:  365,
		ArchiveEnabled: true,
		ArchivePath:    "/var/lib/pdp/audit-archive",
	}
}
