package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// exportJSON exports audit events as JSON array
func exportJSON(events []*Event) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// exportNDJSON exports audit events as newline-delimited JSON
func exportNDJSON(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, event := range events {
		if err := encoder.Encode(event); err != nil {
			return nil, fmt.Errorf("failed to encode event: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports audit events as CSV
func exportCSV(events []*Event) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	// Write header
	header := []string{
		"ID",
		"RecordID",
		"Timestamp",
		"Type",
		"Status",
		"DecisionID",
		"RequestID",
		"UniqueID",
		"SourceIdP",
		"Country",
		"Clearance",
		"ResourceID",
		"Classification",
		"BundleVersion",
		"CacheHit",
		"LatencyMs",
		"Reasons",
		"Obligations",
		"Message",
	}

	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write events
	for _, event := range events {
		row := []string{
			strconv.FormatInt(event.ID, 10),
			event.RecordID,
			event.Timestamp.Format("2006-01-02 15:04:05"),
			string(event.Type),
			string(event.Status),
			event.DecisionID,
			event.RequestID,
			event.UniqueID,
			event.SourceIdP,
			event.CountryOfAffiliation,
			event.Clearance,
			event.ResourceID,
			event.Classification,
			event.BundleVersion,
			strconv.FormatBool(event.CacheHit),
			strconv.FormatInt(event.LatencyMs, 10),
			strings.Join(event.Reasons, "; "),
			strings.Join(event.Obligations, "; "),
			event.Message,
		}

		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
