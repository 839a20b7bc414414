package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerWriteAndRead(t *testing.T) {
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	defer logger.Close()

	subject, resource, decision := sampleDecision()
	for i := 0; i < 3; i++ {
		require.NoError(t, logger.Log(context.Background(), NewDecisionEvent(subject, resource, decision, "req-1", 0)))
	}

	events, err := logger.ReadRecords(0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventTypeDecision, events[0].Type)
	assert.Equal(t, "doc-123", events[0].ResourceID)
}

func TestFileLoggerReadLimit(t *testing.T) {
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	defer logger.Close()

	subject, resource, decision := sampleDecision()
	for i := 0; i < 5; i++ {
		require.NoError(t, logger.Log(context.Background(), NewDecisionEvent(subject, resource, decision, "", 0)))
	}

	events, err := logger.ReadRecords(2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestFileLoggerRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{
		BasePath: dir,
		Rotate:   true,
		MaxSize:  256, // force rotation after the first few records
		MaxFiles: 5,
	})
	require.NoError(t, err)
	defer logger.Close()

	subject, resource, decision := sampleDecision()
	for i := 0; i < 20; i++ {
		require.NoError(t, logger.Log(context.Background(), NewDecisionEvent(subject, resource, decision, "", 0)))
	}

	// Current file stays small after rotation kicked in.
	events, err := logger.ReadRecords(0)
	require.NoError(t, err)
	assert.Less(t, len(events), 20)
}
