package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transitwatch/transitwatch/pkg/utils"
)

func readSingleRecord(t *testing.T, dir string) SessionRecord {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var record SessionRecord
	require.NoError(t, utils.ReadJSONFile(filepath.Join(dir, entries[0].Name()), &record))
	return record
}

func TestLogger_SessionLifecycle(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)

	l.SessionStarted("rider@example.com")

	record := readSingleRecord(t, dir)
	assert.Equal(t, "rider@example.com", record.Email)
	assert.NotEmpty(t, record.SessionID)
	assert.False(t, record.StartedAt.IsZero())
	assert.Nil(t, record.EndedAt)

	l.SessionRefreshed()
	l.SessionRefreshed()
	l.SessionEnded()

	record = readSingleRecord(t, dir)
	assert.Equal(t, 2, record.RefreshCount)
	assert.NotNil(t, record.LastRefreshAt)
	assert.NotNil(t, record.EndedAt)
}

func TestLogger_SessionResumed(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)

	l.SessionResumed()

	record := readSingleRecord(t, dir)
	assert.True(t, record.Resumed)
	assert.Empty(t, record.Email)
	assert.Equal(t, 1, record.RefreshCount)
}

func TestLogger_NoCurrentSession(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir)

	// Events without a started session are ignored, not fatal
	l.SessionRefreshed()
	l.SessionEnded()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger

	// Must not panic
	l.SessionStarted("rider@example.com")
	l.SessionRefreshed()
	l.SessionEnded()
}
