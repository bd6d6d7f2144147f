package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	recorder, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	return recorder
}

func TestAppendAndList(t *testing.T) {
	recorder := openTestRecorder(t)

	base := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	for i, outcome := range []string{"succeeded", "failed", "succeeded"} {
		started := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, recorder.Append(
			"run-"+outcome, "production", "container",
			"app-production-20260827", outcome, "",
			started, started.Add(time.Minute),
		))
	}
	require.NoError(t, recorder.Append(
		"run-other", "staging", "container",
		"app-staging-20260827", "succeeded", "",
		base, base.Add(time.Minute),
	))

	records, err := recorder.List("production", 10)
	require.NoError(t, err)
	require.Len(t, records, 3, "records from other environments are excluded")
	require.Equal(t, "succeeded", records[0].Outcome)
	require.True(t, records[0].StartedAt.After(records[1].StartedAt), "newest first")
}

func TestListLimit(t *testing.T) {
	recorder := openTestRecorder(t)

	base := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		started := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, recorder.Append(
			"run", "production", "container", "release", "succeeded", "",
			started, started.Add(time.Second),
		))
	}

	records, err := recorder.List("production", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestListEmptyEnvironment(t *testing.T) {
	recorder := openTestRecorder(t)
	records, err := recorder.List("production", 0)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestFailureRecordsError(t *testing.T) {
	recorder := openTestRecorder(t)

	now := time.Now().UTC()
	require.NoError(t, recorder.Append(
		"run-1", "production", "container", "app-production-20260827",
		"failed", "health check attempts exhausted",
		now, now.Add(time.Minute),
	))

	records, err := recorder.List("production", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "failed", records[0].Outcome)
	require.Contains(t, records[0].Error, "health check")
}
