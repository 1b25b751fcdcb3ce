package historian

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertIssue_PreservesFirstSeenAndUpdatesLastSeen(t *testing.T) {
	store := openTestStore(t)
	first := time.Now().Add(-time.Hour)
	second := time.Now()

	require.NoError(t, store.UpsertIssue("fp-1", "disk-pressure", "warning", "Disk low", "desc", "", first))
	require.NoError(t, store.UpsertIssue("fp-1", "disk-pressure", "warning", "Disk low", "desc", "", second))

	issue, ok, err := store.GetIssue("fp-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.WithinDuration(t, first, issue.FirstSeen, time.Second)
	assert.WithinDuration(t, second, issue.LastSeen, time.Second)
	assert.Equal(t, 0, issue.TimesShown)
}

func TestIssue_ShouldSurface_GatesOnSuppressSnoozeAndCooldown(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	require.NoError(t, store.UpsertIssue("fp-2", "failed-units", "critical", "unit failed", "desc", "", now))

	issue, ok, err := store.GetIssue("fp-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, issue.ShouldSurface(now, 15*time.Minute))

	require.NoError(t, store.Suppress("fp-2"))
	issue, _, err = store.GetIssue("fp-2")
	require.NoError(t, err)
	assert.False(t, issue.ShouldSurface(now, 15*time.Minute))

	require.NoError(t, store.Unsuppress("fp-2"))
	require.NoError(t, store.Snooze("fp-2", now.Add(time.Hour)))
	issue, _, err = store.GetIssue("fp-2")
	require.NoError(t, err)
	assert.False(t, issue.ShouldSurface(now, 15*time.Minute))
	assert.True(t, issue.ShouldSurface(now.Add(2*time.Hour), 15*time.Minute))
}

func TestIssue_ShouldSurface_CooldownBlocksImmediateResurface(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	require.NoError(t, store.UpsertIssue("fp-3", "thermal", "warning", "hot", "desc", "", now))
	require.NoError(t, store.MarkShown("fp-3", now))

	issue, _, err := store.GetIssue("fp-3")
	require.NoError(t, err)
	assert.False(t, issue.ShouldSurface(now.Add(time.Minute), 15*time.Minute))
	assert.True(t, issue.ShouldSurface(now.Add(16*time.Minute), 15*time.Minute))
}

func TestMarkResolved_RetainsRecordForAudit(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	require.NoError(t, store.UpsertIssue("fp-4", "disk-pressure", "warning", "disk low", "desc", "", now))
	require.NoError(t, store.MarkResolved("fp-4"))

	issue, ok, err := store.GetIssue("fp-4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "resolved", issue.Status)
	assert.False(t, issue.ShouldSurface(now, 15*time.Minute))
}
