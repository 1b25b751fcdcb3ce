package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintain_AgeBasedRetention(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now.Add(-40 * 24 * time.Hour), PID: 1, Name: "old", CPUPercent: 1, MemBytes: 100},
		{Timestamp: now.Add(-1 * time.Hour), PID: 2, Name: "recent", CPUPercent: 1, MemBytes: 100},
	}))

	result, err := store.Maintain(now, 30, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.AgeEvicted)

	count, err := store.SampleCount("old", Window30d, now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = store.SampleCount("recent", Window30d, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMaintain_CapacityEvictionDropsLeastRecentlySeen(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now.Add(-3 * time.Hour), PID: 1, Name: "stale", CPUPercent: 1, MemBytes: 100},
		{Timestamp: now.Add(-2 * time.Hour), PID: 2, Name: "middle", CPUPercent: 1, MemBytes: 100},
		{Timestamp: now.Add(-1 * time.Hour), PID: 3, Name: "fresh", CPUPercent: 1, MemBytes: 100},
	}))

	result, err := store.Maintain(now, 365, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.CapacityEvicted)

	count, err := store.SampleCount("stale", Window30d, now)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = store.SampleCount("fresh", Window30d, now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMaintain_WithinLimitsIsNoop(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now, PID: 1, Name: "a", CPUPercent: 1, MemBytes: 100},
	}))

	result, err := store.Maintain(now, 30, 1000)
	require.NoError(t, err)
	assert.Zero(t, result.AgeEvicted)
	assert.Zero(t, result.CapacityEvicted)
	assert.False(t, result.Vacuumed)
}

func TestClassifyDataStatus(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	status, err := store.ClassifyDataStatus("ghost", true, now)
	require.NoError(t, err)
	assert.Equal(t, StatusNoData, status.Kind)

	status, err = store.ClassifyDataStatus("anything", false, now)
	require.NoError(t, err)
	assert.Equal(t, StatusDisabled, status.Kind)

	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now.Add(-2 * time.Minute), PID: 1, Name: "brief", CPUPercent: 1, MemBytes: 100},
		{Timestamp: now, PID: 1, Name: "brief", CPUPercent: 1, MemBytes: 100},
	}))
	status, err = store.ClassifyDataStatus("brief", true, now)
	require.NoError(t, err)
	assert.Equal(t, StatusNotEnoughData, status.Kind)

	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now.Add(-20 * time.Hour), PID: 1, Name: "partial", CPUPercent: 1, MemBytes: 100},
		{Timestamp: now, PID: 1, Name: "partial", CPUPercent: 1, MemBytes: 100},
	}))
	status, err = store.ClassifyDataStatus("partial", true, now)
	require.NoError(t, err)
	assert.Equal(t, StatusPartialWindow, status.Kind)

	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now.Add(-26 * time.Hour), PID: 1, Name: "full", CPUPercent: 1, MemBytes: 100},
		{Timestamp: now, PID: 1, Name: "full", CPUPercent: 1, MemBytes: 100},
	}))
	status, err = store.ClassifyDataStatus("full", true, now)
	require.NoError(t, err)
	assert.Equal(t, StatusOk, status.Kind)
}
