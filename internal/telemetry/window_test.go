package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSamples(t *testing.T, store *Store, now time.Time) {
	t.Helper()
	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now.Add(-5 * time.Minute), PID: 100, Name: "nginx", CPUPercent: 10, MemBytes: 1000},
		{Timestamp: now.Add(-3 * time.Minute), PID: 100, Name: "nginx", CPUPercent: 20, MemBytes: 2000},
		{Timestamp: now.Add(-1 * time.Minute), PID: 101, Name: "nginx", CPUPercent: 30, MemBytes: 3000},
	}))
}

func TestWindowStats_EnoughDataBySampleCount(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	samples := make([]Sample, 0, 40)
	for i := 0; i < 40; i++ {
		samples = append(samples, Sample{
			Timestamp:  now.Add(-time.Duration(i) * time.Second),
			PID:        1,
			Name:       "busy",
			CPUPercent: 5,
			MemBytes:   100,
		})
	}
	require.NoError(t, store.InsertBatch(samples))

	stats, err := store.WindowStats("busy", Window1h, now)
	require.NoError(t, err)
	assert.Equal(t, 40, stats.SampleCount)
	assert.True(t, stats.EnoughData)
}

func TestWindowStats_NotEnoughDataShortCoverage(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	seedSamples(t, store, now)

	stats, err := store.WindowStats("nginx", Window1h, now)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SampleCount)
	assert.False(t, stats.EnoughData)
	assert.InDelta(t, 20, stats.AvgCPU, 0.01)
	assert.Equal(t, 30.0, stats.PeakCPU)
}

func TestEnhancedWindowStats_CPUTimeAndExecCount(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	seedSamples(t, store, now)

	enhanced, err := store.EnhancedWindowStats("nginx", Window1h, now, 15)
	require.NoError(t, err)
	assert.Equal(t, 2, enhanced.ExecCount)
	assert.InDelta(t, (10.0+20.0+30.0)*15/100, enhanced.CPUTimeTotal, 0.01)
}

func TestTopByPeakRSS(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now, PID: 1, Name: "a", CPUPercent: 1, MemBytes: 1000},
		{Timestamp: now, PID: 2, Name: "b", CPUPercent: 1, MemBytes: 5000},
	}))

	top, err := store.TopByPeakRSS(Window1h, now, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Name)
}

func TestGlobalPeakCPU24h_NoneWhenEmpty(t *testing.T) {
	store := openTestStore(t)
	_, ok, err := store.GlobalPeakCPU24h(time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrend24h_NoDataWhenEitherSideEmpty(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	seedSamples(t, store, now)

	trend, err := store.Trend24h("nginx", now, 15)
	require.NoError(t, err)
	assert.False(t, trend.HasData)
}

func TestTrend24h_ComparesBothWindows(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.InsertBatch([]Sample{
		{Timestamp: now.Add(-30 * time.Hour), PID: 1, Name: "nginx", CPUPercent: 10, MemBytes: 1000},
		{Timestamp: now.Add(-1 * time.Hour), PID: 1, Name: "nginx", CPUPercent: 50, MemBytes: 9000},
	}))

	trend, err := store.Trend24h("nginx", now, 15)
	require.NoError(t, err)
	assert.True(t, trend.HasData)
	assert.Greater(t, trend.PeakRSSDelta, 0.0)
}
