package historian

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCPUAndMemoryWindows(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	require.NoError(t, store.RecordCPUWindow(now.Add(-time.Hour), now, 25.5, 80.0))
	require.NoError(t, store.RecordMemoryWindow(now.Add(-time.Hour), now, 1<<20, 1<<22))
}

func TestLogSignatureCount_AccumulatesWithinWindow(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	for i := 0; i < 25; i++ {
		require.NoError(t, store.RecordLogSignature("nginx.service", "connection refused", now))
	}

	count, err := store.LogSignatureCount("nginx.service", now.Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 25, count)
}

func TestRecordBaselineAndDelta(t *testing.T) {
	store := openTestStore(t)

	id, err := store.RecordBaseline("weekday-evening", "cpu", 20.0, 5.0, 200)
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, store.RecordBaselineDelta(id, 55.0, 7.0, true))

	id2, err := store.RecordBaseline("weekday-evening", "cpu", 22.0, 5.5, 210)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestRecordLLMUsageWindow(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	require.NoError(t, store.RecordLLMUsageWindow(now.Add(-time.Hour), now, 1000, 400, 3))
}
