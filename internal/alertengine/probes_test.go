package alertengine

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskPressureProbe_FlagsMountsOverThreshold(t *testing.T) {
	usage := func() ([]*disk.UsageStat, error) {
		return []*disk.UsageStat{
			{Path: "/", UsedPercent: 40},
			{Path: "/var", UsedPercent: 95},
			{Path: "/home", UsedPercent: 99},
		}, nil
	}

	alerts, err := DiskPressureProbe(DiskPressureThreshold, usage)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "/var", alerts[0].PrincipalParam)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
	assert.Equal(t, SeverityCritical, alerts[1].Severity)
}

func TestFailedUnitsProbe_EmitsOneProtoAlertPerUnit(t *testing.T) {
	list := func(ctx context.Context) ([]FailedUnit, error) {
		return []FailedUnit{{Name: "nginx.service", Description: "exit code 1"}}, nil
	}

	alerts, err := FailedUnitsProbe(context.Background(), list)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "failed-units", alerts[0].ProbeID)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestThermalProbe_FlagsOverThresholdAndThrottling(t *testing.T) {
	readings := func(ctx context.Context) ([]ThermalReading, error) {
		return []ThermalReading{
			{SensorName: "coretemp", Celsius: 55, Throttling: false},
			{SensorName: "gputemp", Celsius: 90, Throttling: true},
		}, nil
	}

	alerts, err := ThermalProbe(context.Background(), 80, readings)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "gputemp", alerts[0].PrincipalParam)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestJournalErrorBurstProbe_FlagsUnitsAtOrOverThreshold(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	for i := 0; i < JournalErrorBurstThreshold; i++ {
		require.NoError(t, store.RecordLogSignature("nginx.service", "upstream timed out", now))
	}
	require.NoError(t, store.RecordLogSignature("sshd.service", "auth failure", now))

	alerts, err := JournalErrorBurstProbe(store, now, []string{"nginx.service", "sshd.service"})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "nginx.service", alerts[0].PrincipalParam)
}
