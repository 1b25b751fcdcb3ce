package alertengine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hostadvisord/hostadvisord/internal/historian"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *historian.Store {
	t.Helper()
	store, err := historian.Open(filepath.Join(t.TempDir(), "historian", "context.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEvaluate_SurfacesNewProtoAlertImmediately(t *testing.T) {
	store := openTestStore(t)
	engine := NewEngine(store, time.Minute)
	now := time.Now()

	surfaced, err := engine.Evaluate(now, []ProtoAlert{
		{ProbeID: "disk-pressure", PrincipalParam: "/var", Severity: SeverityWarning, Title: "low disk", Description: "desc"},
	})
	require.NoError(t, err)
	require.Len(t, surfaced, 1)
	assert.Equal(t, 1, surfaced[0].TimesShown)
}

func TestEvaluate_CooldownSuppressesRepeatSurfaceWithinWindow(t *testing.T) {
	store := openTestStore(t)
	engine := NewEngine(store, 15*time.Minute)
	now := time.Now()

	proto := []ProtoAlert{{ProbeID: "disk-pressure", PrincipalParam: "/var", Severity: SeverityWarning, Title: "low disk", Description: "desc"}}

	first, err := engine.Evaluate(now, proto)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := engine.Evaluate(now.Add(time.Minute), proto)
	require.NoError(t, err)
	assert.Empty(t, second)

	third, err := engine.Evaluate(now.Add(20*time.Minute), proto)
	require.NoError(t, err)
	require.Len(t, third, 1)
}

func TestEvaluate_SuppressedFingerprintNeverSurfaces(t *testing.T) {
	store := openTestStore(t)
	engine := NewEngine(store, time.Minute)
	now := time.Now()
	proto := []ProtoAlert{{ProbeID: "failed-units", PrincipalParam: "nginx.service", Severity: SeverityCritical, Title: "failed", Description: "desc"}}

	fp := Fingerprint("failed-units", "nginx.service")
	// Decisions reference an issue_tracking row, so the issue is seen first.
	require.NoError(t, store.UpsertIssue(fp, "failed-units", string(SeverityCritical), "failed", "desc", "", now))
	require.NoError(t, engine.Suppress(fp))

	surfaced, err := engine.Evaluate(now, proto)
	require.NoError(t, err)
	assert.Empty(t, surfaced)
}

func TestEvaluate_SnoozedFingerprintReappearsAfterSnoozeExpires(t *testing.T) {
	store := openTestStore(t)
	engine := NewEngine(store, time.Minute)
	now := time.Now()
	proto := []ProtoAlert{{ProbeID: "thermal", PrincipalParam: "coretemp", Severity: SeverityWarning, Title: "hot", Description: "desc"}}

	fp := Fingerprint("thermal", "coretemp")
	// Decisions reference an issue_tracking row, so the issue is seen first.
	require.NoError(t, store.UpsertIssue(fp, "thermal", string(SeverityWarning), "hot", "desc", "", now))
	require.NoError(t, engine.Snooze(fp, now.Add(time.Hour)))

	surfaced, err := engine.Evaluate(now, proto)
	require.NoError(t, err)
	assert.Empty(t, surfaced)

	surfaced, err = engine.Evaluate(now.Add(2*time.Hour), proto)
	require.NoError(t, err)
	require.Len(t, surfaced, 1)
}

func TestResolveMissing_MarksGoneFingerprintsResolved(t *testing.T) {
	store := openTestStore(t)
	engine := NewEngine(store, time.Minute)
	now := time.Now()
	fp := Fingerprint("disk-pressure", "/var")

	_, err := engine.Evaluate(now, []ProtoAlert{{ProbeID: "disk-pressure", PrincipalParam: "/var", Severity: SeverityWarning, Title: "low disk", Description: "desc"}})
	require.NoError(t, err)

	require.NoError(t, engine.ResolveMissing([]string{fp}, nil))

	issue, ok, err := store.GetIssue(fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "resolved", issue.Status)
}
