package serviceaction

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hostadvisord/hostadvisord/internal/mutation"
	"github.com/hostadvisord/hostadvisord/internal/mutation/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBundles gives each test its own rollback bundle root, the way
// fileedit's tests do.
func newTestBundles(t *testing.T) *mutation.BundleStore {
	t.Helper()
	return mutation.NewBundleStore(t.TempDir())
}

// fakeUnit is an in-memory systemd unit used to script systemctl
// responses deterministically across probe/preview/apply/rollback.
type fakeUnit struct {
	mu      sync.Mutex
	active  bool
	enabled bool
}

func (f *fakeUnit) runner() func(ctx context.Context, args ...string) (string, error) {
	return func(ctx context.Context, args ...string) (string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if len(args) == 0 {
			return "", fmt.Errorf("no args")
		}
		switch args[0] {
		case "is-active":
			if f.active {
				return "active", nil
			}
			return "inactive", fmt.Errorf("inactive")
		case "is-enabled":
			if f.enabled {
				return "enabled", nil
			}
			return "disabled", fmt.Errorf("disabled")
		case "status":
			return "Loaded: loaded (/lib/systemd/system/x.service; enabled)", nil
		case "start":
			f.active = true
			return "", nil
		case "stop":
			f.active = false
			return "", nil
		case "restart":
			f.active = true
			return "", nil
		case "enable":
			f.enabled = true
			return "", nil
		case "disable":
			f.enabled = false
			return "", nil
		default:
			return "", fmt.Errorf("unhandled verb %s", args[0])
		}
	}
}

func TestServiceAction_ProbeReflectsUnitState(t *testing.T) {
	unit := &fakeUnit{active: true, enabled: true}
	engine := NewEngineWithRunner(unit.runner(), newTestBundles(t))

	probe, err := engine.Probe(context.Background(), "nginx")
	require.NoError(t, err)
	assert.True(t, probe.Exists)
	assert.True(t, probe.Active)
	assert.True(t, probe.Enabled)
}

func TestServiceAction_PreviewRiskLevels(t *testing.T) {
	cases := []struct {
		name    string
		active  bool
		enabled bool
		op      Operation
		want    risk.Level
	}{
		{"start inactive is low", false, false, Start, risk.Low},
		{"restart active is medium", true, true, Restart, risk.Medium},
		{"stop enabled active is high", true, true, Stop, risk.High},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			unit := &fakeUnit{active: c.active, enabled: c.enabled}
			engine := NewEngineWithRunner(unit.runner(), newTestBundles(t))

			preview, err := engine.Preview(context.Background(), "nginx", c.op)
			require.NoError(t, err)
			assert.Equal(t, c.want, preview.Risk)
			assert.True(t, strings.Contains(preview.ConfirmationPhrase, string(c.want)))
		})
	}
}

func TestServiceAction_ApplyRejectsWrongConfirmation(t *testing.T) {
	unit := &fakeUnit{active: false, enabled: false}
	engine := NewEngineWithRunner(unit.runner(), newTestBundles(t))

	preview, err := engine.Preview(context.Background(), "nginx", Start)
	require.NoError(t, err)

	_, err = engine.Apply(context.Background(), "case-1", "nginx", Start, preview.ID, "wrong phrase")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation phrase")
}

func TestServiceAction_ApplyRejectsMismatchedOperation(t *testing.T) {
	unit := &fakeUnit{active: false, enabled: false}
	engine := NewEngineWithRunner(unit.runner(), newTestBundles(t))

	preview, err := engine.Preview(context.Background(), "nginx", Start)
	require.NoError(t, err)

	_, err = engine.Apply(context.Background(), "case-1", "nginx", Restart, preview.ID, preview.ConfirmationPhrase)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestServiceAction_ApplyAndRollbackRoundTrip(t *testing.T) {
	unit := &fakeUnit{active: false, enabled: false}
	engine := NewEngineWithRunner(unit.runner(), newTestBundles(t))

	preview, err := engine.Preview(context.Background(), "nginx", Start)
	require.NoError(t, err)
	require.Equal(t, risk.Low, preview.Risk)

	result, err := engine.Apply(context.Background(), "case-1", "nginx", Start, preview.ID, preview.ConfirmationPhrase)
	require.NoError(t, err)
	assert.False(t, result.PriorActive)

	unit.mu.Lock()
	active := unit.active
	unit.mu.Unlock()
	assert.True(t, active)

	require.NoError(t, engine.Rollback(context.Background(), "case-1"))
	unit.mu.Lock()
	active = unit.active
	unit.mu.Unlock()
	assert.False(t, active)
}

func TestServiceAction_ApplyRejectsUnknownPreview(t *testing.T) {
	unit := &fakeUnit{}
	engine := NewEngineWithRunner(unit.runner(), newTestBundles(t))

	_, err := engine.Apply(context.Background(), "case-1", "nginx", Start, "not-a-real-id", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no preview found")
}
