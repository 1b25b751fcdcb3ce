package daemon

import (
	"context"
	"fmt"

	"github.com/hostadvisord/hostadvisord/internal/config"
	"github.com/hostadvisord/hostadvisord/internal/ipc"
)

// preferenceKeyPrefix namespaces operator-set configuration values inside
// user_preferences so they don't collide with preferences set by other
// future features of this store.
const preferenceKeyPrefix = "config:"

// registerConfigMethods wires hostctl's "config" and "autonomy" subcommand
// groups onto internal/historian's preference store: arbitrary named
// settings persist as key/value rows, while autonomy additionally updates
// the daemon's live in-memory Config so it takes effect immediately
// rather than only on the next restart.
func (d *Daemon) registerConfigMethods() {
	d.server.RegisterMethod("config_get", ipc.ClassReadOnly, d.handleConfigGet)
	d.server.RegisterMethod("config_set", ipc.ClassDiagnostic, d.handleConfigSet)
	d.server.RegisterMethod("config_reset", ipc.ClassDiagnostic, d.handleConfigReset)
	d.server.RegisterMethod("config_list", ipc.ClassReadOnly, d.handleConfigList)
	d.server.RegisterMethod("config_export", ipc.ClassReadOnly, d.handleConfigExport)
	d.server.RegisterMethod("config_import", ipc.ClassDiagnostic, d.handleConfigImport)

	d.server.RegisterMethod("autonomy_get", ipc.ClassReadOnly, d.handleAutonomyGet)
	d.server.RegisterMethod("autonomy_set", ipc.ClassDiagnostic, d.handleAutonomySet)
}

func (d *Daemon) handleConfigGet(_ context.Context, params map[string]interface{}) (interface{}, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	pref, ok, err := d.historianStore.GetPreference(preferenceKeyPrefix + key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]interface{}{"key": key, "found": false}, nil
	}
	return map[string]interface{}{"key": key, "value": pref.Value, "found": true}, nil
}

func (d *Daemon) handleConfigSet(_ context.Context, params map[string]interface{}) (interface{}, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	value, err := stringParam(params, "value")
	if err != nil {
		return nil, err
	}
	if err := d.historianStore.SetPreference(preferenceKeyPrefix+key, value, "string"); err != nil {
		return nil, err
	}
	return map[string]interface{}{"key": key, "value": value}, nil
}

// handleConfigReset clears a setting back to its unset (default) state by
// writing an empty value, since the preference store has no delete path
// and fabricating one would outrun what the spec's configuration surface
// actually needs: "unset" and "empty string" are indistinguishable here,
// which matches how `hostctl config reset <key>` is described.
func (d *Daemon) handleConfigReset(_ context.Context, params map[string]interface{}) (interface{}, error) {
	key, err := stringParam(params, "key")
	if err != nil {
		return nil, err
	}
	if err := d.historianStore.SetPreference(preferenceKeyPrefix+key, "", "string"); err != nil {
		return nil, err
	}
	return map[string]interface{}{"key": key, "reset": true}, nil
}

func (d *Daemon) handleConfigList(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"data_dir":           d.cfg.DataDir,
		"socket_path":        d.cfg.SocketPath,
		"privileged":         d.cfg.Privileged,
		"telemetry_disabled": d.cfg.TelemetryDisabled,
		"telemetry_interval": d.cfg.TelemetryInterval.String(),
		"retention_days":     d.cfg.RetentionDays,
		"max_telemetry_keys": d.cfg.MaxTelemetryKeys,
		"alert_cooldown":     d.cfg.AlertCooldown.String(),
		"autonomy":           string(d.currentAutonomy()),
	}, nil
}

func (d *Daemon) handleConfigExport(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return d.handleConfigList(ctx, params)
}

// handleConfigImport applies a flat string-keyed settings map as a batch
// of config_set calls. Every key is stored as a string preference; keys
// are not checked against a list of known settings.
func (d *Daemon) handleConfigImport(_ context.Context, params map[string]interface{}) (interface{}, error) {
	settings, ok := params["settings"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("config_import requires a \"settings\" object")
	}
	applied := 0
	for key, v := range settings {
		value := fmt.Sprintf("%v", v)
		if err := d.historianStore.SetPreference(preferenceKeyPrefix+key, value, "string"); err != nil {
			return nil, err
		}
		applied++
	}
	return map[string]interface{}{"applied": applied}, nil
}

func (d *Daemon) currentAutonomy() config.AutonomyLevel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Autonomy
}

func (d *Daemon) handleAutonomyGet(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"autonomy": string(d.currentAutonomy())}, nil
}

// handleAutonomySet updates the live in-memory autonomy level immediately
// and persists it so it survives a restart. It never loosens the mutation
// engine's own preview/confirm invariants (spec §4.3) — autonomy only
// gates whether the advisor may suggest one-click apply.
func (d *Daemon) handleAutonomySet(_ context.Context, params map[string]interface{}) (interface{}, error) {
	level, err := stringParam(params, "autonomy")
	if err != nil {
		return nil, err
	}
	switch config.AutonomyLevel(level) {
	case config.AutonomyReadOnly, config.AutonomySuggestOnly, config.AutonomyFull:
	default:
		return nil, fmt.Errorf("unknown autonomy level %q", level)
	}

	d.mu.Lock()
	d.cfg.Autonomy = config.AutonomyLevel(level)
	d.mu.Unlock()

	if err := d.historianStore.SetPreference(preferenceKeyPrefix+"autonomy", level, "string"); err != nil {
		return nil, err
	}
	return map[string]interface{}{"autonomy": level}, nil
}
