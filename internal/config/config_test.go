package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv(EnvDataDir)
	os.Unsetenv(EnvNoTelemetry)
	os.Unsetenv(EnvAutonomy)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, AutonomySuggestOnly, cfg.Autonomy)
	assert.False(t, cfg.TelemetryDisabled)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDataDir, dir)
	t.Setenv(EnvNoTelemetry, "true")
	t.Setenv(EnvAutonomy, "full")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.True(t, cfg.TelemetryDisabled)
	assert.Equal(t, AutonomyFull, cfg.Autonomy)
}

func TestResolveLayout(t *testing.T) {
	l := ResolveLayout("/data")
	assert.Equal(t, "/data/context.db", l.ContextDB)
	assert.Equal(t, "/data/telemetry.db", l.TelemetryDB)
	assert.Equal(t, filepath.Join("/data", "recipes", "recipe_index.json"), l.RecipeIndex)
}

func TestEnsureLayout(t *testing.T) {
	dir := t.TempDir()
	l := ResolveLayout(dir)
	require.NoError(t, EnsureLayout(l))

	for _, d := range []string{l.CasesDir, l.RollbackDir, l.RecipesDir, l.RecipeArchive} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
