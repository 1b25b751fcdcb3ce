// Package config loads hostadvisord's configuration from the environment
// and an optional .env file, and watches a small set of mutable settings
// for hot-reload.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Env var names (§6 of SPEC_FULL.md).
const (
	EnvDataDir      = "HOSTADVISORD_DATA_DIR"
	EnvXDGDataHome  = "XDG_DATA_HOME"
	EnvHome         = "HOME"
	EnvNoTelemetry  = "HOSTADVISORD_NO_TELEMETRY"
	EnvSocketPath   = "HOSTADVISORD_SOCKET"
	EnvAutonomy     = "HOSTADVISORD_AUTONOMY"
	serviceName     = "hostadvisord"
	defaultSockPath = "/run/" + serviceName + "/" + serviceName + ".sock"
)

// AutonomyLevel gates how much the daemon may do without an explicit
// operator confirmation. It never bypasses the mutation engine's
// preview/confirm invariants (§4.3) — it only controls whether the
// advisor surfaces a recipe for one-click apply vs. requiring the
// operator to apply it explicitly through the apply_action method.
type AutonomyLevel string

const (
	AutonomyReadOnly    AutonomyLevel = "read_only"
	AutonomySuggestOnly AutonomyLevel = "suggest_only"
	AutonomyFull        AutonomyLevel = "full"
)

// Config is the resolved daemon configuration.
type Config struct {
	DataDir           string
	SocketPath        string
	Privileged        bool
	TelemetryDisabled bool
	TelemetryInterval time.Duration
	RetentionDays     int
	MaxTelemetryKeys  int
	AlertCooldown     time.Duration
	Autonomy          AutonomyLevel
}

var defaultDataDirSystem = "/var/lib/" + serviceName

// Load resolves configuration from environment variables, optionally
// after reading a `.env` file in the current directory (mirrors the
// teacher's config.Load() precedence: process env wins over .env).
func Load() (Config, error) {
	_ = godotenv.Load() // best effort; missing .env is not an error

	cfg := Config{
		SocketPath:        envOr(EnvSocketPath, defaultSockPath),
		TelemetryInterval: 15 * time.Second,
		RetentionDays:     30,
		MaxTelemetryKeys:  500,
		AlertCooldown:     15 * time.Minute,
		Autonomy:          AutonomyLevel(envOr(EnvAutonomy, string(AutonomySuggestOnly))),
	}

	cfg.Privileged = os.Geteuid() == 0
	cfg.DataDir = resolveDataDir(cfg.Privileged)
	cfg.TelemetryDisabled = boolEnv(EnvNoTelemetry, false)

	return cfg, nil
}

func resolveDataDir(privileged bool) string {
	if v := os.Getenv(EnvDataDir); v != "" {
		return v
	}
	if privileged {
		return defaultDataDirSystem
	}
	if xdg := os.Getenv(EnvXDGDataHome); xdg != "" {
		return filepath.Join(xdg, serviceName)
	}
	home := os.Getenv(EnvHome)
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".local", "share", serviceName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

// Layout describes the on-disk paths derived from DataDir (§6 persisted
// layout table).
type Layout struct {
	ContextDB    string
	TelemetryDB  string
	CasesDir     string
	RollbackDir  string
	RecipesDir   string
	RecipeIndex  string
	RecipeArchive string
}

// ResolveLayout computes the on-disk layout for a given data directory.
func ResolveLayout(dataDir string) Layout {
	recipesDir := filepath.Join(dataDir, "recipes")
	return Layout{
		ContextDB:     filepath.Join(dataDir, "context.db"),
		TelemetryDB:   filepath.Join(dataDir, "telemetry.db"),
		CasesDir:      filepath.Join(dataDir, "cases"),
		RollbackDir:   filepath.Join(dataDir, "rollback"),
		RecipesDir:    recipesDir,
		RecipeIndex:   filepath.Join(recipesDir, "recipe_index.json"),
		RecipeArchive: filepath.Join(recipesDir, "archive"),
	}
}

// EnsureLayout creates every directory in the layout with the modes
// specified in §6 (rollback bundles are 0700, everything else 0755 —
// individual files within are chmod'd by their owning package).
func EnsureLayout(l Layout) error {
	dirs := []string{
		filepath.Dir(l.ContextDB),
		l.CasesDir,
		l.RollbackDir,
		l.RecipesDir,
		l.RecipeArchive,
	}
	for _, d := range dirs {
		mode := os.FileMode(0755)
		if d == l.RollbackDir {
			mode = 0700
		}
		if err := os.MkdirAll(d, mode); err != nil {
			return err
		}
	}
	return nil
}
