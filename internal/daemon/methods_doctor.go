package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hostadvisord/hostadvisord/internal/config"
	"github.com/hostadvisord/hostadvisord/internal/ipc"
)

// registerDoctorMethods wires hostctl's "doctor" subcommand group: check
// (a health summary), validate (layout + scope policy sanity), setup
// (idempotent layout creation), repair (an alias for perform_update), and
// rollback (an alias for rollback_last, which reports the most recent case
// and its recorded repairs without undoing anything). None of this
// duplicates the mutation engine's own invariants — doctor adds no
// mutation path of its own.
func (d *Daemon) registerDoctorMethods() {
	d.server.RegisterMethod("doctor_check", ipc.ClassReadOnly, d.handleHealthSummary)
	d.server.RegisterMethod("doctor_validate", ipc.ClassDiagnostic, d.handleDoctorValidate)
	d.server.RegisterMethod("doctor_setup", ipc.ClassDiagnostic, d.handleDoctorSetup)
	d.server.RegisterMethod("doctor_repair", ipc.ClassMutating, d.handleDoctorRepair)
	d.server.RegisterMethod("doctor_rollback", ipc.ClassMutating, d.handleRollbackLast)
}

// handleDoctorValidate checks that the persisted layout exists with the
// expected permissions and that the scope policy resolves to a usable
// home directory, surfacing the kind of setup drift `doctor validate`
// exists to catch.
func (d *Daemon) handleDoctorValidate(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	problems := []string{}

	for _, dir := range []string{filepath.Dir(d.layout.ContextDB), d.layout.CasesDir, d.layout.RollbackDir, d.layout.RecipesDir, d.layout.RecipeArchive} {
		info, err := os.Stat(dir)
		if err != nil {
			problems = append(problems, fmt.Sprintf("data layout: %v", err))
			continue
		}
		if dir == d.layout.RollbackDir && info.Mode().Perm() != 0o700 {
			problems = append(problems, fmt.Sprintf("data layout: %s has mode %o, expected 700", dir, info.Mode().Perm()))
		}
	}

	policy := d.fileEdit.Policy()
	if policy.Home == "" {
		problems = append(problems, "scope policy has no home directory resolved")
	}

	return map[string]interface{}{
		"ok":       len(problems) == 0,
		"problems": problems,
	}, nil
}

// handleDoctorSetup (re-)creates the on-disk layout. It is always safe to
// run: config.EnsureLayout only creates directories that are missing.
func (d *Daemon) handleDoctorSetup(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	if err := config.EnsureLayout(d.layout); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ok": true}, nil
}

// handleDoctorRepair is a thin alias for perform_update: a "repair" is
// just a recipe whose plan fixes a known-bad condition, so doctor repair
// and perform_update share one implementation rather than inventing a
// second recipe-execution path.
func (d *Daemon) handleDoctorRepair(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return d.handlePerformUpdate(ctx, params)
}
