package daemon

import (
	"context"

	"github.com/hostadvisord/hostadvisord/internal/ipc"
)

// registerStubMethods wires the thin CLI leaves the spec's non-goals
// explicitly exclude the content of: persona, news/explore text, and
// decorative output. The method surface still exists so `hostctl` has a
// stable command tree: persona_get/persona_set read and write a stored
// preference, profile_checks reuses doctor_validate, and persona_list and
// news return fixed content.
func (d *Daemon) registerStubMethods() {
	d.server.RegisterMethod("persona_get", ipc.ClassReadOnly, d.handlePersonaGet)
	d.server.RegisterMethod("persona_set", ipc.ClassDiagnostic, d.handlePersonaSet)
	d.server.RegisterMethod("persona_why", ipc.ClassReadOnly, d.handlePersonaWhy)
	d.server.RegisterMethod("persona_list", ipc.ClassReadOnly, d.handlePersonaList)
	d.server.RegisterMethod("news", ipc.ClassReadOnly, d.handleNews)
	d.server.RegisterMethod("profile_checks", ipc.ClassReadOnly, d.handleProfileChecks)
}

func (d *Daemon) handlePersonaGet(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	pref, ok, err := d.historianStore.GetPreference(preferenceKeyPrefix + "persona")
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]interface{}{"persona": "default"}, nil
	}
	return map[string]interface{}{"persona": pref.Value}, nil
}

func (d *Daemon) handlePersonaSet(_ context.Context, params map[string]interface{}) (interface{}, error) {
	persona, err := stringParam(params, "persona")
	if err != nil {
		return nil, err
	}
	if err := d.historianStore.SetPreference(preferenceKeyPrefix+"persona", persona, "string"); err != nil {
		return nil, err
	}
	return map[string]interface{}{"persona": persona}, nil
}

// handlePersonaWhy is deliberately content-free: persona copy is a
// non-goal, so this just confirms which persona is active rather than
// explaining it.
func (d *Daemon) handlePersonaWhy(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return d.handlePersonaGet(ctx, params)
}

func (d *Daemon) handlePersonaList(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"personas": []string{"default"}}, nil
}

// handleNews always reports no news: explore/news text is a non-goal, so
// there is no content source to back a real feed.
func (d *Daemon) handleNews(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"version": "1.0.0", "entries": []string{}}, nil
}

func (d *Daemon) handleProfileChecks(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	validation, err := d.handleDoctorValidate(context.Background(), nil)
	if err != nil {
		return nil, err
	}
	return validation, nil
}
