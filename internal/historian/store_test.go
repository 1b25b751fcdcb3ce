package historian

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "historian", "context.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_RunsMigrationsAndRecordsSchemaVersion(t *testing.T) {
	store := openTestStore(t)

	version, err := store.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_IsIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "historian", "context.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordAction(ActionRecord{CaseID: "case-1", Kind: "file-edit", Target: "/home/op/.bashrc", Outcome: "applied", DurationMS: 5}))
	store.Close()

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	version, err := reopened.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	actions, err := reopened.RecentActions("case-1", 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
}

func TestAddColumnIfMissing_NoopWhenColumnAlreadyExists(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.addColumnIfMissing("issue_tracking", "evidence_ids", "TEXT"))
	require.NoError(t, store.addColumnIfMissing("issue_tracking", "evidence_ids", "TEXT"))
}
