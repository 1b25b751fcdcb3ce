package fileedit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hostadvisord/hostadvisord/internal/mutation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, string) {
	t.Helper()
	home := t.TempDir()
	bundleRoot := t.TempDir()
	policy := mutation.ScopePolicy{Home: home}
	engine := NewEngine(policy, mutation.NewBundleStore(bundleRoot))
	return engine, home
}

func TestFileEdit_PreviewRejectsOutOfScopePath(t *testing.T) {
	engine, _ := newTestEngine(t)
	p := engine.Preview("/etc/shadow", AppendLine, Params{Line: "x"})
	assert.False(t, p.PolicyOK)
	assert.NotEmpty(t, p.PolicyError)
}

func TestFileEdit_ApplyRejectsWithoutPreview(t *testing.T) {
	engine, home := newTestEngine(t)
	target := filepath.Join(home, "notes.txt")

	_, err := engine.Apply("case-1", target, AppendLine, Params{Line: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching preview")
}

func TestFileEdit_AppendLinePreviewApplyRollback(t *testing.T) {
	engine, home := newTestEngine(t)
	target := filepath.Join(home, "notes.txt")
	require.NoError(t, os.WriteFile(target, []byte("line one\n"), 0o644))

	preview := engine.Preview(target, AppendLine, Params{Line: "line two"})
	require.True(t, preview.PolicyOK)
	require.True(t, preview.CurrentExists)
	require.True(t, preview.WouldChange)

	result, err := engine.Apply("case-1", target, AppendLine, Params{Line: "line two"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.BackupPath)
	assert.NotEqual(t, result.BeforeHash, result.AfterHash)

	after, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(after))

	require.NoError(t, engine.Rollback("case-1"))
	restored, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(restored))
}

func TestFileEdit_RollbackIsIdempotent(t *testing.T) {
	engine, home := newTestEngine(t)
	target := filepath.Join(home, "config.conf")
	require.NoError(t, os.WriteFile(target, []byte("a=1\n"), 0o644))

	engine.Preview(target, SetKeyValue, Params{Key: "a", Value: "2"})
	_, err := engine.Apply("case-2", target, SetKeyValue, Params{Key: "a", Value: "2"})
	require.NoError(t, err)

	require.NoError(t, engine.Rollback("case-2"))
	require.NoError(t, engine.Rollback("case-2"))

	restored, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "a=1\n", string(restored))
}

func TestFileEdit_SetKeyValueInsertsWhenMissing(t *testing.T) {
	engine, home := newTestEngine(t)
	target := filepath.Join(home, "config.conf")
	require.NoError(t, os.WriteFile(target, []byte("b=2\n"), 0o644))

	engine.Preview(target, SetKeyValue, Params{Key: "a", Value: "1"})
	_, err := engine.Apply("case-3", target, SetKeyValue, Params{Key: "a", Value: "1"})
	require.NoError(t, err)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(content), "b=2")
	assert.Contains(t, string(content), "a=1")
}

func TestFileEdit_SetKeyValueNoopWhenAlreadyEqual(t *testing.T) {
	engine, home := newTestEngine(t)
	target := filepath.Join(home, "config.conf")
	require.NoError(t, os.WriteFile(target, []byte("a=1\n"), 0o644))

	preview := engine.Preview(target, SetKeyValue, Params{Key: "a", Value: "1"})
	assert.False(t, preview.WouldChange)
}
