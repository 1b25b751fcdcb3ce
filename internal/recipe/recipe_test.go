package recipe

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "recipes"))
	require.NoError(t, err)
	return s
}

func TestClampConfidence_EnforcesBounds(t *testing.T) {
	assert.Equal(t, 0.1, ClampConfidence(0))
	assert.Equal(t, 0.1, ClampConfidence(-5))
	assert.Equal(t, 0.99, ClampConfidence(1))
	assert.Equal(t, 0.99, ClampConfidence(100))
	assert.InDelta(t, 0.5, ClampConfidence(0.5), 0.0001)
}

func TestStatusForReliability_GatesActiveVsDraft(t *testing.T) {
	assert.Equal(t, StatusDraft, StatusForReliability(79))
	assert.Equal(t, StatusActive, StatusForReliability(80))
	assert.Equal(t, StatusActive, StatusForReliability(100))
}

func TestNew_ClampsConfidenceAndDerivesStatus(t *testing.T) {
	r := New(NewRecipeID(), "case-1", 50, 1.5, CreatorSystem)
	assert.Equal(t, StatusDraft, r.Status)
	assert.Equal(t, 0.99, r.Confidence)
	assert.Equal(t, "case-1", r.OriginCaseID)
}

func TestSave_PersistsAndGetReturnsRecipe(t *testing.T) {
	s := newTestStore(t)
	id := NewRecipeID()
	r := New(id, "case-1", 90, 0.8, CreatorVerifier)
	r.IntentPattern = IntentPattern{TypeTag: "diagnose-disk", PositiveKeywords: []string{"disk", "full"}}

	require.NoError(t, s.Save(r))

	got, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "diagnose-disk", got.IntentPattern.TypeTag)
}

func TestMatch_OnlyReturnsActiveRecipesMatchingIntent(t *testing.T) {
	s := newTestStore(t)

	active := New(NewRecipeID(), "case-1", 90, 0.7, CreatorSystem)
	active.IntentPattern = IntentPattern{TypeTag: "diagnose-disk", PositiveKeywords: []string{"disk"}}
	require.NoError(t, s.Save(active))

	draft := New(NewRecipeID(), "case-2", 10, 0.2, CreatorSystem)
	draft.IntentPattern = IntentPattern{TypeTag: "diagnose-disk", PositiveKeywords: []string{"disk"}}
	require.NoError(t, s.Save(draft))

	wrongTag := New(NewRecipeID(), "case-3", 90, 0.9, CreatorSystem)
	wrongTag.IntentPattern = IntentPattern{TypeTag: "diagnose-memory", PositiveKeywords: []string{"disk"}}
	require.NoError(t, s.Save(wrongTag))

	excluded := New(NewRecipeID(), "case-4", 90, 0.95, CreatorSystem)
	excluded.IntentPattern = IntentPattern{TypeTag: "diagnose-disk", PositiveKeywords: []string{"disk"}, NegativeKeywords: []string{"readonly"}}
	require.NoError(t, s.Save(excluded))

	matches := s.Match("diagnose-disk", []string{"disk"})
	require.Len(t, matches, 1)
	assert.Equal(t, active.ID, matches[0].ID)
}

func TestMatch_SortsByDescendingConfidence(t *testing.T) {
	s := newTestStore(t)

	low := New(NewRecipeID(), "case-1", 90, 0.3, CreatorSystem)
	low.IntentPattern = IntentPattern{TypeTag: "diagnose-disk"}
	require.NoError(t, s.Save(low))

	high := New(NewRecipeID(), "case-2", 90, 0.9, CreatorSystem)
	high.IntentPattern = IntentPattern{TypeTag: "diagnose-disk"}
	require.NoError(t, s.Save(high))

	matches := s.Match("diagnose-disk", nil)
	require.Len(t, matches, 2)
	assert.Equal(t, high.ID, matches[0].ID)
	assert.Equal(t, low.ID, matches[1].ID)
}

func TestArchiveAndRestore_MovesFileAndTogglesMatchability(t *testing.T) {
	s := newTestStore(t)
	id := NewRecipeID()
	r := New(id, "case-1", 90, 0.8, CreatorSystem)
	r.IntentPattern = IntentPattern{TypeTag: "diagnose-disk"}
	require.NoError(t, s.Save(r))

	require.NoError(t, s.Archive(id))
	archived, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusArchived, archived.Status)
	assert.False(t, archived.Matchable())
	assert.Empty(t, s.Match("diagnose-disk", nil))

	require.NoError(t, s.Restore(id))
	restored, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusDraft, restored.Status)
}

func TestRestore_RejectsNonArchivedRecipe(t *testing.T) {
	s := newTestStore(t)
	id := NewRecipeID()
	r := New(id, "case-1", 90, 0.8, CreatorSystem)
	require.NoError(t, s.Save(r))

	err := s.Restore(id)
	assert.Error(t, err)
}

func TestRecordOutcome_IncrementsCounters(t *testing.T) {
	s := newTestStore(t)
	id := NewRecipeID()
	require.NoError(t, s.Save(New(id, "case-1", 90, 0.8, CreatorSystem)))

	require.NoError(t, s.RecordOutcome(id, true))
	require.NoError(t, s.RecordOutcome(id, false))

	r, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, 1, r.Counters.Success)
	assert.Equal(t, 1, r.Counters.Failure)
}

func TestOpen_ReloadsPersistedRecipesAndRecipeIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recipes")
	s1, err := Open(dir)
	require.NoError(t, err)
	id := NewRecipeID()
	require.NoError(t, s1.Save(New(id, "case-1", 90, 0.8, CreatorSystem)))

	s2, err := Open(dir)
	require.NoError(t, err)
	r, ok := s2.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusActive, r.Status)

	indexData, err := os.ReadFile(filepath.Join(dir, "recipe_index.json"))
	require.NoError(t, err)
	assert.Contains(t, string(indexData), id)
}

func TestListIndex_ReflectsCurrentRecipeSet(t *testing.T) {
	s := newTestStore(t)
	id1 := NewRecipeID()
	id2 := NewRecipeID()
	require.NoError(t, s.Save(New(id1, "case-1", 90, 0.8, CreatorSystem)))
	require.NoError(t, s.Save(New(id2, "case-2", 10, 0.2, CreatorSystem)))

	entries := s.ListIndex()
	require.Len(t, entries, 2)
}

func TestWatcher_ReloadsOnExternalFileChange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recipes")
	s, err := Open(dir)
	require.NoError(t, err)

	w, err := NewWatcher(s)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer func() {
		cancel()
		w.Close()
	}()

	id := NewRecipeID()
	r := New(id, "case-1", 90, 0.8, CreatorSystem)
	require.NoError(t, s.Save(r))

	externalID := NewRecipeID()
	externalRecipe := New(externalID, "case-2", 90, 0.5, CreatorUser)
	data, err := json.MarshalIndent(externalRecipe, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, externalID+".json"), data, 0o600))

	require.Eventually(t, func() bool {
		_, ok := s.Get(externalID)
		return ok
	}, 2*time.Second, 50*time.Millisecond)
}
