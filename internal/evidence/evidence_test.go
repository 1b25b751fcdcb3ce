package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_IdsAreSequentialAndNeverReused(t *testing.T) {
	c := NewCollector()

	id1 := c.Add(ToolResult{ToolName: "disk_usage", Success: true})
	id2 := c.Add(ToolResult{ToolName: "mem_usage", Success: true})
	id3 := c.Add(ToolResult{ToolName: "uptime", Success: true})

	assert.Equal(t, "E1", id1)
	assert.Equal(t, "E2", id2)
	assert.Equal(t, "E3", id3)
	assert.Equal(t, 3, c.Len())
}

func TestCollector_FormatCitations(t *testing.T) {
	assert.Equal(t, "", FormatCitations(nil))
	assert.Equal(t, "", FormatCitations([]string{}))
	assert.Equal(t, "[E1, E2]", FormatCitations([]string{"E1", "E2"}))
}

func TestCollector_Get(t *testing.T) {
	c := NewCollector()
	id := c.Add(ToolResult{ToolName: "journal_errors"})

	got, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, "journal_errors", got.ToolName)

	_, ok = c.Get("E99")
	assert.False(t, ok)
}

func TestCollector_Push_DoesNotAdvanceCounterAgain(t *testing.T) {
	c := NewCollector()
	id := c.NextID()
	c.Push(ToolResult{ToolName: "recent_installs", EvidenceID: id, Success: true})

	next := c.NextID()
	assert.Equal(t, "E2", next)
	assert.Equal(t, 1, c.Len())
}

func TestCollector_FailedInvocationStillProducesRecord(t *testing.T) {
	c := NewCollector()
	id := c.Add(ToolResult{ToolName: "broken_tool", Success: false, Error: "boom"})

	r, ok := c.Get(id)
	require.True(t, ok)
	assert.False(t, r.Success)
	assert.Equal(t, "boom", r.Error)
}
