// Package evidence implements the append-only evidence collector described
// in spec §4.2: every tool invocation produces a ToolResult, stamped with a
// stable, monotonically-increasing citation id of the form "E<n>".
package evidence

import (
	"fmt"
	"sync"
	"time"
)

// ToolResult is the output of one tool invocation (spec §3, "Evidence
// record").
type ToolResult struct {
	ToolName     string                 `json:"tool_name"`
	EvidenceID   string                 `json:"evidence_id"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	HumanSummary string                 `json:"human_summary"`
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Collector is an ordered, append-only list of ToolResults plus a
// monotonic counter. One Collector is created per case or per ad-hoc
// query and discarded once the owning case is written out.
type Collector struct {
	mu      sync.Mutex
	results []ToolResult
	counter int
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// NextID allocates and returns the next evidence id ("E1", "E2", ...).
// Ids are never reused within one Collector.
func (c *Collector) NextID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return fmt.Sprintf("E%d", c.counter)
}

// Add assigns the next id to result, stores it, and returns the id.
func (c *Collector) Add(result ToolResult) string {
	id := c.NextID()
	result.EvidenceID = id
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.results = append(c.results, result)
	c.mu.Unlock()
	return id
}

// Push stores a result that already carries an id, pre-allocated by the
// plan executor. It does not advance the counter a second time.
func (c *Collector) Push(result ToolResult) {
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.results = append(c.results, result)
	c.mu.Unlock()
}

// Get returns the result for id, if any.
func (c *Collector) Get(id string) (ToolResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.results {
		if r.EvidenceID == id {
			return r, true
		}
	}
	return ToolResult{}, false
}

// All returns a copy of the results in insertion order.
func (c *Collector) All() []ToolResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ToolResult, len(c.results))
	copy(out, c.results)
	return out
}

// Len reports how many results have been stored.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// FormatCitations renders a citation list like "[E1, E2]", or "" for an
// empty list.
func FormatCitations(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	out := "["
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out + "]"
}
