// Package alertengine turns telemetry, package history, service state, and
// log signatures into deduplicated, snoozeable issues with suggested
// fixes (spec §4.6). Probes are pure functions over current state; the
// Engine owns fingerprinting, deduplication, and the surfacing gates
// (suppressed / snoozed / cooldown), all persisted through
// internal/historian's issue_tracking and issue_decisions tables.
package alertengine

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Severity is the alert severity scale from spec §3.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Status mirrors an alert's current lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSnoozed   Status = "snoozed"
	StatusSuppressed Status = "suppressed"
	StatusResolved  Status = "resolved"
)

// ProtoAlert is what a probe emits before deduplication: a candidate issue
// identified by probe id plus a principal parameter (mount path, unit
// name, sensor name — whatever the probe's fingerprint salt is).
type ProtoAlert struct {
	ProbeID        string
	PrincipalParam string
	Severity       Severity
	Title          string
	Description    string
	EvidenceIDs    []string
}

// Alert is a surfaced, deduplicated issue: a proto-alert after it has
// passed the dedup/cooldown gates and is ready to show the operator.
type Alert struct {
	Fingerprint  string
	Severity     Severity
	Title        string
	Description  string
	EvidenceIDs  []string
	FirstSeen    time.Time
	LastSeen     time.Time
	TimesShown   int
	TimesIgnored int
	Status       Status
}

// Fingerprint computes the stable dedup key for a proto-alert: a SHA-256
// hash of the probe id and its principal parameter. Two sightings of the
// same underlying condition (same mount, same unit, same sensor) always
// hash to the same fingerprint regardless of severity or wording drift in
// the title/description.
func Fingerprint(probeID, principalParam string) string {
	sum := sha256.Sum256([]byte(probeID + "\x00" + principalParam))
	return hex.EncodeToString(sum[:])
}
