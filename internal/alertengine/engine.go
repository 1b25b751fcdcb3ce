package alertengine

import (
	"strings"
	"time"

	"github.com/hostadvisord/hostadvisord/internal/historian"
)

// DefaultCooldown is the default gap enforced between two surfacings of the
// same fingerprint, per the spec's Open Question resolution favoring a
// conservative default over re-paging on every probe tick.
const DefaultCooldown = 15 * time.Minute

// Engine evaluates proto-alerts against persisted issue-tracking state and
// decides which ones to actually surface.
type Engine struct {
	store    *historian.Store
	cooldown time.Duration
}

// NewEngine creates an Engine persisting issue state into store. A zero
// cooldown falls back to DefaultCooldown.
func NewEngine(store *historian.Store, cooldown time.Duration) *Engine {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Engine{store: store, cooldown: cooldown}
}

// Evaluate upserts every proto-alert into issue tracking (preserving
// first-seen, bumping last-seen) and returns the subset that clears the
// surfacing gates (not suppressed, not snoozed, cooldown elapsed), marking
// each as shown. Proto-alerts absent from this round for a fingerprint that
// was previously active are resolved by calling ResolveMissing separately —
// Evaluate only ever adds or refreshes.
func (e *Engine) Evaluate(now time.Time, protos []ProtoAlert) ([]Alert, error) {
	var surfaced []Alert

	for _, p := range protos {
		fp := Fingerprint(p.ProbeID, p.PrincipalParam)
		evidenceIDs := strings.Join(p.EvidenceIDs, ",")

		if err := e.store.UpsertIssue(fp, p.ProbeID, string(p.Severity), p.Title, p.Description, evidenceIDs, now); err != nil {
			return nil, err
		}

		issue, ok, err := e.store.GetIssue(fp)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		if !issue.ShouldSurface(now, e.cooldown) {
			continue
		}

		if err := e.store.MarkShown(fp, now); err != nil {
			return nil, err
		}

		surfaced = append(surfaced, Alert{
			Fingerprint:  fp,
			Severity:     Severity(issue.Severity),
			Title:        issue.Title,
			Description:  issue.Description,
			EvidenceIDs:  splitEvidenceIDs(issue.EvidenceIDs),
			FirstSeen:    issue.FirstSeen,
			LastSeen:     issue.LastSeen,
			TimesShown:   issue.TimesShown + 1,
			TimesIgnored: issue.TimesIgnored,
			Status:       Status(issue.Status),
		})
	}

	return surfaced, nil
}

// ResolveMissing marks resolved any fingerprint in previouslyActive that
// does not appear in currentFingerprints, implementing "a resolved alert
// (probe no longer emits) is marked resolved; its record is retained for
// audit."
func (e *Engine) ResolveMissing(previouslyActive, currentFingerprints []string) error {
	current := make(map[string]bool, len(currentFingerprints))
	for _, fp := range currentFingerprints {
		current[fp] = true
	}
	for _, fp := range previouslyActive {
		if current[fp] {
			continue
		}
		if err := e.store.MarkResolved(fp); err != nil {
			return err
		}
	}
	return nil
}

// Snooze delegates to the historian store.
func (e *Engine) Snooze(fingerprint string, until time.Time) error {
	return e.store.Snooze(fingerprint, until)
}

// Suppress delegates to the historian store.
func (e *Engine) Suppress(fingerprint string) error {
	return e.store.Suppress(fingerprint)
}

// Unsuppress delegates to the historian store.
func (e *Engine) Unsuppress(fingerprint string) error {
	return e.store.Unsuppress(fingerprint)
}

// Ignore records that the operator dismissed a surfaced alert without
// acting on it.
func (e *Engine) Ignore(fingerprint string) error {
	return e.store.MarkIgnored(fingerprint)
}

func splitEvidenceIDs(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
