// Package fileedit implements the file-edit mutation class from spec
// §4.3: append_line and set_key_value edits, scoped to an allow-listed
// set of paths, with preview/apply/rollback and before/after hashing.
// The preview/apply match-by-content idiom and rollback-bundle shape are
// adapted from the teacher's approval.Store (internal/ai/approval/store.go).
package fileedit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hostadvisord/hostadvisord/internal/mutation"
)

// Mode selects the edit performed by apply.
type Mode string

const (
	AppendLine  Mode = "append_line"
	SetKeyValue Mode = "set_key_value"
)

// Params carries the mode-specific arguments. Separator defaults to "="
// when empty, per spec §4.3.
type Params struct {
	Line      string
	Key       string
	Value     string
	Separator string
}

func (p Params) separator() string {
	if p.Separator == "" {
		return "="
	}
	return p.Separator
}

// Preview is the result of a preview() call: the policy outcome, a diff,
// and whether applying it would actually change the file.
type Preview struct {
	Path          string
	Mode          Mode
	PolicyOK      bool
	PolicyError   string
	CurrentExists bool
	CurrentSize   int64
	Diff          string
	WouldChange   bool
}

// previewKey identifies a preview by its (path, mode, params) content, so
// apply can reject calls that don't match any preview the engine has
// actually produced (spec §4.3 invariant 1).
func previewKey(path string, mode Mode, params Params) string {
	return strings.Join([]string{path, string(mode), params.Line, params.Key, params.Value, params.separator()}, "\x00")
}

// ApplyResult records what apply actually did, including the hashes
// needed to make rollback verifiable.
type ApplyResult struct {
	CaseID      string
	Path        string
	BackupPath  string
	BeforeHash  string
	AfterHash   string
	BytesBefore int
	BytesAfter  int
}

// Engine runs preview/apply/rollback for the file-edit mutation class.
type Engine struct {
	policy  mutation.ScopePolicy
	bundles *mutation.BundleStore

	mu       sync.Mutex
	previews map[string]Preview // previewKey -> last preview seen
}

// NewEngine builds a file-edit engine scoped by policy, with rollback
// bundles rooted at bundles.
func NewEngine(policy mutation.ScopePolicy, bundles *mutation.BundleStore) *Engine {
	return &Engine{policy: policy, bundles: bundles, previews: make(map[string]Preview)}
}

// SetPolicy swaps the scope policy enforced by future Preview/Apply calls,
// used by the policy-reload IPC method to pick up an operator's edited
// allow-list without restarting the daemon.
func (e *Engine) SetPolicy(policy mutation.ScopePolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = policy
}

// Policy returns the currently enforced scope policy.
func (e *Engine) Policy() mutation.ScopePolicy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// Preview computes (and records) the preview for path/mode/params without
// touching the file.
func (e *Engine) Preview(path string, mode Mode, params Params) Preview {
	p := Preview{Path: path, Mode: mode}

	if err := e.Policy().Check(path); err != nil {
		p.PolicyError = err.Error()
		e.record(path, mode, params, p)
		return p
	}
	p.PolicyOK = true

	current, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.PolicyError = fmt.Sprintf("read target: %v", err)
			e.record(path, mode, params, p)
			return p
		}
		current = nil
	} else {
		p.CurrentExists = true
		p.CurrentSize = int64(len(current))
	}

	next, changed := applyEdit(current, mode, params)
	p.WouldChange = changed
	p.Diff = renderDiff(current, next)

	e.record(path, mode, params, p)
	return p
}

func (e *Engine) record(path string, mode Mode, params Params, p Preview) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previews[previewKey(path, mode, params)] = p
}

// Apply applies the edit previously previewed for (path, mode, params)
// under caseID. It rejects the call if no matching preview exists
// (invariant 1), writes a backup of the original bytes before writing
// the new bytes (invariant 3), and records before/after hashes.
func (e *Engine) Apply(caseID, path string, mode Mode, params Params) (ApplyResult, error) {
	e.mu.Lock()
	preview, ok := e.previews[previewKey(path, mode, params)]
	e.mu.Unlock()
	if !ok {
		return ApplyResult{}, fmt.Errorf("no matching preview for this path/mode/params; call preview first")
	}
	if !preview.PolicyOK {
		return ApplyResult{}, fmt.Errorf("preview rejected by scope policy: %s", preview.PolicyError)
	}

	current, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return ApplyResult{}, fmt.Errorf("read target: %w", err)
	}

	backupPath, err := e.bundles.WriteBackup(caseID, current)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("write rollback bundle: %w", err)
	}

	next, _ := applyEdit(current, mode, params)

	mask := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mask = info.Mode().Perm()
	}
	if err := os.WriteFile(path, next, mask); err != nil {
		return ApplyResult{}, fmt.Errorf("write target: %w", err)
	}

	result := ApplyResult{
		CaseID:      caseID,
		Path:        path,
		BackupPath:  backupPath,
		BeforeHash:  hashOf(current),
		AfterHash:   hashOf(next),
		BytesBefore: len(current),
		BytesAfter:  len(next),
	}
	if err := e.bundles.WriteMeta(caseID, metaFile, result); err != nil {
		return ApplyResult{}, fmt.Errorf("persist rollback metadata: %w", err)
	}
	return result, nil
}

// metaFile is the bundle-relative name under which Apply persists the
// ApplyResult that Rollback later reads back by case id alone.
const metaFile = "fileedit.json"

// Rollback restores the file edited under caseID, reading path, backup
// location, and expected before-hash back from the case's rollback
// bundle rather than trusting caller-supplied values (spec §4.3: rollback
// reads only from the bundle). A second call against an already-restored
// file is a no-op (invariant 4): the hash check passes trivially because
// the file already matches.
func (e *Engine) Rollback(caseID string) error {
	var result ApplyResult
	if err := e.bundles.ReadMeta(caseID, metaFile, &result); err != nil {
		return fmt.Errorf("resolve rollback state for case %s: %w", caseID, err)
	}

	backup, err := os.ReadFile(result.BackupPath)
	if err != nil {
		return fmt.Errorf("rollback bundle missing: %w", err)
	}

	current, err := os.ReadFile(result.Path)
	if err == nil && hashOf(current) == result.BeforeHash {
		return nil
	}

	mask := os.FileMode(0o644)
	if info, statErr := os.Stat(result.Path); statErr == nil {
		mask = info.Mode().Perm()
	}
	if err := os.WriteFile(result.Path, backup, mask); err != nil {
		return fmt.Errorf("restore target: %w", err)
	}

	restored, err := os.ReadFile(result.Path)
	if err != nil {
		return fmt.Errorf("verify restored target: %w", err)
	}
	if hashOf(restored) != result.BeforeHash {
		return fmt.Errorf("rollback verification failed: restored hash does not match recorded before-hash")
	}
	return nil
}

func applyEdit(current []byte, mode Mode, params Params) (next []byte, changed bool) {
	switch mode {
	case AppendLine:
		line := params.Line
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if len(current) > 0 && !bytes.HasSuffix(current, []byte("\n")) {
			current = append(current, '\n')
		}
		next = append(append([]byte{}, current...), []byte(line)...)
		return next, true

	case SetKeyValue:
		return setKeyValue(current, params.Key, params.Value, params.separator())

	default:
		return current, false
	}
}

func setKeyValue(current []byte, key, value, sep string) ([]byte, bool) {
	lines := strings.Split(string(current), "\n")
	prefix := key + sep
	found := false
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			newLine := key + sep + value
			if lines[i] == newLine {
				return current, false
			}
			lines[i] = newLine
			found = true
			break
		}
	}
	if !found {
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, key+sep+value, "")
	}
	return []byte(strings.Join(lines, "\n")), true
}

func renderDiff(before, after []byte) string {
	if bytes.Equal(before, after) {
		return ""
	}
	return fmt.Sprintf("--- before (%d bytes)\n+++ after (%d bytes)\n", len(before), len(after))
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
