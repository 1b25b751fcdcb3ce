// Package mutation implements the preview/apply/rollback safety core
// described in spec §4.3: a rollback bundle is written and fsynced before
// any target is touched, and every apply call is serialized per case id
// so concurrent requests for the same case can never interleave.
package mutation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
)

// BundleStore manages rollback bundle directories, one per case id, under
// a root directory (config.Layout.RollbackDir). Each bundle directory is
// named after its case id so rollback(case_id) can locate it directly;
// the ULID is used only for the backup file name within the bundle, to
// keep multiple backups within one case sortable by creation order.
type BundleStore struct {
	root string
}

// NewBundleStore roots bundles under root, which must already exist with
// restrictive permissions (config.EnsureLayout creates it 0700).
func NewBundleStore(root string) *BundleStore {
	return &BundleStore{root: root}
}

// Dir returns the bundle directory for caseID, creating it if absent.
func (b *BundleStore) Dir(caseID string) (string, error) {
	dir := filepath.Join(b.root, caseID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create rollback bundle dir: %w", err)
	}
	return dir, nil
}

// WriteBackup copies data into a new, fsynced file inside caseID's bundle
// directory and returns its path. Called before any mutation touches the
// original target, satisfying the rollback-precedes-change invariant.
func (b *BundleStore) WriteBackup(caseID string, data []byte) (string, error) {
	dir, err := b.Dir(caseID)
	if err != nil {
		return "", err
	}
	name := ulid.Make().String()
	path := filepath.Join(dir, name+".bak")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write backup file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("fsync backup file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}

	dirHandle, err := os.Open(dir)
	if err == nil {
		_ = dirHandle.Sync()
		dirHandle.Close()
	}

	return path, nil
}

// WriteMeta marshals v as JSON and fsyncs it into caseID's bundle
// directory under name, so a later ReadMeta(caseID, name, ...) can
// resolve apply-time state without the caller resupplying anything.
// Called before the target is touched, same as WriteBackup.
func (b *BundleStore) WriteMeta(caseID, name string, v interface{}) error {
	dir, err := b.Dir(caseID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal bundle metadata %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create bundle metadata %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write bundle metadata %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync bundle metadata %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close bundle metadata %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize bundle metadata %s: %w", name, err)
	}

	dirHandle, err := os.Open(dir)
	if err == nil {
		_ = dirHandle.Sync()
		dirHandle.Close()
	}
	return nil
}

// ReadMeta reads back a value previously written by WriteMeta, keyed only
// by caseID and name, so rollback can resolve apply-time state from the
// bundle alone.
func (b *BundleStore) ReadMeta(caseID, name string, v interface{}) error {
	path := filepath.Join(b.root, caseID, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bundle metadata %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode bundle metadata %s: %w", name, err)
	}
	return nil
}

// CaseLocks serializes mutation apply/rollback calls per case id, so two
// concurrent requests touching the same case can never race (spec §5).
// A sync.Map of lazily-created mutexes mirrors the teacher's per-resource
// locking idiom in internal/agentexec.
type CaseLocks struct {
	locks sync.Map // case id -> *sync.Mutex
}

// Lock blocks until the mutex for caseID is acquired and returns an
// unlock function for use with defer.
func (c *CaseLocks) Lock(caseID string) func() {
	muAny, _ := c.locks.LoadOrStore(caseID, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
