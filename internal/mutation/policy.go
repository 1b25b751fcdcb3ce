package mutation

import (
	"fmt"
	"path/filepath"
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
)

// ScopePolicy decides whether a target path may be written by the
// file-edit mutation class. The home directory is always in scope;
// ExtraAllow is an operator-configured list of additional wildcard
// patterns (e.g. "/etc/hostadvisord/allow/*") checked with the same
// matcher the teacher uses for tag/name filters. The daemon enforces
// this even when running as root (spec §4.3 invariant 5).
type ScopePolicy struct {
	Home       string
	ExtraAllow []string
}

// Check reports whether path is writable under the policy. path must be
// absolute and is not otherwise normalized beyond Clean, so callers
// should resolve symlinks first if that matters to them.
func (p ScopePolicy) Check(path string) error {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		return fmt.Errorf("path %q is not absolute", path)
	}

	homeClean := filepath.Clean(p.Home)
	if clean == homeClean || strings.HasPrefix(clean, homeClean+string(filepath.Separator)) {
		return nil
	}

	for _, pattern := range p.ExtraAllow {
		if wildcard.Match(pattern, clean) {
			return nil
		}
	}

	return fmt.Errorf("path %q is outside the allowed scope (home %q)", path, p.Home)
}
