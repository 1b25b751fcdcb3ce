package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckMajorVersion_AcceptsMatchingMajors(t *testing.T) {
	assert.NoError(t, CheckMajorVersion("1.0.0", "1.2.3"))
}

func TestCheckMajorVersion_RejectsMismatchedMajors(t *testing.T) {
	err := CheckMajorVersion("2.0.0", "1.9.9")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "2.0.0")
	assert.Contains(t, err.Error(), "1.9.9")
}

func TestCheckMajorVersion_RejectsMalformedVersions(t *testing.T) {
	assert.Error(t, CheckMajorVersion("not-a-version", "1.0.0"))
	assert.Error(t, CheckMajorVersion("1.0.0", "not-a-version"))
}
