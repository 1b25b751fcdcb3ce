package ipc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CallFailsWithStructuredDiagnosticWhenSocketMissing(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "nonexistent.sock")
	client := NewClient(socketPath, DefaultAPIVersion)

	_, err := client.Call("ping", nil)
	require.Error(t, err)

	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Contains(t, connErr.Error(), socketPath)
	assert.Contains(t, connErr.Error(), "suggested remediations")
}
