package ipc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, allowedGID int64) (*Server, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "hostadvisord.sock")
	s := NewServer(socketPath, allowedGID)

	s.RegisterMethod("ping", ClassReadOnly, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return map[string]string{"pong": "ok"}, nil
	})
	s.RegisterMethod("boom", ClassReadOnly, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("simulated failure")
	})
	s.RegisterStreamMethod("tail", ClassReadOnly, func(ctx context.Context, params map[string]interface{}, send func(StreamChunk) error) StreamEnd {
		for i := 0; i < 3; i++ {
			if err := send(StreamChunk{ChunkType: ChunkStdout, Data: fmt.Sprintf("line %d", i)}); err != nil {
				return StreamEnd{Success: false, Message: err.Error()}
			}
		}
		return StreamEnd{Success: true, Message: "done"}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go s.ListenAndServe(ctx)
	t.Cleanup(cancel)

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	return s, socketPath
}

func TestServer_RespondsToRegisteredMethod(t *testing.T) {
	_, socketPath := startTestServer(t, -1)
	client := NewClient(socketPath, DefaultAPIVersion)

	resp, err := client.Call("ping", nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.Equal(t, DefaultAPIVersion, resp.APIVersion)
}

func TestServer_UnknownMethodReturnsErrorResponseNotClose(t *testing.T) {
	_, socketPath := startTestServer(t, -1)
	client := NewClient(socketPath, DefaultAPIVersion)

	resp, err := client.Call("no-such-method", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unknown_method", resp.Error.Code)
}

func TestServer_HandlerErrorSurfacesAsErrorResponse(t *testing.T) {
	_, socketPath := startTestServer(t, -1)
	client := NewClient(socketPath, DefaultAPIVersion)

	resp, err := client.Call("boom", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "simulated failure")
}

func TestServer_StreamingMethodSendsChunksThenEnd(t *testing.T) {
	_, socketPath := startTestServer(t, -1)
	client := NewClient(socketPath, DefaultAPIVersion)

	var chunks []StreamChunk
	end, err := client.CallStream("tail", nil, func(c StreamChunk) { chunks = append(chunks, c) })
	require.NoError(t, err)
	assert.True(t, end.Success)
	assert.Len(t, chunks, 3)
}

func TestServer_RejectsPeerNotInAllowedGroup(t *testing.T) {
	_, socketPath := startTestServer(t, int64(os.Getgid())+1)
	client := NewClient(socketPath, DefaultAPIVersion)

	resp, err := client.Call("ping", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestServer_AcceptsPeerInAllowedGroup(t *testing.T) {
	_, socketPath := startTestServer(t, int64(os.Getgid()))
	client := NewClient(socketPath, DefaultAPIVersion)

	resp, err := client.Call("ping", nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
}

func TestClient_VersionMismatchIsHardFailure(t *testing.T) {
	_, socketPath := startTestServer(t, -1)
	client := NewClient(socketPath, "2.0.0")

	_, err := client.Call("ping", nil)
	assert.Error(t, err)
}
