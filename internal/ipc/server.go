package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HandlerFunc answers one non-streamed request.
type HandlerFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// StreamHandlerFunc answers one streamed request, sending zero or more
// chunks via send before returning the terminal StreamEnd.
type StreamHandlerFunc func(ctx context.Context, params map[string]interface{}, send func(StreamChunk) error) StreamEnd

type methodEntry struct {
	class   MethodClass
	handler HandlerFunc
	stream  StreamHandlerFunc
}

// Server accepts connections on a Unix domain socket and dispatches
// newline-delimited JSON requests to registered method handlers.
type Server struct {
	mu         sync.RWMutex
	socketPath string
	apiVersion string
	allowedGID int64 // -1 means no group restriction (any peer accepted)
	methods    map[string]methodEntry

	listener net.Listener

	readTimeout time.Duration
}

// NewServer creates a Server listening at socketPath. allowedGID, when
// >= 0, restricts connections to peers whose primary group matches (the
// spec's "group-readable and -writable for a dedicated group
// membership"); pass -1 to accept any peer the filesystem permissions
// let through.
func NewServer(socketPath string, allowedGID int64) *Server {
	return &Server{
		socketPath:  socketPath,
		apiVersion:  DefaultAPIVersion,
		allowedGID:  allowedGID,
		methods:     make(map[string]methodEntry),
		readTimeout: 30 * time.Second,
	}
}

// RegisterMethod registers a non-streamed method handler.
func (s *Server) RegisterMethod(name string, class MethodClass, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[name] = methodEntry{class: class, handler: h}
}

// RegisterStreamMethod registers a streamed method handler.
func (s *Server) RegisterStreamMethod(name string, class MethodClass, h StreamHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[name] = methodEntry{class: class, stream: h}
}

// ListenAndServe creates the socket, fixes its permissions, and serves
// connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("ipc: remove stale socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("ipc: create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0o660); err != nil {
		log.Warn().Err(err).Str("socket", s.socketPath).Msg("failed to set socket permissions")
	}

	go func() {
		<-ctx.Done()
		listener.Close()
		os.Remove(s.socketPath)
	}()

	log.Info().Str("socket", s.socketPath).Msg("ipc socket ready")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Error().Err(err).Msg("ipc accept failed")
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		log.Warn().Err(err).Msg("failed to set ipc read deadline")
	}

	if s.allowedGID >= 0 {
		cred, err := extractPeerCredentials(conn)
		if err != nil {
			log.Warn().Err(err).Msg("ipc peer credentials unavailable")
			s.writeError(conn, 0, &ErrorPayload{Code: "unauthorized", Message: "peer credentials unavailable"})
			return
		}
		if uint32(s.allowedGID) != cred.gid {
			log.Warn().Uint32("gid", cred.gid).Msg("ipc connection rejected: peer not in allowed group")
			s.writeError(conn, 0, &ErrorPayload{Code: "unauthorized", Message: "peer is not a member of the required group"})
			return
		}
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeError(conn, 0, &ErrorPayload{Code: "malformed_request", Message: err.Error()})
		return
	}

	if req.APIVersion != "" {
		if err := CheckMajorVersion(s.apiVersion, req.APIVersion); err != nil {
			s.writeError(conn, req.ID, &ErrorPayload{Code: "version_mismatch", Message: err.Error()})
			return
		}
	}

	s.mu.RLock()
	entry, ok := s.methods[req.Method]
	s.mu.RUnlock()
	if !ok {
		s.writeError(conn, req.ID, unknownMethodError(req.Method))
		return
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if entry.stream != nil {
		encoder := json.NewEncoder(conn)
		send := func(chunk StreamChunk) error {
			chunk.APIVersion = s.apiVersion
			return encoder.Encode(chunk)
		}
		end := entry.stream(reqCtx, req.Params, send)
		end.APIVersion = s.apiVersion
		_ = encoder.Encode(end)
		return
	}

	result, err := entry.handler(reqCtx, req.Params)
	if err != nil {
		s.writeError(conn, req.ID, &ErrorPayload{Code: "handler_error", Message: err.Error()})
		return
	}
	s.writeResult(conn, req.ID, result)
}

func (s *Server) writeResult(conn net.Conn, id uint64, result interface{}) {
	resp := Response{ID: id, APIVersion: s.apiVersion, Result: result}
	_ = json.NewEncoder(conn).Encode(resp)
}

func (s *Server) writeError(conn net.Conn, id uint64, payload *ErrorPayload) {
	resp := Response{ID: id, APIVersion: s.apiVersion, Error: payload}
	_ = json.NewEncoder(conn).Encode(resp)
}

// Close stops the listener if it is running.
func (s *Server) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
