//go:build linux

package ipc

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials holds the credentials of the process on the other end
// of a Unix domain socket connection, extracted via SO_PEERCRED.
type peerCredentials struct {
	uid uint32
	gid uint32
	pid uint32
}

func extractPeerCredentials(conn net.Conn) (*peerCredentials, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("ipc: not a unix socket connection")
	}

	file, err := unixConn.File()
	if err != nil {
		return nil, fmt.Errorf("ipc: get connection file descriptor: %w", err)
	}
	defer file.Close()

	cred, err := unix.GetsockoptUcred(int(file.Fd()), unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return nil, fmt.Errorf("ipc: get peer credentials: %w", err)
	}

	return &peerCredentials{uid: cred.Uid, gid: cred.Gid, pid: uint32(cred.Pid)}, nil
}
