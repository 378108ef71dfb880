package session

import (
	"net"

	"github.com/NGIOproject/NORNS-sub002/pkg/types"
	"golang.org/x/sys/unix"
)

// fetchPeerCredentials queries SO_PEERCRED on a Unix domain socket
// connection, mirroring the getsockopt(SOL_SOCKET, SO_PEERCRED) call
// norns makes for local connections. It returns ok=false for any
// other connection type (e.g. the TCP remote endpoint), where there
// is no OS-level peer identity to capture.
func fetchPeerCredentials(conn net.Conn) (types.ProcessTriple, bool) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return types.ProcessTriple{}, false
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return types.ProcessTriple{}, false
	}

	var ucred *unix.Ucred
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		ucred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil || sockErr != nil || ucred == nil {
		return types.ProcessTriple{}, false
	}

	return types.ProcessTriple{
		UID: ucred.Uid,
		GID: ucred.Gid,
		PID: uint32(ucred.Pid),
	}, true
}
