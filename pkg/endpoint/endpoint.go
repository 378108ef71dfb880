package endpoint

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/NGIOproject/NORNS-sub002/pkg/log"
	"github.com/NGIOproject/NORNS-sub002/pkg/session"
	"github.com/rs/zerolog"
)

// localSocketMode is the permission bits for the general client socket:
// world-writable since any local process may submit requests (the
// daemon authorizes by job/process registration, not socket mode).
const localSocketMode = 0o666

// controlSocketMode restricts the control socket to its owner, per
// spec.md §6's administrative-command channel.
const controlSocketMode = 0o600

// Config names the sockets a Set should listen on. RemotePort of zero
// disables the TCP listener (no cross-node transfers accepted).
type Config struct {
	GlobalSocket  string
	ControlSocket string
	BindAddress   string
	RemotePort    uint16
	Dispatcher    session.Dispatcher
}

type namedListener struct {
	name       string
	listener   net.Listener
	socketPath string // non-empty for Unix sockets, so Close can unlink
}

// Set owns every listener nornsd accepts connections on and runs the
// same session pipeline over each of them.
type Set struct {
	cfg       Config
	logger    zerolog.Logger
	listeners []namedListener

	wg sync.WaitGroup
}

// New opens every configured listener. On partial failure, listeners
// already opened are closed before returning the error.
func New(cfg Config) (*Set, error) {
	s := &Set{cfg: cfg, logger: log.WithComponent("endpoint")}

	opened := func(name string, l net.Listener, path string) {
		s.listeners = append(s.listeners, namedListener{name: name, listener: l, socketPath: path})
	}

	closeAll := func() {
		for _, nl := range s.listeners {
			_ = nl.listener.Close()
		}
	}

	if cfg.GlobalSocket != "" {
		l, err := listenUnix(cfg.GlobalSocket, localSocketMode)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("endpoint: global socket: %w", err)
		}
		opened("local", l, cfg.GlobalSocket)
	}

	if cfg.ControlSocket != "" {
		l, err := listenUnix(cfg.ControlSocket, controlSocketMode)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("endpoint: control socket: %w", err)
		}
		opened("control", l, cfg.ControlSocket)
	}

	if cfg.RemotePort != 0 {
		addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.RemotePort)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("endpoint: remote listener: %w", err)
		}
		opened("remote", l, "")
	}

	return s, nil
}

// listenUnix removes a stale socket file left by an unclean shutdown,
// binds the listener, and applies mode (bind(2) always creates the
// file world-writable-masked-by-umask, so the chmod is required).
func listenUnix(path string, mode os.FileMode) (net.Listener, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, mode); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return l, nil
}

func removeStaleSocket(path string) error {
	_, err := net.Dial("unix", path)
	if err == nil {
		return fmt.Errorf("socket %s is already in use by a running daemon", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	return nil
}

// Names returns the name of every listener actually opened (a subset
// of "local", "control", "remote" depending on which sockets cfg
// configured), for callers that report per-listener health.
func (s *Set) Names() []string {
	names := make([]string, len(s.listeners))
	for i, nl := range s.listeners {
		names[i] = nl.name
	}
	return names
}

// Serve runs an accept loop per listener until ctx is cancelled or
// Shutdown closes the listeners. It blocks until every accept loop has
// returned.
func (s *Set) Serve(ctx context.Context) {
	for _, nl := range s.listeners {
		s.wg.Add(1)
		go s.acceptLoop(ctx, nl)
	}
	s.wg.Wait()
}

func (s *Set) acceptLoop(ctx context.Context, nl namedListener) {
	defer s.wg.Done()
	logger := s.logger.With().Str("listener", nl.name).Logger()
	logger.Info().Str("addr", nl.listener.Addr().String()).Msg("listening")

	var sessions sync.WaitGroup
	defer sessions.Wait()

	for {
		conn, err := nl.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Debug().Err(err).Msg("accept failed")
			return
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			sess := session.New(conn, s.cfg.Dispatcher)
			sess.Serve(ctx)
		}()
	}
}

// Shutdown closes every listener, which unblocks Serve's accept loops,
// and unlinks any Unix socket files. It does not forcibly close
// in-flight connections; callers that need a hard deadline should
// cancel the context passed to Serve as well.
func (s *Set) Shutdown(ctx context.Context) error {
	for _, nl := range s.listeners {
		_ = nl.listener.Close()
		if nl.socketPath != "" {
			_ = os.Remove(nl.socketPath)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("endpoint: shutdown timed out waiting for accept loops")
	}
}
