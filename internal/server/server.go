// Package server is the TCP transport for the text protocol (spec §6): one
// goroutine per connection, each running its own read/dispatch/write loop
// against a shared *engine.Engine.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/workstalk/workstalk/internal/engine"
	"github.com/workstalk/workstalk/internal/protocol"
	logpkg "github.com/workstalk/workstalk/pkg/log"
)

// Server accepts TCP connections and dispatches their commands to an
// Engine. ListenAndServe/Close follow the same shape as the teacher's gRPC
// and HTTP servers: bind in ListenAndServe, block until ctx is done or the
// listener errors, and let Close release the socket independently.
type Server struct {
	eng     *engine.Engine
	logger  logpkg.Logger
	maxBody int

	mu  sync.Mutex
	lis net.Listener
	wg  sync.WaitGroup
}

// New builds a Server over eng. maxBody bounds accepted job body sizes
// (spec §4.5, default 65535 via config.Config.MaxJobSize).
func New(eng *engine.Engine, logger logpkg.Logger, maxBody int) *Server {
	if logger == nil {
		logger = logpkg.NewTestLogger()
	}
	return &Server{eng: eng, logger: logger.WithComponent("server"), maxBody: maxBody}
}

// ListenAndServe binds addr and serves connections until ctx is canceled or
// the listener itself fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()

	s.logger.Info("listening", logpkg.Str("addr", addr))

	errCh := make(chan error, 1)
	go func() { errCh <- s.acceptLoop(ctx, l) }()

	select {
	case <-ctx.Done():
		s.Close()
		s.wg.Wait()
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the listener's bound address, or nil if ListenAndServe
// hasn't bound one yet. Mainly useful in tests that bind to port 0 and need
// to discover the actual port.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Close stops accepting new connections. In-flight connections are left to
// finish on their own; a caller that wants to wait for them should do so
// via ListenAndServe's return, which already calls wg.Wait().
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

type cmdResult struct {
	cmd *protocol.Command
	err error
}

// handleConn drives one connection's read/dispatch/write loop. A dedicated
// reader goroutine keeps pulling commands off the wire and hands them to
// this goroutine over cmdCh; the moment it sees a read error (including the
// client closing the socket), it cancels connCtx immediately — which is
// what lets a blocking Reserve unblock the instant the connection goes
// away, per spec §5 "Cancellation", rather than only after the next command
// line arrives.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connID := s.eng.RegisterConnection()
	defer s.eng.CloseConnection(connID)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := s.logger.With(logpkg.Uint64("conn_id", connID), logpkg.Str("conn_uuid", uuid.NewString()))
	logger.Debug("connection opened", logpkg.Str("remote", conn.RemoteAddr().String()))
	defer logger.Debug("connection closed")

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)

	cmdCh := make(chan cmdResult)
	go func() {
		for {
			cmd, err := protocol.ReadCommand(br, s.maxBody)
			if err != nil {
				cancel()
				select {
				case cmdCh <- cmdResult{err: err}:
				case <-connCtx.Done():
				}
				return
			}
			select {
			case cmdCh <- cmdResult{cmd: cmd}:
			case <-connCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case res := <-cmdCh:
			if res.err != nil {
				var ce *protocol.ClientError
				if errors.As(res.err, &ce) {
					_ = protocol.WriteClientError(bw, ce)
				} else if !errors.Is(res.err, io.EOF) {
					logger.Debug("read error", logpkg.Err(res.err))
				}
				return
			}
			if s.dispatch(connCtx, connID, res.cmd, bw, logger) {
				return
			}
		}
	}
}
