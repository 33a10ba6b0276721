package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"babel/internal/logging"
	"babel/internal/protocol"
)

// ServeFunc attaches one worker port until it closes. daemon.Daemon.Serve and
// worker.Worker.Serve both fit.
type ServeFunc func(ctx context.Context, port protocol.WorkerPort, peer string) error

// StreamServer accepts translation connections on a Unix socket and hands each
// one to serve as a protocol.StreamConn.
type StreamServer struct {
	path     string
	serve    ServeFunc
	logger   *slog.Logger
	listener net.Listener
	seq      atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamServer listens on path.
func NewStreamServer(ctx context.Context, path string, serve ServeFunc, logger *slog.Logger) (*StreamServer, error) {
	if serve == nil {
		return nil, fmt.Errorf("stream server requires a serve function")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	listener, err := listenUnix(path)
	if err != nil {
		return nil, err
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &StreamServer{
		path:     path,
		serve:    serve,
		logger:   logger.With(logging.String(logging.FieldComponent, "ipc")),
		listener: listener,
		ctx:      serverCtx,
		cancel:   cancel,
	}, nil
}

// Serve starts accepting connections until the server is closed.
func (s *StreamServer) Serve() {
	s.logger.Debug("translation socket listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || isClosedErr(err) {
					return
				}
				logAcceptFailure(s.logger, err)
				continue
			}
			peer := fmt.Sprintf("unix#%d", s.seq.Add(1))
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.handle(c, peer)
			}(conn)
		}
	}()
}

func (s *StreamServer) handle(c net.Conn, peer string) {
	conn := protocol.NewStreamConn(c)
	defer conn.Close()
	logger := s.logger.With(logging.String(logging.FieldPeer, peer))
	logger.Debug("translation client connected")
	if err := s.serve(s.ctx, conn, peer); err != nil && s.ctx.Err() == nil {
		logger.Warn("translation connection ended with error", logging.Error(err))
	}
	if err := conn.Err(); err != nil {
		logger.Debug("translation connection failed", logging.Error(err))
	}
	logger.Debug("translation client disconnected")
}

// Close stops accepting, ends every connection, and removes the socket file.
func (s *StreamServer) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	removeSocket(s.logger, s.path)
}
