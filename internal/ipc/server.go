package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"babel/internal/daemon"
	"babel/internal/history"
	"babel/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path. onStop runs
// after a Stop RPC so the hosting process can exit.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, onStop func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	listener, err := listenUnix(path)
	if err != nil {
		return nil, err
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx, onStop: onStop}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
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
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrack(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops accepting, drops open client connections, and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
	s.connMu.Unlock()
	s.wg.Wait()
	removeSocket(s.logger, s.path)
}

// track registers conn unless the server is already closed.
func (s *Server) track(conn net.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	onStop func()
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.onStop != nil {
		go s.onStop()
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.HistoryPath = status.HistoryPath
	resp.LockPath = status.LockFilePath
	resp.SocketPath = status.SocketPath
	resp.HistoryCounts = make(map[string]int, len(status.HistoryCounts))
	for st, n := range status.HistoryCounts {
		resp.HistoryCounts[string(st)] = n
	}
	w := status.Worker
	resp.Worker = WorkerStatus{
		Running:     w.Running,
		Engine:      w.Engine,
		Model:       w.Model,
		LoaderState: w.LoaderState.String(),
		Loads:       w.Loads,
		Queued:      w.Queued,
		QueueDepth:  w.QueueDepth,
		Current:     w.Current,
		Ports:       w.Ports,
		Processed:   w.Processed,
		Failed:      w.Failed,
		Rejected:    w.Rejected,
		LastError:   w.LastError,
	}
	return nil
}

func (s *service) HistoryList(req HistoryListRequest, resp *HistoryListResponse) error {
	entries, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, FromHistoryEntry(entry))
	}
	return nil
}

func (s *service) HistoryClear(_ HistoryClearRequest, resp *HistoryClearResponse) error {
	s.logger.Debug("history clear requested")
	removed, err := s.daemon.ClearHistory(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("history cleared",
		logging.String(logging.FieldEventType, "history_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

// FromHistoryEntry converts a stored entry to its wire form.
func FromHistoryEntry(e history.Entry) HistoryEntry {
	return HistoryEntry{
		ID:             e.ID,
		Peer:           e.Peer,
		Text:           e.Text,
		SourceLanguage: e.SourceLanguage,
		TargetLanguage: e.TargetLanguage,
		Status:         string(e.Status),
		Output:         e.Output,
		ErrorKind:      e.ErrorKind,
		ErrorMessage:   e.ErrorMessage,
		Loaded:         e.Loaded,
		QueuedAt:       e.QueuedAt,
		StartedAt:      e.StartedAt,
		FinishedAt:     e.FinishedAt,
	}
}

func listenUnix(path string) (net.Listener, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	return listener, nil
}

func logAcceptFailure(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "accept failed", "ipc_accept_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
		logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
}

func removeSocket(logger *slog.Logger, path string) {
	if err := os.RemoveAll(path); err != nil {
		logging.WarnWithContext(logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun babel stop"))
	}
}
