package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"grabit/internal/api"
	"grabit/internal/daemon"
	"grabit/internal/logging"
	"grabit/internal/logs"
)

// serviceName is the RPC namespace both ends of the socket agree on.
const serviceName = "Grabit"

// Server answers control requests from the grabit CLI. It speaks JSON-RPC
// over a Unix domain socket, so only local processes can reach it.
type Server struct {
	socket   string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds the socket at path and registers the control service.
// Any stale socket file left by an earlier process is replaced.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server needs a daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clear stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bind unix socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &control{d: d, logger: logger, ctx: ctx}); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register control service: %w", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	return &Server{
		socket:   path,
		logger:   logger,
		listener: listener,
		rpc:      rpcServer,
		ctx:      serveCtx,
		cancel:   cancel,
	}, nil
}

// Serve begins accepting connections in the background and returns
// immediately. Close tears the listener down.
func (s *Server) Serve() {
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	s.logger.Debug("ipc server listening", logging.String("socket", s.socket))
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("ipc accept failed", logging.Error(err))
			continue
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close shuts the listener down, waits for in-flight requests, and deletes
// the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.socket); err != nil {
		s.logger.Warn("socket cleanup failed",
			logging.String("socket", s.socket),
			logging.Error(err))
	}
}

// control is the method set registered under serviceName. Every exported
// method follows the net/rpc shape: request in, response pointer out.
type control struct {
	d      *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (c *control) scoped() *slog.Logger {
	if c.logger == nil {
		return logging.NewNop()
	}
	return c.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (c *control) Status(_ StatusRequest, resp *StatusResponse) error {
	st := c.d.Status(c.ctx)
	resp.Running = st.Running
	resp.PID = st.PID
	resp.Version = st.Version
	if !st.StartedAt.IsZero() {
		resp.StartedAt = st.StartedAt.Format(time.RFC3339)
	}
	resp.UptimeSeconds = st.UptimeSeconds
	resp.BindAddress = st.BindAddress
	resp.ActiveDownloads = st.ActiveDownloads
	resp.TotalDownloads = st.TotalDownloads
	resp.MaxConcurrent = st.MaxConcurrent
	resp.Connections = api.FromHubStats(st.Hub)
	resp.DiskFreeMB = st.DiskFreeMB
	resp.MemoryUsageMB = st.MemoryUsageMB
	resp.HistoryDBPath = st.HistoryDBPath
	resp.HistoryCount = st.HistoryCount
	resp.LockPath = st.LockFilePath
	resp.LogPath = st.LogFilePath
	resp.FFmpegAvailable = st.FFmpegAvailable
	resp.Dependencies = api.FromDependencies(st.Dependencies)
	return nil
}

func (c *control) Stop(_ StopRequest, resp *StopResponse) error {
	c.scoped().Debug("stop request received")
	c.d.RequestShutdown()
	resp.Stopping = true
	c.scoped().Info("daemon shutdown requested over control socket")
	return nil
}

func (c *control) Stats(_ StatsRequest, resp *StatsResponse) error {
	st := c.d.Status(c.ctx)
	resp.ActiveDownloads = st.ActiveDownloads
	resp.TotalDownloads = st.TotalDownloads
	resp.Connections = api.FromHubStats(st.Hub)
	return nil
}

func (c *control) HistoryList(req HistoryListRequest, resp *HistoryListResponse) error {
	entries, err := c.d.HistoryList(c.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Entries = entries
	return nil
}

func (c *control) HistoryClear(_ HistoryClearRequest, resp *HistoryClearResponse) error {
	c.scoped().Debug("history clear requested")
	removed, err := c.d.HistoryClear(c.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	c.scoped().Info("history cleared", logging.Int64("removed_count", removed))
	return nil
}

func (c *control) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := c.d.LogPath()
	if path == "" {
		return nil
	}

	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := c.ctx
	if req.Follow && wait > 0 {
		// The poll must end shortly after the requested wait even if the
		// log file never grows.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(c.ctx, wait+500*time.Millisecond)
		defer cancel()
	}

	result, err := logs.Tail(ctx, path, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	resp.Offset = result.Offset
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	resp.Lines = result.Lines
	return nil
}

func (c *control) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := c.d.TestNotification(c.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
