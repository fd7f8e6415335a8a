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

	"log/slog"

	"snag/internal/daemon"
	"snag/internal/logging"
	"snag/internal/orchestrator"
	"snag/internal/services/ytdlp"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown chan struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	shutdown := make(chan struct{})
	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx, shutdown: shutdown}
	if err := rpcServer.RegisterName("Snag", srv); err != nil {
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
		shutdown:  shutdown,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// ShutdownRequested is closed when a client asks the daemon to exit.
func (s *Server) ShutdownRequested() <-chan struct{} {
	return s.shutdown
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown chan struct{}
	once     sync.Once
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return logging.WithComponent(s.logger, "ipc")
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.LiveJobs = status.LiveJobs
	resp.HistoryDBPath = status.HistoryDBPath
	resp.APIBind = status.APIBind
	resp.JobCounts = make(map[string]int, len(status.JobCounts))
	for state, count := range status.JobCounts {
		resp.JobCounts[string(state)] = count
	}
	resp.Tools = make([]ToolInfo, 0, len(status.Tools))
	for _, tool := range status.Tools {
		resp.Tools = append(resp.Tools, ToolInfo{
			Tool:       string(tool.Tool),
			Path:       tool.Path,
			Version:    tool.Version,
			VerifiedAt: tool.VerifiedAt,
		})
	}
	return nil
}

func (s *service) EnsureTools(req EnsureToolsRequest, resp *EnsureToolsResponse) error {
	paths, err := s.daemon.Orchestrator().EnsureTools(s.ctx, req.Tools)
	if err != nil {
		return err
	}
	resp.Paths = paths
	return nil
}

func (s *service) FetchMetadata(req MetadataRequest, resp *MetadataResponse) error {
	items, err := s.daemon.Orchestrator().FetchMetadata(s.ctx, req.URL, ytdlp.MetadataOptions{
		UseCookieFile:    req.UseCookieFile,
		CookieFilePath:   req.CookieFilePath,
		DownloadPlaylist: req.DownloadPlaylist,
	})
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) Download(req DownloadRequest, resp *DownloadResponse) error {
	result, err := s.daemon.Orchestrator().Download(s.ctx, orchestrator.DownloadRequest{
		JobID:     req.JobID,
		URL:       req.URL,
		OutputDir: req.OutputDir,
		Options: ytdlp.DownloadOptions{
			FormatCode:       req.FormatCode,
			IsAudioOnly:      req.AudioOnly,
			DownloadPlaylist: req.DownloadPlaylist,
			UseCookieFile:    req.UseCookieFile,
			CookieFilePath:   req.CookieFilePath,
		},
	})
	if err != nil {
		return err
	}
	resp.JobID = result.JobID
	resp.FinalPath = result.FinalPath
	resp.Title = result.Title
	resp.AlreadyExists = result.AlreadyExists
	return nil
}

func (s *service) Cut(req CutRequest, resp *CutResponse) error {
	result, err := s.daemon.Orchestrator().Cut(s.ctx, orchestrator.CutRequest{
		JobID:           req.JobID,
		VideoPath:       req.VideoPath,
		OutputDir:       req.OutputDir,
		SegmentDuration: req.SegmentDuration,
	})
	if err != nil {
		return err
	}
	resp.JobID = result.JobID
	resp.Segments = result.Segments
	return nil
}

func (s *service) StopJob(req StopJobRequest, resp *StopJobResponse) error {
	result := s.daemon.Orchestrator().Stop(req.JobID)
	resp.Found = result.Found
	s.log().Info("stop requested via ipc",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Bool("found", result.Found))
	return nil
}

func (s *service) JobsList(req JobsListRequest, resp *JobsListResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	records, err := s.daemon.ListJobs(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Jobs = records
	return nil
}

func (s *service) JobDescribe(req JobDescribeRequest, resp *JobDescribeResponse) error {
	record, err := s.daemon.GetJob(s.ctx, req.JobID)
	if err != nil {
		return err
	}
	resp.Job = record
	return nil
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("shutdown requested via ipc")
	s.once.Do(func() { close(s.shutdown) })
	resp.Stopping = true
	return nil
}
