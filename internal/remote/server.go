// Package remote exposes the command queue to network callers over HTTP and
// gRPC. Handlers run on listener goroutines and only ever touch the queue.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rbright/molview/internal/command"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Queue is the producer side of the command queue.
type Queue interface {
	Send(context.Context, command.RemoteCommand) (command.Outcome, error)
	Post(context.Context, command.RemoteCommand) error
}

// Config controls the listener endpoints.
type Config struct {
	HTTPAddr     string
	GRPCAddr     string
	MaxBodyBytes int64
	ReplyTimeout time.Duration
}

// DefaultMaxBodyBytes caps request bodies when Config leaves it unset.
const DefaultMaxBodyBytes int64 = 64 << 20

// Handle owns a running listener. It exists only while listening.
type Handle struct {
	logger *slog.Logger

	httpServer *http.Server
	httpAddr   net.Addr

	grpcServer *grpc.Server
	grpcAddr   net.Addr
	health     *health.Server

	group    *errgroup.Group
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

// Listen binds the configured endpoints and serves them in the background.
// Bind failures are returned before any goroutine starts.
func Listen(cfg Config, queue Queue, logger *slog.Logger) (*Handle, error) {
	if queue == nil {
		return nil, errors.New("remote listener requires a command queue")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("remote listener requires an HTTP address")
	}
	httpLn, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen http %s: %w", httpAddr, err)
	}

	h := &Handle{
		logger:   logger,
		httpAddr: httpLn.Addr(),
		done:     make(chan struct{}),
	}
	h.httpServer = &http.Server{
		Handler:           NewHTTPHandler(queue, logger, cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcLn net.Listener
	if addr := strings.TrimSpace(cfg.GRPCAddr); addr != "" {
		grpcLn, err = net.Listen("tcp", addr)
		if err != nil {
			_ = httpLn.Close()
			return nil, fmt.Errorf("listen grpc %s: %w", addr, err)
		}
		h.grpcAddr = grpcLn.Addr()
		h.grpcServer, h.health = newGRPCServer(queue, logger, cfg)
	}

	h.group = &errgroup.Group{}
	h.group.Go(func() error {
		if err := h.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	if h.grpcServer != nil {
		h.group.Go(func() error {
			if err := h.grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve grpc: %w", err)
			}
			return nil
		})
	}
	go func() {
		h.err = h.group.Wait()
		close(h.done)
	}()

	logger.Info("remote listening", "http", h.HTTPAddr(), "grpc", h.GRPCAddr())
	return h, nil
}

// HTTPAddr returns the bound HTTP address.
func (h *Handle) HTTPAddr() string {
	if h == nil || h.httpAddr == nil {
		return ""
	}
	return h.httpAddr.String()
}

// GRPCAddr returns the bound gRPC address, or "" when gRPC is disabled.
func (h *Handle) GRPCAddr() string {
	if h == nil || h.grpcAddr == nil {
		return ""
	}
	return h.grpcAddr.String()
}

// Done is closed once every listener goroutine has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the first serve failure once Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Stop aborts both endpoints without draining in-flight requests and waits
// for the serving goroutines to exit. It is safe to call more than once.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.stopOnce.Do(func() {
		if h.health != nil {
			h.health.Shutdown()
		}
		_ = h.httpServer.Close()
		if h.grpcServer != nil {
			h.grpcServer.Stop()
		}
		<-h.done
		h.logger.Info("remote stopped", "error", errString(h.err))
	})
}

func newGRPCServer(queue Queue, logger *slog.Logger, cfg Config) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(int(cfg.MaxBodyBytes)),
		grpc.ChainUnaryInterceptor(requestLogInterceptor(logger), recoverInterceptor(logger)),
	)
	srv.RegisterService(&viewerServiceDesc, &viewerService{queue: queue, replyTimeout: cfg.ReplyTimeout})

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ViewerServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// withReplyTimeout bounds enqueue and reply waits; zero leaves ctx unbounded.
func withReplyTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
