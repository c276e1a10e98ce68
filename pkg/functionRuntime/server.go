package functionRuntime

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/3s-rg-codes/oaas-sdk-go/pkg/oaas"
	"github.com/3s-rg-codes/oaas-sdk-go/pkg/utils"
)

// Server hosts a Router over HTTP and, when configured, gRPC.
type Server struct {
	cfg     Config
	router  *oaas.Router
	logger  *slog.Logger
	metrics *Metrics

	httpServer *http.Server
	grpcServer *grpc.Server
}

func NewServer(cfg Config, router *oaas.Router, logger *slog.Logger) *Server {
	cfg.applyDefaults()
	s := &Server{
		cfg:     cfg,
		router:  router,
		logger:  utils.OrDiscard(logger).With("component", "function_runtime"),
		metrics: newMetrics(),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
		utils.InterceptorLogger(s.logger),
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(s.recoverPanic)),
	))
	s.grpcServer.RegisterService(&serviceDesc, &grpcService{s: s})
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleInvoke)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.handler())
	return mux
}

// Run listens on the configured addresses and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddress)
	if err != nil {
		return err
	}

	var grpcLis net.Listener
	if s.cfg.GRPCAddress != "" {
		grpcLis, err = net.Listen("tcp", s.cfg.GRPCAddress)
		if err != nil {
			httpLis.Close()
			return err
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve serves on already open listeners. grpcLis may be nil.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server starting", "address", httpLis.Addr().String(), "functions", s.router.Keys())
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error {
			s.logger.Info("gRPC server starting", "address", grpcLis.Addr().String())
			return s.grpcServer.Serve(grpcLis)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Gracefully shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if grpcLis != nil {
			s.grpcServer.GracefulStop()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server forced to shutdown", "error", err)
			return err
		}
		s.logger.Info("Server gracefully stopped")
		return nil
	})

	return g.Wait()
}

// invoke runs a task through the router and records metrics. The returned outcome
// is one of the outcome* labels.
func (s *Server) invoke(ctx context.Context, raw []byte) (*oaas.InvocationContext, *oaas.Completion, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	invocationID := uuid.NewString()
	start := s.metrics.begin()
	function, outcome := unknownFunction, outcomeBadRequest
	defer func() {
		s.metrics.end(function, outcome, start)
		s.logger.Debug("Task handled",
			"invocation", invocationID,
			"function", function,
			"outcome", outcome,
			"duration", time.Since(start))
	}()

	ic, completion, err := s.router.HandleTask(ctx, raw)
	if ic != nil {
		function = ic.FuncKey()
	}

	switch {
	case errors.Is(err, oaas.ErrNoHandler):
		outcome = outcomeNotFound
		function = unknownFunction
	case err != nil:
		outcome = outcomeBadRequest
	case !completion.Success:
		outcome = outcomeFailure
	default:
		outcome = outcomeSuccess
	}

	if err != nil {
		s.logger.Warn("Rejected task", "invocation", invocationID, "error", err)
	}
	return ic, completion, outcome, err
}

// recoverPanic keeps a panic outside the router from killing the process.
func (s *Server) recoverPanic(p any) error {
	s.logger.Error("Recovered from panic", "panic", p)
	return status.Errorf(codes.Internal, "panic: %v", p)
}

// Start runs a server for router configured from OAAS_* environment variables.
// It blocks until SIGINT or SIGTERM and exits the process on failure.
func Start(router *oaas.Router) {
	cfg, err := SettingsFromEnv()
	if err != nil {
		slog.Error("Invalid runtime settings", "error", err)
		os.Exit(1)
	}
	logger := utils.SetupLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewServer(cfg, router, logger).Run(ctx); err != nil {
		logger.Error("Failed to serve", "error", err)
		os.Exit(1)
	}
}
