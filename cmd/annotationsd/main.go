package main

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

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/extract-annotator/internal/async"
	"github.com/joseph-ayodele/extract-annotator/internal/common"
	"github.com/joseph-ayodele/extract-annotator/internal/dynamo"
	"github.com/joseph-ayodele/extract-annotator/internal/export"
	"github.com/joseph-ayodele/extract-annotator/internal/relocate"
	repo "github.com/joseph-ayodele/extract-annotator/internal/repository"
	"github.com/joseph-ayodele/extract-annotator/internal/server"
	"github.com/joseph-ayodele/extract-annotator/internal/services/annotation"
)

func main() {
	cfg := common.LoadConfig()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	dbConfig := repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
	db, err := repo.Open(ctx, dbConfig, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if cfg.Database.AutoMigrate {
		if err := repo.Migrate(ctx, db, logger); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	var spans repo.SpanRepository = repo.NewSpanRepository(db, logger)
	if cfg.Dynamo.Table != "" {
		client, err := dynamo.NewClient(ctx, cfg.Dynamo)
		if err != nil {
			logger.Error("failed to create DynamoDB client", "error", err)
			os.Exit(1)
		}
		spans = dynamo.NewSpanRepository(client, cfg.Dynamo.Table, logger)
		logger.Info("storing spans in DynamoDB", "table", cfg.Dynamo.Table)
	}
	contents := repo.NewContentRepository(db, logger)
	relocator := relocate.Default()

	reanchorer := annotation.NewReanchorer(spans, relocator, logger)
	queue := async.NewReanchorQueue(reanchorer, logger,
		async.WithWorkers(cfg.Reanchor.Workers),
		async.WithQueueSize(cfg.Reanchor.QueueSize),
		async.WithJobTimeout(cfg.Reanchor.JobTimeout),
	)
	svc := annotation.NewService(spans, contents, queue, logger,
		annotation.WithLimits(cfg.Limits),
		annotation.WithRelocator(relocator),
	)
	exports := export.NewService(spans, svc, cfg.Limits.MaxImportBytes, logger)

	proxies, err := server.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	grpcServer, healthServer := server.NewGRPCServer(server.NewAnnotationService(svc, logger), logger)
	httpServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: server.NewHandler(svc, exports, logger,
			server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst),
			server.WithTrustedProxies(proxies...),
			server.WithHealthCheck(func(ctx context.Context) error {
				return repo.HealthCheck(ctx, db, 0, logger)
			}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		logger.Info("gRPC listening", "addr", cfg.Server.GRPCAddr)
		go func() { errCh <- grpcServer.Serve(lis) }()
	}
	if cfg.Server.HTTPAddr != "" {
		logger.Info("HTTP listening", "addr", cfg.Server.HTTPAddr)
		go func() {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	queue.Shutdown(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", "error", err)
	}
	logger.Info("stopped")
}
