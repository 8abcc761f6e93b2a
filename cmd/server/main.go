// Command worklog-server starts the Worklog gRPC server.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	pkgcrypto "github.com/and161185/worklog/internal/crypto"
	"github.com/and161185/worklog/internal/limiter"
	"github.com/and161185/worklog/internal/migrate"
	"github.com/and161185/worklog/internal/repository/postgres"
	grpcserver "github.com/and161185/worklog/internal/server/grpc"
	"github.com/and161185/worklog/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves the gRPC API until
// SIGINT or SIGTERM.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := loadEnvFile(".env"); err != nil {
		logger.Fatal("env file", zap.Error(err))
	}
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("tz", cfg.loc.String()),
		zap.Bool("tls", cfg.tls()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	users := postgres.NewUserRepo(db)
	clients := postgres.NewClientRepo(db)
	projects := postgres.NewProjectRepo(db)
	logs := postgres.NewLogRepo(db)
	stats := postgres.NewStatsRepo(db)
	notifs := postgres.NewNotificationRepo(db)

	lim := limiter.NewPG(db.Pool, limiter.DefaultPolicy)
	key := []byte(cfg.JWTKey)

	passwords, err := pkgcrypto.NewPasswords(cfg.hashParams())
	if err != nil {
		logger.Fatal("password hashing", zap.Error(err))
	}

	// Services
	guard := service.NewGuard(clients, key)
	svc := grpcserver.Services{
		Auth:        service.NewAuthService(users, passwords, key, cfg.AccessTTL, lim),
		Logs:        service.NewLogService(logs, clients, guard, cfg.loc, cfg.TxTimeout),
		Stats:       service.NewStatsService(stats, guard, logger.Named("stats"), cfg.loc, cfg.TxTimeout),
		Projects:    service.NewProjectService(projects, clients, users, guard),
		Invitations: service.NewInvitationService(notifs, projects, clients, users, guard),
		Roles:       guard,
	}

	opts := []grpc.ServerOption{grpcserver.Interceptors(logger, guard)}
	if cfg.tls() {
		creds, err := credentials.NewServerTLSFromFile(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)
	grpcserver.RegisterWorklogServer(s, grpcserver.New(svc, cfg.loc))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
