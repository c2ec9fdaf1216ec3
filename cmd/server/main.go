// Command authgate-server starts the authentication gateway.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/authgate/internal/config"
	"github.com/and161185/authgate/internal/identity"
	"github.com/and161185/authgate/internal/limiter"
	"github.com/and161185/authgate/internal/mailer"
	"github.com/and161185/authgate/internal/migrate"
	"github.com/and161185/authgate/internal/ratelimit"
	"github.com/and161185/authgate/internal/repository/postgres"
	grpcserver "github.com/and161185/authgate/internal/server/grpc"
	httpserver "github.com/and161185/authgate/internal/server/http"
	"github.com/and161185/authgate/internal/service"
	"github.com/and161185/authgate/internal/tokens"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations if asked, and serves HTTP plus
// the optional gRPC health endpoint until SIGINT/SIGTERM.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(os.Args[1:], config.Environ(".env"))
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.Version == "dev" {
		cfg.Version = version
	}
	logger.Info("starting",
		zap.String("version", cfg.Version),
		zap.String("buildDate", buildDate),
		zap.String("http", cfg.HTTPAddr),
		zap.String("credentialMode", cfg.CredentialMode),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Migrate {
		if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	securityRepo := postgres.NewSecurityLogRepo(db)
	systemRepo := postgres.NewSystemRepo(db)

	codec, err := tokens.NewCodec([]byte(cfg.JWTSecret), tokens.WithIssuer(cfg.TokenIssuer))
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	// Outbound providers
	var sender mailer.Sender = mailer.LogSender{Log: logger}
	if cfg.ResendAPIKey != "" {
		sender = mailer.NewResendSender(cfg.ResendURL, cfg.ResendAPIKey, nil, cfg.OutboundTimeout)
	} else {
		logger.Warn("no email provider key, mail is logged instead of sent")
	}
	mail := mailer.New(sender, cfg.MailFrom, cfg.RedirectURL)

	provider := identity.NewSupabaseProvider(cfg.IdentityVerifyURL, cfg.IdentityAPIKey, nil, cfg.OutboundTimeout)
	bridge := identity.NewBridge(provider, userRepo, logger)

	var verifier service.CredentialVerifier
	switch cfg.CredentialMode {
	case service.ModeLocal:
		lockout := limiter.NewPG(db.Pool, cfg.LockoutWindow, cfg.LockoutMax, cfg.LockoutBlock)
		verifier = service.NewLocalPasswordVerifier(userRepo, lockout, logger)
	default:
		verifier = service.NewDelegatedIdentityVerifier(userRepo)
	}

	// Services
	authSvc := service.NewAuthService(service.Deps{
		Users:    userRepo,
		Security: securityRepo,
		Codec:    codec,
		Mail:     mail,
		Bridge:   bridge,
		Verifier: verifier,
		Log:      logger,
	})
	sysSvc := service.NewSystemService(systemRepo, cfg.Version, cfg.SchemaName, cfg.SchemaOutput, logger)

	// Request rate limiting
	var rl *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiter fails open", zap.Error(err))
		}
		rl = ratelimit.New(rdb, logger)
	}

	healthPolicy := httpserver.DefaultHealthPolicy
	healthPolicy.Limit = cfg.HealthLimit
	api := httpserver.New(authSvc, sysSvc, rl, httpserver.Options{
		CORSOrigins: cfg.CORSOrigins,
		AuthPolicy: ratelimit.Policy{
			Prefix: "rl:auth",
			Limit:  cfg.AuthRateLimit,
			Window: cfg.AuthRateWindow,
			Block:  cfg.AuthRateBlock,
		},
		HealthPolicy:   healthPolicy,
		RequestTimeout: cfg.RequestTimeout,
		ExposeSchema:   cfg.ExposeSchema,
	}, logger)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (HTTP)", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// gRPC health
	var stopGRPC func()
	if cfg.GRPCAddr != "" {
		health := grpcserver.NewHealth(func(ctx context.Context) bool {
			return sysSvc.Health(ctx).Healthy
		}, cfg.HealthInterval, logger)
		go health.Run(ctx)

		gs := grpcserver.NewServer(health, logger)
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("listen", zap.Error(err))
		}
		go func() {
			logger.Info("listening (gRPC health)", zap.String("addr", cfg.GRPCAddr))
			errCh <- gs.Serve(lis)
		}()
		stopGRPC = gs.GracefulStop
	}

	// Wait for stop
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		stop()
	}

	// graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if stopGRPC != nil {
		done := make(chan struct{})
		go func() {
			stopGRPC()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
		}
	}

	logger.Info("shutdown complete")
}
