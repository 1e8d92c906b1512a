// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bestwishes/bestwishes/internal/auth"
	authpg "github.com/bestwishes/bestwishes/internal/auth/postgres"
	"github.com/bestwishes/bestwishes/internal/config"
	"github.com/bestwishes/bestwishes/internal/httpapi"
	"github.com/bestwishes/bestwishes/internal/logging"
	"github.com/bestwishes/bestwishes/internal/notify"
	"github.com/bestwishes/bestwishes/internal/observability"
	"github.com/bestwishes/bestwishes/internal/session"
	"github.com/bestwishes/bestwishes/internal/store"
	"github.com/bestwishes/bestwishes/internal/token"
	tokenpg "github.com/bestwishes/bestwishes/internal/token/postgres"
	tokenredis "github.com/bestwishes/bestwishes/internal/token/redis"
	"github.com/bestwishes/bestwishes/internal/upload"
)

// cleanupTimeout bounds each shutdown step that has no configured timeout.
const cleanupTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API server",
		Long: `Start the HTTP API server along with the metrics/health endpoints
and the periodic sweep of expired tokens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.PoolFactory == nil {
		d.PoolFactory = func(ctx context.Context, dsn string, opts store.ConnectOptions) (Pool, error) {
			return store.Connect(ctx, dsn, opts)
		}
	}
	if d.RedisFactory == nil {
		d.RedisFactory = func(opts *goredis.Options) goredis.UniversalClient {
			return goredis.NewClient(opts)
		}
	}
	if d.StorageFactory == nil {
		d.StorageFactory = newStorage
	}
	if d.DispatcherFactory == nil {
		d.DispatcherFactory = newDispatcher
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if d.ListenerFactory == nil {
		d.ListenerFactory = net.Listen
	}
	return d
}

// runServeWithDeps starts the server with injectable dependencies and blocks
// until a signal, a server failure or ctx cancellation.
func runServeWithDeps(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("bestwishes", version, cfg.Log.Format, level)

	logger.Info("starting bestwishes",
		"http_addr", cfg.HTTP.Addr,
		"token_backend", cfg.Tokens.Backend,
		"log_format", cfg.Log.Format,
	)

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{
		Attempts: cfg.Database.ConnectAttempts,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return oops.With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness(pool))
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer stopWithTimeout(logger, "observability", obsServer.Stop)
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	tokens, closeTokens, err := newTokenStore(ctx, cfg.Tokens, pool, deps.RedisFactory)
	if err != nil {
		return err
	}
	defer closeTokens()

	ledger, err := token.NewLedger(tokens,
		token.WithTTL(token.PurposeVerify, cfg.Tokens.VerifyTTL),
		token.WithTTL(token.PurposeReset, cfg.Tokens.ResetTTL),
		token.WithLogger(logger),
		token.WithObserver(metrics),
	)
	if err != nil {
		return err
	}

	dispatcher, err := deps.DispatcherFactory(cfg.SMTP, logger)
	if err != nil {
		return err
	}
	mailer := notify.NewAsync(dispatcher, logger, metrics)
	defer stopWithTimeout(logger, "mailer", mailer.Close)

	signer, err := session.NewSigner(cfg.Session.Secret, cfg.Session.Validity, cfg.Session.Issuer)
	if err != nil {
		return err
	}

	svc, err := auth.NewService(auth.Deps{
		Users:    authpg.NewUserRepository(pool),
		Sellers:  authpg.NewSellerRepository(pool),
		Products: authpg.NewProductRepository(pool),
		Tokens:   ledger,
		Sessions: signer,
		Notifier: mailer,
		Logger:   logger,
	}, auth.Config{
		ResetURL:                 cfg.App.ResetURL,
		RequireSellerForProducts: cfg.App.RequireSellerForProducts,
	})
	if err != nil {
		return err
	}

	storage, disk, err := deps.StorageFactory(ctx, cfg)
	if err != nil {
		return err
	}
	opts := []httpapi.Option{httpapi.WithLogger(logger), httpapi.WithObserver(metrics)}
	if disk != nil {
		prefix := strings.TrimSuffix(cfg.App.UploadBaseURL, "/") + "/"
		opts = append(opts, httpapi.WithFiles(prefix, http.FileServer(http.Dir(disk.Dir()))))
	}
	api := httpapi.New(svc, upload.NewUploader(storage), opts...)

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	go runSweeper(ctx, ledger, cfg.Tokens.SweepInterval, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	cmd.Println("BestWishes API listening on " + listener.Addr().String())
	logger.Info("api server ready", "addr", listener.Addr().String())

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		runErr = oops.With("operation", "serve api").Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	cancel()

	logger.Info("shutdown complete")
	return runErr
}

// readiness reports ready while the database answers a ping.
func readiness(pool Pool) observability.ReadinessChecker {
	return func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx) == nil
	}
}

func stopWithTimeout(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("error stopping component", "component", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

// newTokenStore builds the configured ledger backend and its cleanup.
func newTokenStore(
	ctx context.Context,
	cfg config.TokensConfig,
	pool Pool,
	redisFactory func(*goredis.Options) goredis.UniversalClient,
) (token.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return tokenpg.NewStore(pool), func() {}, nil
	case config.BackendRedis:
		client := redisFactory(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cleanupTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		return tokenredis.NewStore(client, cfg.Redis.Prefix), func() { _ = client.Close() }, nil
	case config.BackendMemory:
		return token.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("field", "tokens.backend").Errorf("unknown token backend %q", cfg.Backend)
	}
}

// newStorage uses S3 when a bucket is configured and the upload directory
// otherwise.
func newStorage(ctx context.Context, cfg config.Config) (upload.Storage, *upload.DiskStorage, error) {
	if cfg.S3.Bucket != "" {
		s3, err := upload.NewS3Storage(ctx, upload.S3Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	}
	disk, err := upload.NewDiskStorage(cfg.App.UploadDir, cfg.App.UploadBaseURL)
	if err != nil {
		return nil, nil, err
	}
	return disk, disk, nil
}

// newDispatcher sends through SMTP when a host is configured and logs
// messages otherwise.
func newDispatcher(cfg config.SMTPConfig, logger *slog.Logger) (notify.Dispatcher, error) {
	if cfg.Host == "" {
		logger.Warn("smtp host not configured, emails will be logged")
		return notify.NewLogDispatcher(logger), nil
	}
	return notify.NewSMTPDispatcher(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
		Attempts: cfg.Attempts,
	}, logger)
}
