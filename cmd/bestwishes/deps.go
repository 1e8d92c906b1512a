// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package main

import (
	"context"
	"log/slog"
	"net"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bestwishes/bestwishes/internal/config"
	"github.com/bestwishes/bestwishes/internal/notify"
	"github.com/bestwishes/bestwishes/internal/observability"
	"github.com/bestwishes/bestwishes/internal/store"
	"github.com/bestwishes/bestwishes/internal/upload"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the database pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, dsn string, opts store.ConnectOptions) (Pool, error)

	// RedisFactory creates the client of the redis token backend.
	// Default: goredis.NewClient
	RedisFactory func(opts *goredis.Options) goredis.UniversalClient

	// StorageFactory builds upload storage. files, when non-nil, serves
	// stored uploads under cfg.App.UploadBaseURL.
	// Default: newStorage
	StorageFactory func(ctx context.Context, cfg config.Config) (storage upload.Storage, files *upload.DiskStorage, err error)

	// DispatcherFactory builds the synchronous mail dispatcher.
	// Default: newDispatcher
	DispatcherFactory func(cfg config.SMTPConfig, logger *slog.Logger) (notify.Dispatcher, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)
}

// Pool is the database handle serve needs.
type Pool interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
