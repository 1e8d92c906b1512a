// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/bestwishes/bestwishes/internal/config"
	"github.com/bestwishes/bestwishes/internal/store"
	"github.com/bestwishes/bestwishes/internal/token"
	"github.com/bestwishes/bestwishes/pkg/errutil"
)

// Sweeper deletes expired tokens.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired verification and reset tokens",
		Long: `Delete every token older than its purpose TTL once and exit. The serve
command runs the same sweep periodically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runSweep(cmd.Context(), cfg, cmd, nil)
		},
	}
	cmd.Flags().String("token-backend", config.Default().Tokens.Backend, "token store backend (postgres or redis)")
	cmd.Flags().String("redis-addr", config.Default().Tokens.Redis.Addr, "redis address for the redis token backend")
	return cmd
}

func runSweep(ctx context.Context, cfg config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if cfg.Tokens.Backend == config.BackendMemory {
		return oops.Code("CONFIG_INVALID").With("field", "tokens.backend").
			Errorf("the memory backend has nothing to sweep from another process")
	}

	var pool Pool
	if cfg.Tokens.Backend == config.BackendPostgres {
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").With("field", "database.url").
				Errorf("database.url is required (set %s)", config.EnvDatabaseURL)
		}
		var err error
		pool, err = deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{Attempts: cfg.Database.ConnectAttempts})
		if err != nil {
			return oops.With("operation", "connect to database").Wrap(err)
		}
		defer pool.Close()
	}

	tokens, closeTokens, err := newTokenStore(ctx, cfg.Tokens, pool, deps.RedisFactory)
	if err != nil {
		return err
	}
	defer closeTokens()

	ledger, err := token.NewLedger(tokens,
		token.WithTTL(token.PurposeVerify, cfg.Tokens.VerifyTTL),
		token.WithTTL(token.PurposeReset, cfg.Tokens.ResetTTL),
	)
	if err != nil {
		return err
	}
	n, err := ledger.Sweep(ctx)
	if err != nil {
		return err
	}
	cmd.Println(fmt.Sprintf("Swept %d expired tokens", n))
	return nil
}

// runSweeper sweeps every interval until ctx is done. A non-positive
// interval disables it.
func runSweeper(ctx context.Context, s Sweeper, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				errutil.LogErrorContext(ctx, logger, "token sweep failed", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "expired tokens swept", "count", n)
			}
		}
	}
}
