// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bestwishes/bestwishes/internal/store"
)

// startMigratedPostgres runs a PostgreSQL container with every migration
// applied and returns a pool connected to it.
func startMigratedPostgres(ctx context.Context) (*pgxpool.Pool, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bestwishes_test"),
		postgres.WithUsername("bestwishes"),
		postgres.WithPassword("bestwishes"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}
	terminate := func() { _ = container.Terminate(ctx) }

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		terminate()
		return nil, nil, err
	}
	upErr := migrator.Up()
	_ = migrator.Close()
	if upErr != nil {
		terminate()
		return nil, nil, upErr
	}

	pool, err := store.Connect(ctx, connStr, store.ConnectOptions{})
	if err != nil {
		terminate()
		return nil, nil, err
	}
	return pool, func() {
		pool.Close()
		terminate()
	}, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ = Describe("Account schema", Ordered, func() {
	var (
		ctx     context.Context
		pool    *pgxpool.Pool
		cleanup func()
	)

	insertUser := func(id, email string) error {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (id, full_name, email, password_hash) VALUES ($1, $2, $3, 'x')`,
			id, "Test User", email)
		return err
	}

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		pool, cleanup, err = startMigratedPostgres(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	Describe("users", func() {
		It("rejects a second account whose email differs only in case", func() {
			Expect(insertUser("u-case-1", "Case@Example.com")).To(Succeed())
			err := insertUser("u-case-2", "case@example.COM")
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})

		It("defaults new accounts to unverified non-sellers", func() {
			Expect(insertUser("u-defaults", "defaults@example.com")).To(Succeed())
			var verified, seller bool
			err := pool.QueryRow(ctx, `SELECT verified, is_seller FROM users WHERE id = $1`, "u-defaults").
				Scan(&verified, &seller)
			Expect(err).NotTo(HaveOccurred())
			Expect(verified).To(BeFalse())
			Expect(seller).To(BeFalse())
		})
	})

	Describe("tokens", func() {
		BeforeAll(func() {
			Expect(insertUser("u-token", "token@example.com")).To(Succeed())
		})

		It("keeps one live token per owner and purpose", func() {
			_, err := pool.Exec(ctx,
				`INSERT INTO tokens (owner, purpose, token_hash, issued_at) VALUES ($1, 'verify', 'a', NOW())`, "u-token")
			Expect(err).NotTo(HaveOccurred())
			_, err = pool.Exec(ctx,
				`INSERT INTO tokens (owner, purpose, token_hash, issued_at) VALUES ($1, 'verify', 'b', NOW())`, "u-token")
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})

		It("rejects unknown purposes", func() {
			_, err := pool.Exec(ctx,
				`INSERT INTO tokens (owner, purpose, token_hash, issued_at) VALUES ($1, 'login', 'c', NOW())`, "u-token")
			Expect(pgCode(err)).To(Equal(pgerrcode.CheckViolation))
		})

		It("rejects tokens for unknown owners", func() {
			_, err := pool.Exec(ctx,
				`INSERT INTO tokens (owner, purpose, token_hash, issued_at) VALUES ('ghost', 'reset', 'd', NOW())`)
			Expect(pgCode(err)).To(Equal(pgerrcode.ForeignKeyViolation))
		})
	})

	Describe("seller_accounts", func() {
		It("allows one seller account per user", func() {
			Expect(insertUser("u-seller", "seller@example.com")).To(Succeed())
			const q = `INSERT INTO seller_accounts
				(id, owner, seller_name, store_name, store_address, store_phone, country, city)
				VALUES ($1, $2, 'Jane', 'Gifts', '1 Main St', '555', 'US', 'Austin')`
			_, err := pool.Exec(ctx, q, "s-1", "u-seller")
			Expect(err).NotTo(HaveOccurred())
			_, err = pool.Exec(ctx, q, "s-2", "u-seller")
			Expect(pgCode(err)).To(Equal(pgerrcode.UniqueViolation))
		})

		It("removes seller data with its owner", func() {
			_, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, "u-seller")
			Expect(err).NotTo(HaveOccurred())
			var n int
			Expect(pool.QueryRow(ctx, `SELECT COUNT(*) FROM seller_accounts WHERE owner = $1`, "u-seller").
				Scan(&n)).To(Succeed())
			Expect(n).To(BeZero())
		})
	})
})
