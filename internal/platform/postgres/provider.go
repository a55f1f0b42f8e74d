// Package postgres manages the pgx connection pool, transactions carried on the context and schema
// migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hometech/api/internal/platform/config"
)

const defaultConnectTimeout = 10 * time.Second

type txKey struct{}

// Querier is the subset of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Provider owns the connection pool.
type Provider struct {
	pool *pgxpool.Pool
}

// NewProvider opens a pool for cfg.DSN and verifies connectivity.
func NewProvider(ctx context.Context, cfg config.PostgresConfig) (*Provider, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Provider{pool: pool}, nil
}

// Pool exposes the underlying pool.
func (p *Provider) Pool() *pgxpool.Pool {
	return p.pool
}

// DB returns the transaction carried by ctx, or the pool when there is none.
func (p *Provider) DB(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return p.pool
}

// InTx reports whether ctx carries a transaction.
func (p *Provider) InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok && tx != nil
}

// RunInTx executes fn inside a read-committed transaction. Nested calls join the outer transaction.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Ping checks connectivity.
func (p *Provider) Ping(ctx context.Context) error {
	return WrapError("postgres.ping", p.pool.Ping(ctx))
}

// Close releases every pooled connection.
func (p *Provider) Close(context.Context) error {
	p.pool.Close()
	return nil
}
