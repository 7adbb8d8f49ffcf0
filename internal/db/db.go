package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Options tunes the connection pool. Zero fields take the defaults below.
type Options struct {
	// AppName is reported to the server as application_name.
	AppName          string
	MaxConns         int32
	StatementTimeout time.Duration
}

const (
	defaultAppName          = "freightrate"
	defaultMaxConns         = 5
	defaultStatementTimeout = 5 * time.Second
)

// NewPool connects to databaseURL and pings it before returning.
func NewPool(ctx context.Context, databaseURL string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func poolConfig(databaseURL string, opts Options) (*pgxpool.Config, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	if opts.AppName == "" {
		opts.AppName = defaultAppName
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxConns
	}
	if opts.StatementTimeout <= 0 {
		opts.StatementTimeout = defaultStatementTimeout
	}

	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = 0
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	params := cfg.ConnConfig.RuntimeParams
	params["application_name"] = opts.AppName
	params["client_encoding"] = "UTF8"
	params["search_path"] = "public"
	params["timezone"] = "UTC"
	ms := strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	params["statement_timeout"] = ms
	params["idle_in_transaction_session_timeout"] = ms
	return cfg, nil
}
