package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/quickcart/apiserver/config"
)

const (
	postgresDriver      = "postgres"
	connectTimeout      = 10 * time.Second
	pingInterval        = 500 * time.Millisecond
	connMaxIdleTime     = 2 * time.Minute
	connMaxLifetime     = 30 * time.Minute
	fallbackMaxIdle     = 5
	fallbackMaxOpen     = 25
	fallbackSSLDisabled = "disable"
)

// PostgresURL builds the connection URL shared by the server and migrations.
func PostgresURL(cfg config.DatabaseConfig) string {
	sslmode := fallbackSSLDisabled
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:     url.UserPassword(cfg.User, cfg.Password),
		Path:     cfg.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// poolSize returns the configured pool limits, falling back to defaults
// for unset values. Idle connections never exceed open connections.
func poolSize(cfg config.DatabaseConfig) (maxOpen, maxIdle int) {
	maxOpen, maxIdle = cfg.MaxOpenConns, cfg.MaxIdleConns
	if maxOpen <= 0 {
		maxOpen = fallbackMaxOpen
	}
	if maxIdle <= 0 {
		maxIdle = fallbackMaxIdle
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	return maxOpen, maxIdle
}

// Open connects to postgres and waits up to connectTimeout for the
// database to accept connections.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open(postgresDriver, PostgresURL(cfg))
	if err != nil {
		return nil, err
	}

	maxOpen, maxIdle := poolSize(cfg)
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxIdleTime(connMaxIdleTime)
	conn.SetConnMaxLifetime(connMaxLifetime)

	if err := waitForPing(ctx, conn.PingContext); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return conn, nil
}

func waitForPing(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		err := ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-ticker.C:
		}
	}
}
