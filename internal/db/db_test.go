package db

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/quickcart/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresURL(t *testing.T) {
	raw := PostgresURL(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "shop",
		Password: "p@ss/word",
		DBName:   "quickcart",
		UseSSL:   true,
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/quickcart", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", password)
}

func TestPostgresURLDisablesSSLByDefault(t *testing.T) {
	u, err := url.Parse(PostgresURL(config.DatabaseConfig{Host: "localhost", Port: 5432, DBName: "quickcart"}))
	require.NoError(t, err)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

func TestPoolSize(t *testing.T) {
	maxOpen, maxIdle := poolSize(config.DatabaseConfig{})
	assert.Equal(t, 25, maxOpen)
	assert.Equal(t, 5, maxIdle)

	maxOpen, maxIdle = poolSize(config.DatabaseConfig{MaxOpenConns: 3, MaxIdleConns: 10})
	assert.Equal(t, 3, maxOpen)
	assert.Equal(t, 3, maxIdle)
}

func TestWaitForPingRetries(t *testing.T) {
	calls := 0
	err := waitForPing(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWaitForPingGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitForPing(ctx, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	assert.ErrorContains(t, err, "refused")
}
