package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", " secret ")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "quickcart")

	cfg := LoadConfig()
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, BackendNone, cfg.Storage.Backend)
	assert.Equal(t, BackendNone, cfg.MQ.Backend)
	assert.Equal(t, PricingSnapshot, cfg.Orders.Pricing)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.NoError(t, cfg.ValidateServer())
}

func TestValidateServerRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "quickcart")

	err := LoadConfig().ValidateServer()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidateServerRequiresDatabase(t *testing.T) {
	cfg := Config{JWTSecret: "s", Database: DatabaseConfig{Driver: DriverPostgres}}
	assert.ErrorContains(t, cfg.ValidateServer(), "DB_HOST")

	cfg.Database = DatabaseConfig{Driver: DriverMongo}
	assert.ErrorContains(t, cfg.ValidateServer(), "MONGODB_URI")

	cfg.Database = DatabaseConfig{Driver: "sqlite"}
	assert.Error(t, cfg.ValidateServer())
}

func TestValidateServerRejectsUnknownBackends(t *testing.T) {
	base := Config{
		JWTSecret: "s",
		Database:  DatabaseConfig{Driver: DriverMongo, MongoURI: "mongodb://localhost"},
		Storage:   StorageConfig{Backend: BackendNone},
		MQ:        MQConfig{Backend: BackendNone},
		Orders:    OrdersConfig{Pricing: PricingCatalog},
	}
	require.NoError(t, base.ValidateServer())

	cfg := base
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.ValidateServer())

	cfg = base
	cfg.MQ.Backend = "kafka"
	assert.Error(t, cfg.ValidateServer())

	cfg = base
	cfg.Orders.Pricing = "free"
	assert.Error(t, cfg.ValidateServer())
}

func TestEnvParsing(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MINIO_USE_SSL", "yes-please")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg := LoadConfig()
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.Storage.Minio.UseSSL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
