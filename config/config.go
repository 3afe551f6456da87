package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"

	BackendNone     = "none"
	BackendMinio    = "minio"
	BackendGCS      = "gcs"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"

	PricingSnapshot = "snapshot"
	PricingCatalog  = "catalog"

	CartStoreFile  = "file"
	CartStoreRedis = "redis"
)

type Config struct {
	ServerPort int
	JWTSecret  string
	Database   DatabaseConfig
	Storage    StorageConfig
	MQ         MQConfig
	Orders     OrdersConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Client     ClientConfig

	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool

	MaxOpenConns int
	MaxIdleConns int

	MongoURI      string
	MongoDatabase string
}

type StorageConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	Backend       string
	OrdersChannel string
	RabbitMQ      RabbitMQConfig
	PubSub        PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	Exchange        string
	ConsumerQueue   string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
	OrderedDelivery    bool
}

// OrdersConfig controls how submitted orders are priced.
type OrdersConfig struct {
	Pricing string
}

type AuthConfig struct {
	AllowRoleSignup bool
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type LogConfig struct {
	Level  string
	Format string
}

// ClientConfig configures the command line storefront client.
type ClientConfig struct {
	APIURL        string
	CartStore     string
	CartDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Driver:        strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		Host:          getEnv("DB_HOST", ""),
		Port:          getEnvInt("DB_PORT", 5432),
		User:          getEnv("DB_USER", "quickcart"),
		Password:      getEnv("DB_PASSWORD", ""),
		DBName:        getEnv("DB_NAME", ""),
		UseSSL:        getEnvBool("DB_SSL", false),
		MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "quickcart"),
	}

	storageConfig := StorageConfig{
		Backend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendNone)),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "product-images"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}

	mqConfig := MQConfig{
		Backend:       strings.ToLower(getEnv("MQ_BACKEND", BackendNone)),
		OrdersChannel: getEnv("ORDER_EVENTS_CHANNEL", "orders.created"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			Exchange:        getEnv("RABBITMQ_EXCHANGE", "quickcart.events"),
			ConsumerQueue:   getEnv("RABBITMQ_CONSUMER_QUEUE", "quickcart.notifier"),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			OrderedDelivery:    getEnvBool("PUBSUB_ORDERED_DELIVERY", true),
		},
	}

	clientConfig := ClientConfig{
		APIURL:        strings.TrimRight(getEnv("API_URL", "http://localhost:8080"), "/"),
		CartStore:     strings.ToLower(getEnv("CART_STORE", CartStoreFile)),
		CartDir:       getEnv("CART_DIR", defaultCartDir()),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		JWTSecret:  strings.TrimSpace(getEnv("JWT_SECRET", "")),
		Database:   dbConfig,
		Storage:    storageConfig,
		MQ:         mqConfig,
		Orders:     OrdersConfig{Pricing: strings.ToLower(getEnv("ORDER_PRICING", PricingSnapshot))},
		Auth:       AuthConfig{AllowRoleSignup: getEnvBool("AUTH_ALLOW_ROLE_SIGNUP", true)},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Client:      clientConfig,
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

// ValidateServer reports configuration the API server cannot start without.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case BackendNone, BackendMinio, BackendGCS:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.MQ.Backend {
	case BackendNone, BackendRabbitMQ, BackendPubSub:
	default:
		return fmt.Errorf("unknown MQ_BACKEND %q", c.MQ.Backend)
	}
	switch c.Orders.Pricing {
	case PricingSnapshot, PricingCatalog:
	default:
		return fmt.Errorf("unknown ORDER_PRICING %q", c.Orders.Pricing)
	}
	return nil
}

// Validate reports a missing database connection.
func (c DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.DBName) == "" {
			return errors.New("DB_HOST and DB_NAME are required")
		}
	case DriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return errors.New("MONGODB_URI is required")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.Driver)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultCartDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quickcart"
	}
	return filepath.Join(home, ".quickcart")
}
