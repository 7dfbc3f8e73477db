package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env             string        `envconfig:"APP_ENV" default:"development"`
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	GRPCPort        string        `envconfig:"GRPC_PORT" default:"50060"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	CatalogURL     string        `envconfig:"CATALOG_URL" default:"http://localhost:8081"`
	CatalogTimeout time.Duration `envconfig:"CATALOG_TIMEOUT" default:"5s"`

	// StorageDriver selects where per-session state lives: memory, redis or mongo.
	StorageDriver string        `envconfig:"STORAGE_DRIVER" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	MongoURI      string        `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDBName   string        `envconfig:"MONGO_DB_NAME" default:"storefront"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionIdle   time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	CookieSecure  bool          `envconfig:"COOKIE_SECURE" default:"false"`

	Pricing

	PaymentGatewayURL string        `envconfig:"PAYMENT_GATEWAY_URL" default:""`
	PaymentTimeout    time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
	OffsiteMethods    []string      `envconfig:"OFFSITE_METHODS" default:"credit-card"`

	// OrderSink selects where placed orders are recorded: none, postgres or kafka.
	OrderSink      string   `envconfig:"ORDER_SINK" default:"none"`
	PostgresDSN    string   `envconfig:"POSTGRES_DSN" default:"host=localhost port=5432 user=postgres password=postgres dbname=storefront sslmode=disable"`
	MigrationsPath string   `envconfig:"ORDERS_MIGRATIONS_PATH" default:"./internal/orders/migrations"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"orders-placed"`
}

type Pricing struct {
	FreeShippingThreshold decimal.Decimal `envconfig:"FREE_SHIPPING_THRESHOLD" default:"100.00"`
	FlatShippingFee       decimal.Decimal `envconfig:"FLAT_SHIPPING_FEE" default:"15.00"`
	TaxRate               decimal.Decimal `envconfig:"TAX_RATE" default:"0.05"`
}

// CatalogConfig configures the development catalog backend.
type CatalogConfig struct {
	Env            string `envconfig:"APP_ENV" default:"development"`
	HTTPPort       string `envconfig:"CATALOG_PORT" default:"8081"`
	DBPath         string `envconfig:"CATALOG_DB_PATH" default:"./catalog.db"`
	MigrationsPath string `envconfig:"CATALOG_MIGRATIONS_PATH" default:"./internal/catalogdb/migrations"`
}

// OrdersConfig configures the projector that moves order events from Kafka
// into Postgres.
type OrdersConfig struct {
	Env            string   `envconfig:"APP_ENV" default:"development"`
	GRPCPort       string   `envconfig:"ORDERS_GRPC_PORT" default:"50061"`
	PostgresDSN    string   `envconfig:"POSTGRES_DSN" default:"host=localhost port=5432 user=postgres password=postgres dbname=storefront sslmode=disable"`
	MigrationsPath string   `envconfig:"ORDERS_MIGRATIONS_PATH" default:"./internal/orders/migrations"`
	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"orders-placed"`
	ConsumerGroup  string   `envconfig:"KAFKA_CONSUMER_GROUP" default:"orders-projector"`
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadCatalog() (*CatalogConfig, error) {
	_ = godotenv.Load()

	var cfg CatalogConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadOrders() (*OrdersConfig, error) {
	_ = godotenv.Load()

	var cfg OrdersConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
