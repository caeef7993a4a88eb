package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Configuration This struct holds config envs and values
// which are used by the receipt services. Only this struct must be used
// to hold any configuration values, no direct access to
// env, ini or any other config source should be made.
// Association identity and SMTP credentials are not here: they live in
// the association_settings row and are read on every use.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=receipt_gateway"`
	AppDebug            bool   `env:"APP_DEBUG,default=true"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`
	AppBaseUrl          string `env:"APP_BASE_URL"`

	HttpListenAddr            string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpBaseRequestUrl        string        `env:"HTTP_BASE_REQUEST_URI,default=/api/v1"`
	HttpServerReadTimeout     int           `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int           `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int           `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int           `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`
	HttpRequestTimeout        time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=60s"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`
	PostgresSSLMode       string `env:"POSTGRES_SSL_MODE,default=disable"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=receipts"`

	PromNamespace string `env:"PROM_NAMESPACE,default=receipts"`

	ProfilerEnable bool `env:"PROFILER_ENABLE"`
	ProfilerPort   int  `env:"PROFILER_PORT"`

	LogLevel []string `env:"LOG_LEVEL"`

	ConverterURL      string        `env:"CONVERTER_URL"`
	ConverterUsername string        `env:"CONVERTER_USERNAME"`
	ConverterPassword string        `env:"CONVERTER_PASSWORD"`
	ConverterTimeout  time.Duration `env:"CONVERTER_TIMEOUT,default=30s"`

	StorageBucket        string `env:"STORAGE_BUCKET"`
	StorageRegion        string `env:"STORAGE_REGION,default=eu-west-3"`
	StorageEndpoint      string `env:"STORAGE_ENDPOINT"`
	StorageAccessKey     string `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey     string `env:"STORAGE_SECRET_KEY"`
	StoragePublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL"`
	StorageArchiveHTML   bool   `env:"STORAGE_ARCHIVE_HTML,default=true"`

	// SigV4 presigned URLs are capped at 168h by S3
	StorageRecipientURLTTL time.Duration `env:"STORAGE_RECIPIENT_URL_TTL"`

	ReceiptBatchSize       int           `env:"RECEIPT_BATCH_SIZE,default=50"`
	ReceiptBatchDelay      time.Duration `env:"RECEIPT_BATCH_DELAY,default=2s"`
	ReceiptMinAmount       string        `env:"RECEIPT_MIN_AMOUNT,default=0"`
	ReceiptClaimTimeout    time.Duration `env:"RECEIPT_CLAIM_TIMEOUT,default=10m"`
	ReceiptLogRetention    time.Duration `env:"RECEIPT_LOG_RETENTION,default=8760h"`
	ReceiptTrackingBaseURL string        `env:"RECEIPT_TRACKING_BASE_URL"`

	CacheBackend    string        `env:"CACHE_BACKEND,default=memory"`
	CacheTTL        time.Duration `env:"CACHE_TTL,default=5m"`
	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES,default=1000"`

	BatchInterval time.Duration `env:"BATCH_INTERVAL"`
}

// MinAmount parses RECEIPT_MIN_AMOUNT. Load already rejected malformed values.
func (c *Config) MinAmount() decimal.Decimal {
	d, err := decimal.NewFromString(c.ReceiptMinAmount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	if _, err = decimal.NewFromString(c.ReceiptMinAmount); err != nil {
		return errors.Wrap(err, "invalid RECEIPT_MIN_AMOUNT")
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "redis" {
		return errors.Errorf("invalid CACHE_BACKEND %q, expected memory or redis", c.CacheBackend)
	}

	config = c
	return nil
}

// Set replaces the loaded configuration. Used by tests and tools that build
// the config in code.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
