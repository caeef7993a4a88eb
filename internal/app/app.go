package app

import (
	"context"
	"os"
	"strings"

	"github.com/nimasrn/receipt-gateway/internal/config"
	"github.com/nimasrn/receipt-gateway/internal/converter"
	"github.com/nimasrn/receipt-gateway/internal/idempotency"
	"github.com/nimasrn/receipt-gateway/internal/mailer"
	"github.com/nimasrn/receipt-gateway/internal/repository"
	"github.com/nimasrn/receipt-gateway/internal/services"
	"github.com/nimasrn/receipt-gateway/internal/storage"
	"github.com/nimasrn/receipt-gateway/internal/template"
	"github.com/nimasrn/receipt-gateway/pkg/logger"
	"github.com/nimasrn/receipt-gateway/pkg/pg"
	"github.com/nimasrn/receipt-gateway/pkg/prom"
	"github.com/nimasrn/receipt-gateway/pkg/redis"
	"github.com/pkg/errors"
)

// Receipts holds the wired receipt pipeline and the connections it owns.
type Receipts struct {
	DB      *pg.DB
	Service *services.ReceiptService
}

func ReadConfig(c *config.Config) pg.Config {
	return pg.Config{
		User:     c.PostgresReadUser,
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}

func WriteConfig(c *config.Config) pg.Config {
	return pg.Config{
		User:     c.PostgresWriteUser,
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
		SSLMode:  c.PostgresSSLMode,
	}
}

// NewReceipts connects to postgres, the cache backend and the object store
// and builds the receipt service from the loaded configuration.
func NewReceipts(ctx context.Context, c *config.Config) (*Receipts, error) {
	db, err := pg.CreateReadWrite(ReadConfig(c), WriteConfig(c), c.AppEnv == "dev")
	if err != nil {
		return nil, errors.Wrap(err, "failed connecting to pg")
	}

	cache, err := newCache(c)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, storage.Config{
		Bucket:        c.StorageBucket,
		Region:        c.StorageRegion,
		Endpoint:      c.StorageEndpoint,
		AccessKey:     c.StorageAccessKey,
		SecretKey:     c.StorageSecretKey,
		PublicBaseURL: c.StoragePublicBaseURL,
		ArchiveHTML:   c.StorageArchiveHTML,

		RecipientURLTTL: c.StorageRecipientURLTTL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed creating object store")
	}

	transactionRepo := repository.NewTransactionRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	svc := services.NewReceiptService(
		transactionRepo,
		deliveryLogRepo,
		settingsRepo,
		template.NewRenderer(),
		converter.NewClient(converter.Config{
			URL:      c.ConverterURL,
			Username: c.ConverterUsername,
			Password: c.ConverterPassword,
			Timeout:  c.ConverterTimeout,
		}),
		store,
		mailer.NewSMTPMailer(settingsRepo, 0),
		db,
		cache,
		services.ReceiptConfig{
			BatchSize:       c.ReceiptBatchSize,
			BatchDelay:      c.ReceiptBatchDelay,
			MinAmount:       c.MinAmount(),
			ClaimTimeout:    c.ReceiptClaimTimeout,
			LogRetention:    c.ReceiptLogRetention,
			TrackingBaseURL: c.ReceiptTrackingBaseURL,
			CacheBackend:    c.CacheBackend,
			Configured: map[string]bool{
				"converter_url":         c.ConverterURL != "",
				"converter_credentials": c.ConverterUsername != "" && c.ConverterPassword != "",
				"storage_bucket":        c.StorageBucket != "",
				"storage_credentials":   c.StorageAccessKey != "" && c.StorageSecretKey != "",
			},
		},
	)

	return &Receipts{DB: db, Service: svc}, nil
}

func newCache(c *config.Config) (idempotency.Cache, error) {
	if c.CacheBackend != "redis" {
		logger.Info("using in-process receipt cache", "ttl", c.CacheTTL, "max_entries", c.CacheMaxEntries)
		return idempotency.NewMemoryCache(c.CacheTTL, c.CacheMaxEntries), nil
	}

	adapter, err := redis.NewRedisAdapter("default", c.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: c.AppName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed connecting to redis")
	}
	logger.Info("using redis receipt cache", "addr", c.RedisAddr, "ttl", c.CacheTTL, "max_entries", c.CacheMaxEntries)
	return idempotency.NewRedisCache(adapter, c.CacheTTL, c.CacheMaxEntries), nil
}

// StartMetrics registers the prometheus collectors and serves them when a
// metrics address is configured.
func StartMetrics(c *config.Config) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, c.AppEnv, c.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	if c.AppDebugMetricsAddr == "" {
		return
	}
	uri := c.AppDebugMetricsURI
	if uri == "" {
		uri = "/metrics"
	}
	go prom.ListenAndServer(c.AppDebugMetricsAddr, uri)
}

// EnvPath returns the value of a --env=<path> argument, or "" when absent or
// unreadable.
func EnvPath(args []string) string {
	for _, v := range args {
		if strings.HasPrefix(v, "--env=") {
			path := strings.TrimPrefix(v, "--env=")
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return path
		}
	}
	return ""
}
