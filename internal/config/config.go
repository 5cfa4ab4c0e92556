package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ServiceName    = "order-fulfillment"
	ServiceVersion = "0.3.0"
)

// Production queue drivers.
const (
	QueueDriverSQS   = "sqs"
	QueueDriverKafka = "kafka"
)

// Ledger modes. Relaxed keeps the unsynchronised check-then-deduct behaviour,
// strict refuses decrements that would drive stock negative.
const (
	LedgerModeRelaxed = "relaxed"
	LedgerModeStrict  = "strict"
)

const defaultIdempotencyTTL = 48 * time.Hour

// Config holds everything the api and worker binaries read from the environment.
type Config struct {
	OrdersTable      string
	OrderItemsTable  string
	ProductsTable    string
	IdempotencyTable string
	ProductionTable  string

	QueueDriver     string
	QueueURL        string
	KafkaBrokers    []string
	ProductionTopic string

	SalesDatabaseURL string

	LedgerMode       string
	LogLevel         string
	OtelEndpoint     string
	MetricsNamespace string
	IdempotencyTTL   time.Duration
	RunLocal         bool
}

// Load reads the configuration, applying defaults and rejecting missing values.
func Load() (*Config, error) {
	cfg := &Config{
		OrdersTable:      os.Getenv("ORDERS_TABLE"),
		OrderItemsTable:  os.Getenv("ORDER_ITEMS_TABLE"),
		ProductsTable:    os.Getenv("PRODUCTS_TABLE"),
		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		ProductionTable:  os.Getenv("PRODUCTION_TABLE"),
		QueueDriver:      strings.ToLower(getenv("PRODUCTION_QUEUE_DRIVER", QueueDriverSQS)),
		QueueURL:         os.Getenv("PRODUCTION_QUEUE_URL"),
		KafkaBrokers:     splitCSV(os.Getenv("KAFKA_BROKERS")),
		ProductionTopic:  getenv("PRODUCTION_TOPIC", "production-requests"),
		SalesDatabaseURL: os.Getenv("SALES_DATABASE_URL"),
		LedgerMode:       strings.ToLower(getenv("LEDGER_MODE", LedgerModeRelaxed)),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		OtelEndpoint:     os.Getenv("OTEL_ENDPOINT"),
		MetricsNamespace: getenv("METRICS_NAMESPACE", "OrderFulfillment"),
		IdempotencyTTL:   defaultIdempotencyTTL,
		RunLocal:         os.Getenv("RUN_LOCAL") == "true",
	}

	if raw := os.Getenv("IDEMPOTENCY_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = ttl
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := map[string]string{
		"ORDERS_TABLE":       c.OrdersTable,
		"ORDER_ITEMS_TABLE":  c.OrderItemsTable,
		"PRODUCTS_TABLE":     c.ProductsTable,
		"IDEMPOTENCY_TABLE":  c.IdempotencyTable,
		"SALES_DATABASE_URL": c.SalesDatabaseURL,
	}
	for _, name := range []string{"ORDERS_TABLE", "ORDER_ITEMS_TABLE", "PRODUCTS_TABLE", "IDEMPOTENCY_TABLE", "SALES_DATABASE_URL"} {
		if required[name] == "" {
			return fmt.Errorf("%s environment variable is required", name)
		}
	}

	switch c.QueueDriver {
	case QueueDriverSQS:
		if c.QueueURL == "" {
			return fmt.Errorf("PRODUCTION_QUEUE_URL environment variable is required for the sqs driver")
		}
	case QueueDriverKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS environment variable is required for the kafka driver")
		}
	default:
		return fmt.Errorf("unknown PRODUCTION_QUEUE_DRIVER %q", c.QueueDriver)
	}

	if c.LedgerMode != LedgerModeRelaxed && c.LedgerMode != LedgerModeStrict {
		return fmt.Errorf("unknown LEDGER_MODE %q", c.LedgerMode)
	}
	return nil
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
