package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/imrishuroy/go-order-fulfillment/internal/config"
	"github.com/imrishuroy/go-order-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-order-fulfillment/internal/handlers"
	"github.com/imrishuroy/go-order-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-order-fulfillment/internal/logging"
	"github.com/imrishuroy/go-order-fulfillment/internal/metrics"
	"github.com/imrishuroy/go-order-fulfillment/internal/observability"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/production"
	"github.com/imrishuroy/go-order-fulfillment/internal/sales"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.PrometheusMiddleware(config.ServiceName))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

// newQueue picks the production queue driver. The returned closer is nil for SQS.
func newQueue(cfg *config.Config, clients *aws.AWSClients) (production.Enqueuer, func() error) {
	if cfg.QueueDriver == config.QueueDriverKafka {
		q := production.NewKafkaQueue(production.NewKafkaWriter(cfg.KafkaBrokers, cfg.ProductionTopic))
		return q, q.Close
	}
	return production.NewSQSQueue(clients.Publisher(cfg.QueueURL)), nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logging.Setup(cfg.LogLevel)

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.SalesDatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to sales database: %v", err)
	}
	defer pool.Close()
	saleStore := sales.NewPGStore(pool)
	if err := saleStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to prepare sales schema: %v", err)
	}

	orderStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.OrderItemsTable)
	ledger := stock.NewDynamoLedger(clients.DynamoDB, cfg.ProductsTable, cfg.LedgerMode == config.LedgerModeStrict)

	queue, closeQueue := newQueue(cfg, clients)
	if closeQueue != nil {
		defer func() {
			if err := closeQueue(); err != nil {
				log.WithError(err).Warn("production queue close failed")
			}
		}()
	}

	orchestrator := fulfillment.NewOrchestrator(
		stock.NewValidator(ledger),
		orders.NewWriter(orderStore),
		stock.NewDeductor(ledger),
		production.NewDispatcher(orderStore, ledger, queue, production.NewBreaker("production-"+queue.Driver(), config.ServiceName)),
		sales.NewPromoter(ledger, saleStore, orderStore),
		fulfillment.NewAnomalyRecorder(orderStore, metrics.NewAlarmPublisher(clients.CloudWatch, cfg.MetricsNamespace)),
	)

	r := setupRouter(handlers.HandlerConfig{
		Workflow:    orchestrator,
		Orders:      orderStore,
		Idempotency: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
	})

	log.WithFields(log.Fields{
		"region":       clients.Region,
		"queue_driver": queue.Driver(),
		"ledger_mode":  cfg.LedgerMode,
	}).Info("order fulfillment api configured")

	// if RUN_LOCAL is set to "true", run local HTTP server for development.
	if cfg.RunLocal {
		addr := ":8080"
		log.Infof("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
