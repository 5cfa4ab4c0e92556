package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/imrishuroy/go-order-fulfillment/internal/logging"
	"github.com/imrishuroy/go-order-fulfillment/internal/production"
	log "github.com/sirupsen/logrus"
)

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"))

	table := os.Getenv("PRODUCTION_TABLE")
	if table == "" {
		log.Fatal("PRODUCTION_TABLE environment variable is required")
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}
	p := NewProcessor(production.NewIntakeStore(clients.DynamoDB, table))

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if os.Getenv("RUN_LOCAL") == "true" {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"request_id":"local-req-1","order_id":"local-order-1","order_number":"PED-1","items":[{"product_id":"local-product-1","product_name":"Local","quantity":"1"}]}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: testBody}},
		}
		resp, _ := p.Handle(context.Background(), event)
		if len(resp.BatchItemFailures) > 0 {
			log.Fatalf("local handler failed for %d message(s)", len(resp.BatchItemFailures))
		}
		return
	}

	lambda.Start(p.Handle)
}
