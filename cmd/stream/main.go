// Command stream is the Lambda subscribed to the table's stream. It removes
// the notifications of deleted tasks.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/todo/internal/config"
	"github.com/jacentio/todo/store"
	"github.com/jacentio/todo/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Logger(os.Stdout)

	client, err := cfg.DynamoDB(context.Background())
	if err != nil {
		log.Fatalf("dynamodb: %v", err)
	}

	h := stream.NewHandler(store.New(client, cfg.Store(), logger), logger)
	lambda.Start(h.HandleTaskRemoval)
}
