// Command api is the Lambda behind the API Gateway proxy integration.
package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/todo/api"
	"github.com/jacentio/todo/internal/config"
	"github.com/jacentio/todo/repository"
	"github.com/jacentio/todo/store"
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

	s := store.New(client, cfg.Store(), logger)
	h := api.New(repository.New(s, logger), logger)
	lambda.Start(h.HandleLambda)
}
