// Command authorizer is the API Gateway REQUEST authorizer Lambda.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/todo/auth"
	"github.com/jacentio/todo/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Logger(os.Stdout)

	authCfg, err := cfg.Auth()
	if err != nil {
		log.Fatalf("auth config: %v", err)
	}

	// The key set lives for the lifetime of the execution environment.
	keySet := auth.NewKeySet(authCfg, http.DefaultClient, logger)
	a := auth.NewAuthorizer(auth.NewVerifier(keySet, authCfg, logger), logger)
	lambda.Start(a.Handle)
}
