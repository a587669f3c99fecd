// Command devserver serves the API over plain HTTP for local development,
// typically against DynamoDB Local. Requests are authorized in-process with
// the same verifier the authorizer Lambda uses.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jacentio/todo/api"
	"github.com/jacentio/todo/auth"
	"github.com/jacentio/todo/internal/config"
	"github.com/jacentio/todo/repository"
	"github.com/jacentio/todo/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Logger(os.Stdout)

	authCfg, err := cfg.Auth()
	if err != nil {
		log.Fatalf("auth config: %v", err)
	}
	client, err := cfg.DynamoDB(ctx)
	if err != nil {
		log.Fatalf("dynamodb: %v", err)
	}

	s := store.New(client, cfg.Store(), logger)
	h := api.New(repository.New(s, logger), logger)
	keySet := auth.NewKeySet(authCfg, http.DefaultClient, logger)
	authorizer := auth.NewAuthorizer(auth.NewVerifier(keySet, authCfg, logger), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:    []string{"Content-Type", auth.HeaderAuthorization, auth.HeaderUserID},
		MaxAge:          12 * time.Hour,
	}))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, api.Body{Message: "ok"})
	})
	api.RegisterRoutes(router, h, api.RequireOwner(authorizer))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("dev server listening", "addr", cfg.Addr, "table", cfg.TableName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}
