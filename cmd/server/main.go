package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"fitlog-go/internal/config"
	"fitlog-go/internal/logging"
	"fitlog-go/internal/remotestore"
)

func main() {
	cfg, err := config.LoadServer(os.Getenv("REMOTESTORE_CONFIG"))
	if err != nil {
		logging.New("error").Errorf("load config: %v", err)
		os.Exit(2)
	}
	logger := logging.NewWithConfig(cfg.Log)
	gin.SetMode(gin.ReleaseMode)

	store, err := remotestore.New(cfg, logger)
	if err != nil {
		logger.Errorf("open database: %v", err)
		os.Exit(1)
	}
	defer store.Close()
	if cfg.AuthToken == "" {
		logger.Warnf("auth_token is empty, the API is open to anyone who can reach it")
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: store.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Infof("remote store listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
