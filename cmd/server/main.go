package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edustack/material-importer/api/handlers"
	"github.com/edustack/material-importer/api/routes"
	cfg "github.com/edustack/material-importer/config"
	"github.com/edustack/material-importer/internal/service/material"
	"github.com/edustack/material-importer/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	appCfg := cfg.GetAppConfig()

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(appCfg.Logger.Level),
		logger.WithEncoding(appCfg.Logger.Encoding),
		logger.WithOutputPaths([]string{"stdout", "logs/app.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// init material importer
	importer, err := material.GetService(log)
	if err != nil {
		log.Fatal("Failed to get material service:", logger.Error(err))
	}

	// init handlers
	h := handlers.NewHandlers(importer, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    appCfg.Server.Addr,
		Handler: r,
	}

	// start server
	go func() {
		log.Info("Server starting", logger.String("addr", appCfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error:", logger.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown:", logger.Error(err))
	}

}
