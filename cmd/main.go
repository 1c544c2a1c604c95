package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RefineAPI/internal/auth"
	"RefineAPI/internal/config"
	"RefineAPI/internal/db"
	"RefineAPI/internal/handler"
	"RefineAPI/internal/logger"
	"RefineAPI/internal/model"
	"RefineAPI/internal/router"
)

func main() {
	debugFlag := flag.Bool("d", false, "enable debug logging")
	flag.Parse()

	if err := logger.Init("."); err != nil {
		fmt.Fprintf(os.Stderr, "log init failed: %v\n", err)
		os.Exit(1)
	}
	logger.SetDebug(*debugFlag)
	cfg := config.LoadConfig()

	// PostgreSQL
	if err := db.InitPostgres(cfg.PostgresDSN); err != nil {
		logger.Error("postgres_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("postgres_connected", nil)

	// Redis is an optional cache tier for option lists.
	db.InitRedis(cfg.RedisAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := db.PingRedis(ctx); err != nil {
		logger.Warn("redis_unavailable", map[string]any{"error": err.Error()})
		db.RDB = nil
	}
	cancel()

	if err := model.InitRegistry(cfg.ModelsDir); err != nil {
		logger.Error("registry_init_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("resources_initialized", map[string]any{"resources": model.Names()})

	builder := &model.Builder{
		Config: cfg.Refine.Engine(),
		Options: &model.OptionsLoader{
			DB:       db.DB,
			Redis:    db.RDB,
			Cache:    model.NewOptionsCache(cfg.OptionsCache.TTL, cfg.OptionsCache.MaxBytes),
			RedisTTL: cfg.OptionsCache.TTL,
		},
	}

	var validator *auth.Validator
	if cfg.Auth.Enabled {
		v, err := auth.NewValidator(cfg.Auth.JWT)
		if err != nil {
			logger.Error("auth_init_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		validator = v
		builder.Roles = auth.RoleChecker(cfg.Auth.JWT.RolesClaim)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, handler.New(db.DB, builder), validator),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server_start", map[string]any{"port": cfg.Port})
	log.Printf("Starting server on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server_error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	_ = db.DB.Close()
}
