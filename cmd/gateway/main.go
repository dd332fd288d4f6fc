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

	"go.uber.org/zap"

	"github.com/meridiangw/gateway/internal/admin"
	"github.com/meridiangw/gateway/internal/backend"
	"github.com/meridiangw/gateway/internal/chain"
	"github.com/meridiangw/gateway/internal/circuitbreaker"
	"github.com/meridiangw/gateway/internal/config"
	"github.com/meridiangw/gateway/internal/dispatcher"
	"github.com/meridiangw/gateway/internal/filter"
	"github.com/meridiangw/gateway/internal/logging"
	"github.com/meridiangw/gateway/internal/metrics"
	"github.com/meridiangw/gateway/internal/registry"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("gateway %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	if *validateOnly {
		fmt.Println("configuration is valid")
		os.Exit(0)
	}

	zapLogger, closer, err := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Output:     cfg.Logging.Output,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		LocalTime:  cfg.Logging.LocalTime,
	})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logging.SetGlobal(zapLogger)
	defer zapLogger.Sync()

	reg := registry.New()
	if err := config.Bootstrap(cfg, reg); err != nil {
		zapLogger.Fatal("bootstrap registry", zap.Error(err))
	}

	breakers := circuitbreaker.NewRegistry()
	collector := metrics.NewCollector()
	client := backend.NewClient()

	filters := filter.NewRegistry()
	for _, f := range []filter.Filter{
		filter.NewIPSecurityFilter(),
		filter.NewRateLimitFilter(collector),
		filter.NewLoadBalanceFilter(reg),
		filter.NewCircuitBreakerFilter(breakers, collector),
		filter.NewCircuitBreakerResultFilter(collector),
	} {
		filters.Register(f)
	}

	preRule := []filter.Filter{
		filter.NewMonitorStartFilter(),
		filter.NewGrayFilter(),
		filter.NewMonitorEndFilter(zapLogger),
	}
	router := filter.NewRouterFilter(client)
	factory := chain.NewFactory(filters, preRule, router)

	disp := dispatcher.New(reg, factory, zapLogger, collector)

	httpServer := &http.Server{
		Addr:         cfg.Listen,
		Handler:      disp,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var adminServer *http.Server
	if cfg.Admin.Enabled {
		adminServer = &http.Server{
			Addr:         cfg.Admin.Address,
			Handler:      admin.New(reg, breakers, collector).Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
	}

	errCh := make(chan error, 2)
	go func() {
		zapLogger.Info("listening", zap.String("addr", cfg.Listen))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway listener: %w", err)
		}
	}()
	if adminServer != nil {
		go func() {
			zapLogger.Info("admin listening", zap.String("addr", cfg.Admin.Address))
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("admin listener: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		zapLogger.Error("server error", zap.Error(err))
	case <-quit:
		zapLogger.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if err := httpServer.Shutdown(ctx); err != nil {
		shutdownErr = errors.Join(shutdownErr, err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(ctx); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}
	if shutdownErr != nil {
		zapLogger.Error("shutdown error", zap.Error(shutdownErr))
		os.Exit(1)
	}
}
