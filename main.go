package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"gemini-proxy/backend"
	"gemini-proxy/config"
	"gemini-proxy/handler"
	"gemini-proxy/logging"
	"gemini-proxy/metrics"
	"gemini-proxy/retry"
)

var version = "dev"

func main() {
	config.ParseArgs()
	if config.CliArgs.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if config.CliArgs.Debug {
		logging.InitLogger(logrus.DebugLevel)
	} else {
		logging.InitLogger(logrus.InfoLevel)
	}
	log := logging.GetLogger()

	cfg, err := config.Load(config.CliArgs.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %s", err)
	}
	if config.CliArgs.ListenAddress != "" {
		cfg.ListenAddress = config.CliArgs.ListenAddress
	}
	if !cfg.HasAPIKey() {
		log.Warnln("GEMINI_API_KEY is not set, every request will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	forwardMetrics := metrics.New(reg, log)
	go forwardMetrics.Monitor(ctx, time.Second)

	client := backend.NewBackendClient(backend.Options{
		Retry: retry.Config{
			MaxRetries:   cfg.Retry.MaxRetries,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		AttemptTimeout: cfg.UpstreamTimeout,
		Metrics:        forwardMetrics,
		Logger:         log,
	})
	httpHandler := handler.NewHTTPHandler(cfg, client, forwardMetrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", httpHandler)

	// Define the server
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Server shutdown failed: %v", err)
		}
	}()

	log.Infof("Starting server on %s", cfg.ListenAddress)
	// Start listening and serving
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}
	log.Infoln("Server stopped")
}
