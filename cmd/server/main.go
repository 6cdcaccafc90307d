package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dgallion1/docsplit/internal/api"
	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/lark"
	"github.com/dgallion1/docsplit/internal/logger"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/pipeline"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Lark is optional; without credentials only uploads and raw block
	// lists are accepted.
	var fetcher pipeline.Fetcher
	if cfg.LarkEnabled() {
		client, err := lark.NewClient(lark.Config{
			AppID:       cfg.Lark.AppID,
			AppSecret:   cfg.Lark.AppSecret,
			BaseURL:     cfg.Lark.BaseURL,
			HostPattern: cfg.Lark.HostPattern,
		}, logger.Component(log, "lark"))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid lark configuration")
		}
		fetcher = client
	} else {
		log.Warn().Msg("LARK_APP_ID not set, lark import disabled")
	}

	conv := pipeline.NewConverter(fetcher, pipeline.ConverterOptions{
		Render: cfg.RenderOptions(),
		Strict: cfg.Render.Strict,
		Chunk:  cfg.ChunkConfig(),
		Parser: cfg.ParserOptions(),
	}, m, logger.Component(log, "converter"))

	orch := pipeline.NewOrchestrator(pipeline.Config{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
		JobTTL:    cfg.Pipeline.JobTTL,
	}, conv, m, logger.Component(log, "pipeline"))
	orch.Start(ctx)

	srv := api.NewServer(orch, m, reg, logger.Component(log, "http"), cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		orch.Stop()
	}()

	log.Info().Str("port", cfg.Port).Bool("lark", cfg.LarkEnabled()).Msg("starting docsplit")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
	<-done
}
