// Command tweak-server-demo stands up a Tweak server context exposing a
// handful of sample items: config load, automaxprocs, metrics, then a
// signal-driven shutdown.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"

	tweak "github.com/cogentembedded/tweak-go"
	"github.com/cogentembedded/tweak-go/internal/config"
	"github.com/cogentembedded/tweak-go/internal/obs"
	"github.com/cogentembedded/tweak-go/internal/transport"
	"github.com/cogentembedded/tweak-go/variant"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOG_LEVEL)")
	flag.Parse()

	bootLogger := obs.NewLogger(obs.ParseLevel("info"), obs.LogFormatPretty)

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := obs.NewLogger(obs.ParseLevel(cfg.LogLevel), obs.LogFormat(cfg.LogFormat))
	logger.Info().Str("backend", cfg.BackendName).Str("uri", cfg.URI).Msg("starting tweak-server-demo")

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving prometheus metrics")
	}
	stopSampler := obs.StartResourceSampler(logger, registry)
	defer stopSampler()

	callbacks := tweak.Callbacks{
		OnConnectionStatusChanged: func(connected bool) {
			logger.Info().Bool("connected", connected).Msg("connection state changed")
		},
		OnCurrentValueChanged: func(id uint64, v variant.Value) {
			logger.Info().Uint64("id", id).Str("value", v.String()).Msg("current value changed")
		},
	}

	transportOpts := transport.Options{
		MaxChunkPayload: cfg.MaxChunkPayload,
		TransmitTimeout: time.Duration(cfg.TransportTimeout) * time.Millisecond,
	}
	srv, err := tweak.NewServerContext(cfg.BackendName, cfg.Params, cfg.URI, callbacks, cfg.QueueMaxBatch,
		transportOpts, obs.Observability{Logger: logger, Metrics: metrics})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server context")
	}
	srv.SetLogger(logger)
	defer func() {
		if err := srv.Destroy(); err != nil {
			logger.Error().Err(err).Msg("error during server shutdown")
		}
	}()

	gainID := srv.AddItem("/demo/gain", "output gain", "", variant.Float32(1.0), uuid.New())
	thresholdID := srv.AddItem("/demo/threshold", "detection threshold", "", variant.Sint32(50), uuid.New())
	nameID := srv.AddItem("/demo/label", "display label", "", variant.String("tweak-server-demo"), uuid.New())
	logger.Info().
		Uint64("gain_id", gainID).
		Uint64("threshold_id", thresholdID).
		Uint64("label_id", nameID).
		Msg("sample items registered")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down tweak-server-demo")
}
