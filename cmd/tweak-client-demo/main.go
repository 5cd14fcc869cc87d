// Command tweak-client-demo connects to a tweak-server-demo instance,
// waits for its sample items to appear, and logs every change.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	cfg.Params = "role=client"
	if *debug {
		cfg.LogLevel = "debug"
	}
	if cfg.MetricsAddr == ":2112" {
		// avoid clashing with a tweak-server-demo instance on the default
		// port when both demos run on the same host.
		cfg.MetricsAddr = ":2113"
	}

	logger := obs.NewLogger(obs.ParseLevel(cfg.LogLevel), obs.LogFormat(cfg.LogFormat))
	logger.Info().Str("backend", cfg.BackendName).Str("uri", cfg.URI).Msg("starting tweak-client-demo")

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
		OnNewItem: func(id uint64) {
			logger.Info().Uint64("id", id).Msg("new item")
		},
		OnItemRemoved: func(id uint64) {
			logger.Info().Uint64("id", id).Msg("item removed")
		},
		OnCurrentValueChanged: func(id uint64, v variant.Value) {
			logger.Info().Uint64("id", id).Str("value", v.String()).Msg("current value changed")
		},
	}

	transportOpts := transport.Options{
		MaxChunkPayload: cfg.MaxChunkPayload,
		TransmitTimeout: time.Duration(cfg.TransportTimeout) * time.Millisecond,
	}
	cli, err := tweak.NewClientContext(cfg.BackendName, cfg.Params, cfg.URI, callbacks, cfg.QueueMaxBatch,
		transportOpts, obs.Observability{Logger: logger, Metrics: metrics})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create client context")
	}
	cli.SetLogger(logger)
	defer func() {
		if err := cli.Destroy(); err != nil {
			logger.Error().Err(err).Msg("error during client shutdown")
		}
	}()

	ids, status := cli.WaitURIs([]string{"/demo/gain", "/demo/threshold", "/demo/label"}, 10*time.Second)
	if !status.OK() {
		logger.Warn().Str("status", status.String()).Msg("timed out waiting for server items")
	} else {
		logger.Info().Int("count", len(ids)).Msg("resolved server items")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down tweak-client-demo")
}
