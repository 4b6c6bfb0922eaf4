package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samsamfire/eemclient/internal/logsink"
	"github.com/samsamfire/eemclient/pkg/config"
	"github.com/samsamfire/eemclient/pkg/engine"
	"github.com/samsamfire/eemclient/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfgPath := flag.String("c", "eemclient.ini", "plant configuration file")
	section := flag.String("p", "plant1", "ini section naming the plant to poll")
	metricsAddr := flag.String("metrics", ":9110", "address to serve /metrics on")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	cfg, err := config.Load(*cfgPath, *section)
	if err != nil {
		logger.WithError(err).Fatal("failed to load plant configuration")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry, cfg.Name)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.WithError(err).Warn("metrics server stopped")
		}
	}()

	plantLog := logger.WithField("plant", cfg.Name)
	sink := logsink.New(plantLog)

	eng := engine.New(engine.Config{
		Name:      cfg.Name,
		Addr:      fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		CCID:      ccIDBytes(cfg.CCID),
		Transport: "tcp",
	}, sink, nil, m, plantLog)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	plantLog.WithField("addr", cfg.Host).Info("starting eemclient")
	eng.Run(ctx)
}

// ccIDBytes renders the station sub-address byte as its two ASCII hex
// digits, the form the wire protocol's select frames carry it in.
func ccIDBytes(ccID byte) [2]byte {
	s := fmt.Sprintf("%02X", ccID)
	return [2]byte{s[0], s[1]}
}
