package main

import (
	"context"
	"flag"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"essaim.dev/kinectview/clock"
	"essaim.dev/kinectview/config"
	"essaim.dev/kinectview/depthstream"
	"essaim.dev/kinectview/logger"
	"essaim.dev/kinectview/metrics"
	"essaim.dev/kinectview/synthetic"
)

var (
	streamAddrFlag  string
	fpsFlag         int
	logLevelFlag    string
	logFormatFlag   string
	metricsAddrFlag string
)

func init() {
	_ = config.Load()
	cfg := config.FromEnv()

	flag.StringVar(&streamAddrFlag, "stream-addr", cfg.StreamAddr, "multicast address and port the frames are sent to")
	flag.IntVar(&fpsFlag, "fps", cfg.FPS, "frame rate of the synthetic source")
	flag.StringVar(&logLevelFlag, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flag.StringVar(&logFormatFlag, "log-format", cfg.LogFormat, "log format: text or json")
	flag.StringVar(&metricsAddrFlag, "metrics-addr", cfg.MetricsAddr, "address serving /metrics, disabled when empty")
}

func main() {
	flag.Parse()

	log := logger.New(logLevelFlag, logFormatFlag)
	met := metrics.New()

	addr, err := netip.ParseAddrPort(streamAddrFlag)
	if err != nil {
		log.Error("could not parse stream address", "addr", streamAddrFlag, "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if metricsAddrFlag != "" {
		go func() {
			if err := met.Serve(ctx, metricsAddrFlag, log); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	source := synthetic.New(clock.NewFrameRateClock(fpsFlag), log)
	defer source.Close()

	srv, err := depthstream.NewServer(addr, source, log, met)
	if err != nil {
		log.Error("could not create stream server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("streaming", "addr", addr, "fps", fpsFlag)

	if err := srv.Run(ctx); err != nil {
		log.Error("stream server stopped", "error", err)
		os.Exit(1)
	}

	log.Info("stream server stopped")
}
