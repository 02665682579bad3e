package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/exp/shiny/driver"

	"essaim.dev/kinectview/clock"
	"essaim.dev/kinectview/config"
	"essaim.dev/kinectview/depthstream"
	"essaim.dev/kinectview/display"
	"essaim.dev/kinectview/logger"
	"essaim.dev/kinectview/metrics"
	"essaim.dev/kinectview/sensor"
	"essaim.dev/kinectview/synthetic"
	"essaim.dev/kinectview/viewer"
)

const (
	sourceSynthetic = "synthetic"
	sourceStream    = "stream"
)

var (
	sourceFlag      string
	streamAddrFlag  string
	ifaceFlag       string
	fpsFlag         int
	mirrorFlag      bool
	logLevelFlag    string
	logFormatFlag   string
	metricsAddrFlag string
)

func init() {
	_ = config.Load()
	cfg := config.FromEnv()

	flag.StringVar(&sourceFlag, "source", cfg.Source, "frame source: synthetic or stream")
	flag.StringVar(&streamAddrFlag, "stream-addr", cfg.StreamAddr, "multicast address and port of the depth stream")
	flag.StringVar(&ifaceFlag, "iface", "", "network interface used to join the depth stream group")
	flag.IntVar(&fpsFlag, "fps", cfg.FPS, "frame rate of the synthetic source")
	flag.BoolVar(&mirrorFlag, "mirror", cfg.Mirror, "mirror the images horizontally")
	flag.StringVar(&logLevelFlag, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flag.StringVar(&logFormatFlag, "log-format", cfg.LogFormat, "log format: text or json")
	flag.StringVar(&metricsAddrFlag, "metrics-addr", cfg.MetricsAddr, "address serving /metrics, disabled when empty")
}

func main() {
	flag.Parse()

	log := logger.New(logLevelFlag, logFormatFlag)
	met := metrics.New()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if metricsAddrFlag != "" {
		go func() {
			if err := met.Serve(ctx, metricsAddrFlag, log); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	s, err := newSensor(log, met)
	if err != nil {
		log.Error("could not create sensor", "source", sourceFlag, "error", err)
		os.Exit(1)
	}
	defer s.Close()

	win := display.New("Kinect Viewer", mirrorFlag, log)
	v := viewer.New(s, win, log, met)

	go func() {
		if err := v.Run(ctx); err != nil {
			log.Error("viewer stopped", "error", err)
		}
		win.Close()
	}()

	go func() {
		<-ctx.Done()
		win.Close()
	}()

	log.Info("viewer starting", "source", sourceFlag, "mirror", mirrorFlag)

	driver.Main(win.Display)
	cancel()

	if err := win.Err(); err != nil {
		log.Error("display stopped", "error", err)
		os.Exit(1)
	}

	log.Info("viewer stopped")
}

func newSensor(log *slog.Logger, met *metrics.Metrics) (sensor.Sensor, error) {
	switch sourceFlag {
	case sourceSynthetic:
		return synthetic.New(clock.NewFrameRateClock(fpsFlag), log), nil

	case sourceStream:
		addr, err := netip.ParseAddrPort(streamAddrFlag)
		if err != nil {
			return nil, fmt.Errorf("could not parse stream address: %w", err)
		}

		var iface *net.Interface
		if ifaceFlag != "" {
			iface, err = net.InterfaceByName(ifaceFlag)
			if err != nil {
				return nil, fmt.Errorf("could not find interface: %w", err)
			}
		}

		return depthstream.NewClient(addr, iface, log, met)

	default:
		return nil, fmt.Errorf("unknown source %q", sourceFlag)
	}
}
