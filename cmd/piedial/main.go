package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"piedial/internal/capture"
	"piedial/internal/config"
	"piedial/internal/dial"
	appLog "piedial/internal/log"
	"piedial/internal/raster"
	"piedial/internal/source"
	"piedial/internal/svg"
	"piedial/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	svgPath    string
	ambient    bool
	at         string
	demo       bool
	capture    string
}

func main() {
	appLog.Info("piedial starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	var at time.Time
	if flags.at != "" {
		at, err = time.Parse(time.RFC3339, flags.at)
		if err != nil {
			appLog.Error("invalid --at", err, "at", flags.at)
			os.Exit(2)
		}
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"window_hours", conf.WindowHours,
		"source_count", len(conf.Sources),
		"once", flags.once,
		"demo", flags.demo,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	fonts, err := raster.NewFonts()
	if err != nil {
		appLog.Error("failed to load fonts", err)
		os.Exit(1)
	}

	clock := func() time.Time { return time.Now().In(conf.Location()) }
	if !at.IsZero() {
		clock = func() time.Time { return at.In(conf.Location()) }
	}

	var provider *source.Provider
	if flags.demo {
		provider = source.NewStatic(source.DemoEvents(clock()))
	} else {
		provider = source.New(conf)
		provider.SetClock(clock)
	}

	if flags.once {
		if err := runOnce(ctx, conf, flags, provider, fonts, clock); err != nil {
			appLog.Error("render failed", err)
			os.Exit(1)
		}
		appLog.Info("piedial exiting")
		return
	}

	go func() {
		if err := provider.Start(ctx); err != nil {
			appLog.Error("event source stopped", err)
			cancel()
		}
	}()

	srv := web.NewServer(conf, provider, fonts)
	srv.SetClock(clock)
	if err := web.StartServer(ctx, conf, srv); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}

	appLog.Info("piedial exiting")
}

// runOnce refreshes the sources a single time and writes the requested
// artifacts: the PNG at conf.Output, plus optional SVG and browser capture.
func runOnce(ctx context.Context, conf *config.Config, flags flagConfig, provider *source.Provider, fonts *raster.Fonts, clock func() time.Time) error {
	if err := provider.Refresh(ctx); err != nil {
		// Failed sources are already logged; render whatever we have.
		appLog.Warn("refresh finished with errors", "err", err)
	}

	renderer := dial.New(conf.Dial.RendererOptions(), fonts)
	frame := conf.Dial.Frame(clock(), flags.ambient, provider.Snapshot())

	img, rep, err := web.RenderImage(renderer, fonts, frame, conf.Dial.LowBitAmbient)
	if err != nil {
		return err
	}
	if err := raster.WritePNG(conf.Output, img); err != nil {
		return err
	}
	appLog.Info("dial rendered",
		"output", conf.Output,
		"at", frame.Now.Format(time.RFC3339),
		"ambient", frame.Ambient,
		"wedges", rep.Wedges,
		"titles", rep.Titles,
		"next_event_id", rep.NextEventID,
		"diagnostics", len(rep.Diagnostics),
	)

	if flags.svgPath != "" {
		c := svg.New(frame.Bounds)
		c.SetFontFamily("Go, sans-serif")
		if _, err := renderer.Render(c, frame); err != nil {
			return err
		}
		if err := os.WriteFile(flags.svgPath, c.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write svg: %w", err)
		}
		appLog.Info("dial svg written", "path", flags.svgPath)
	}

	if flags.capture != "" {
		if err := captureOnce(ctx, conf, flags, provider, fonts, frame.Now); err != nil {
			return err
		}
	}
	return nil
}

// captureOnce serves /dial.svg on a loopback port just long enough for a
// headless browser to screenshot it.
func captureOnce(ctx context.Context, conf *config.Config, flags flagConfig, provider *source.Provider, fonts *raster.Fonts, now time.Time) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("capture listener: %w", err)
	}

	local := *conf
	local.BasicAuth = nil
	srv := &http.Server{Handler: web.NewServer(&local, provider, fonts).Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("capture server failed", err)
		}
	}()
	defer srv.Close()

	q := url.Values{}
	q.Set("at", now.Format(time.RFC3339))
	q.Set("ambient", fmt.Sprint(flags.ambient))
	target := "http://" + ln.Addr().String() + "/dial.svg?" + q.Encode()

	if err := capture.DialPNG(ctx, capture.Options{
		URL:        target,
		OutputPath: flags.capture,
		Width:      conf.Dial.Width,
		Height:     conf.Dial.Height,
	}); err != nil {
		return err
	}
	appLog.Info("dial captured", "path", flags.capture)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/piedial/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh once, render the dial PNG to the configured output and exit")
	flag.StringVar(&cfg.svgPath, "svg", "", "With --once, also write the dial as SVG to this path")
	flag.BoolVar(&cfg.ambient, "ambient", false, "With --once, render the ambient face")
	flag.StringVar(&cfg.at, "at", "", "Render at this RFC3339 time instead of now")
	flag.BoolVar(&cfg.demo, "demo", false, "Use built-in demo events instead of the configured sources")
	flag.StringVar(&cfg.capture, "capture", "", "With --once, also capture the SVG dial through headless Chromium to this PNG path")

	flag.Parse()

	return cfg
}
