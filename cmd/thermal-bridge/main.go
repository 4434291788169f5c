package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thereceipt/thermal-bridge/internal/api"
	"github.com/thereceipt/thermal-bridge/internal/battery"
	"github.com/thereceipt/thermal-bridge/internal/config"
	"github.com/thereceipt/thermal-bridge/internal/gateway"
	"github.com/thereceipt/thermal-bridge/internal/logging"
	"github.com/thereceipt/thermal-bridge/internal/printer"
	"github.com/thereceipt/thermal-bridge/internal/sdk"
	"github.com/thereceipt/thermal-bridge/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	cfg, v, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	err = logging.Init(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Buffer: cfg.TUI,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log file: %v\n", err)
		os.Exit(1)
	}

	if logging.InitSentry(cfg.Sentry.DSN, Version) {
		slog.Info("crash reporting enabled")
	}

	if err := run(cfg, v); err != nil {
		slog.Error("bridge stopped", "error", err)
		logging.FlushSentry(2 * time.Second)
		logging.Close()
		os.Exit(1)
	}

	logging.FlushSentry(2 * time.Second)
	logging.Close()
}

func run(cfg *config.Config, v *viper.Viper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.CapturePanic(r, debug.Stack(), "main")
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	slog.Info("thermal bridge starting",
		"version", Version,
		"driver", cfg.Printer.Driver,
		"battery", cfg.Battery.Source,
		"config", v.ConfigFileUsed())

	adapter := printer.NewAdapter(newPrinter(cfg), cfg.Adapter())
	adapter.OnUnclassified = logging.Reporter("print")
	defer adapter.Close()

	var (
		source battery.Source
		push   *battery.Broadcaster
	)
	switch cfg.Battery.Source {
	case config.BatterySysfs:
		monitor := battery.NewMonitor(cfg.Battery.SysfsPath, cfg.Battery.Interval)
		monitor.Start()
		defer monitor.Stop()
		source = monitor
	case config.BatteryPush:
		push = battery.NewBroadcaster()
		source = push
	default:
		source = battery.None{}
	}

	gw := gateway.New(adapter, source)
	gw.OnError = logging.Reporter("checkStatus")
	defer gw.Close()

	server := api.NewServer(api.Options{
		Gateway:         gw,
		Queue:           adapter.Queue(),
		Battery:         source,
		Push:            push,
		ResponseTimeout: cfg.Server.ResponseTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("api server listening", "address", cfg.Server.Address)
		serverErr <- server.Run(cfg.Server.Address)
	}()

	var dash *tui.Dashboard
	dashDone := make(chan error, 1)
	if cfg.TUI {
		dash = tui.NewDashboard(tui.Options{
			Gateway:         gw,
			Queue:           adapter.Queue(),
			Battery:         source,
			Address:         cfg.Server.Address,
			Driver:          cfg.Printer.Driver,
			ResponseTimeout: cfg.Server.ResponseTimeout,
		})
		if err := logging.SetOutput(dash.LogWriter()); err != nil {
			return fmt.Errorf("failed to attach log pane: %w", err)
		}
		go func() {
			dashDone <- dash.Run()
		}()
	}

	config.Watch(v, func(next *config.Config) {
		if next.Log.Level != cfg.Log.Level {
			logging.SetLevel(next.Log.Level)
			slog.Info("log level changed", "level", next.Log.Level)
		}
		cfg.Log.Level = next.Log.Level
		slog.Debug("config reloaded, restart to apply printer and server settings")
	}, func(err error) {
		slog.Warn("ignoring invalid config change", "error", err)
	})

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case runErr = <-serverErr:
		if runErr == nil {
			runErr = errors.New("api server exited")
		}
	case runErr = <-dashDone:
		slog.Info("dashboard closed, shutting down")
	}

	if dash != nil {
		dash.Stop()
		// the terminal is ours again
		_ = logging.SetOutput(os.Stderr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("api server shutdown failed", "error", err)
	}

	if gw.Connected() {
		if reply, err := gw.Do(shutdownCtx, gateway.Call{Method: gateway.MethodDisconnect}); err != nil || reply.Value != true {
			slog.Warn("printer disconnect on shutdown failed", "error", err)
		}
	}

	return runErr
}

func newPrinter(cfg *config.Config) sdk.ThermalPrinter {
	if cfg.Printer.Driver != config.DriverSimulate {
		slog.Info("using hardware printer", "transport", cfg.Transport().String())
		return sdk.NewESCPOSPrinter(cfg.Transport())
	}

	sim := sdk.NewSimulator()
	if cfg.Printer.PreviewDir != "" {
		if err := os.MkdirAll(cfg.Printer.PreviewDir, 0o755); err != nil {
			slog.Warn("preview directory unusable", "dir", cfg.Printer.PreviewDir, "error", err)
			return sim
		}
		sim.EnablePreview(cfg.Printer.PreviewDir, cfg.Printer.PaperWidth, cfg.Printer.Font)
		slog.Info("simulated rolls are written as PNG", "dir", cfg.Printer.PreviewDir)
	}
	return sim
}
