package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/manufacturing-config/internal/application"
	"github.com/eugenenazirov/manufacturing-config/internal/config"
	"github.com/eugenenazirov/manufacturing-config/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("config-dump", "Prints "+config.DocumentPath+" as indented JSON")
	logLevel := kingpinApp.Flag("log-level", "Log level for diagnostics written to stderr").String()
	var watchSet bool
	watchFlag := kingpinApp.Flag("watch", "Keep running and print the configuration again whenever it changes").IsSetByUser(&watchSet).Bool()
	watchRPSFlag := kingpinApp.Flag("watch-rps", "Maximum re-renders per second in watch mode").Default("-1").Float64()
	watchBurstFlag := kingpinApp.Flag("watch-burst", "Burst capacity for watch mode re-renders").Default("-1").Int()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides := &config.CLIOverrides{}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if watchSet {
		overrides.Watch = watchFlag
	}

	if *watchRPSFlag >= 0 {
		overrides.WatchRPS = watchRPSFlag
	}

	if *watchBurstFlag >= 0 {
		overrides.WatchBurst = watchBurstFlag
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger, os.Stdout)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Watch {
		cancelOnSignal(cancel, logger)
	}

	if err := app.Run(ctx); err != nil {
		logger.Fatal("failed to render configuration", zap.Error(err))
	}
}

// cancelOnSignal cancels the run context on SIGINT or SIGTERM.
func cancelOnSignal(cancel context.CancelFunc, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down watcher")
		cancel()
	}()
}
