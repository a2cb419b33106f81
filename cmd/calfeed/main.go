package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MichalProuza/home-dashboard/internal/config"
	"github.com/MichalProuza/home-dashboard/internal/feed"
	appLog "github.com/MichalProuza/home-dashboard/internal/log"
)

type flagConfig struct {
	configPath string
	output     string
	once       bool
	debug      bool
}

func init() {
	// Optional .env for local runs; deployments set real env vars.
	if err := godotenv.Load(); err != nil {
		appLog.Debug("no .env file loaded", "err", err)
	}
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	if flags.output != "" {
		conf.OutputPath = flags.output
	}

	appLog.Info("effective config",
		"days_ahead", conf.DaysAhead,
		"mode", conf.Mode,
		"max_each", conf.MaxEach,
		"max_total", conf.MaxTotal,
		"output", conf.OutputPath,
		"refresh", conf.RefreshCron,
		"expand_recurring", conf.ExpandRecurring,
		"once", flags.once,
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

	processor := feed.NewProcessor(conf)

	if flags.once {
		if err := processor.Run(ctx, time.Now().UTC()); err != nil {
			os.Exit(1)
		}
		return
	}

	// Daemon mode: run once at startup, then on the cron schedule.
	if err := processor.Run(ctx, time.Now().UTC()); err != nil {
		appLog.Error("initial feed run failed", err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		if err := processor.Run(ctx, time.Now().UTC()); err != nil {
			appLog.Error("scheduled feed run failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	scheduler.Start()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	appLog.Info("calfeed exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.output, "output", "", "Output JSON path (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+normalize cycle and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
