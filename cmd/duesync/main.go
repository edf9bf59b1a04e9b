package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/automaxprocs/maxprocs"

	"duesync/internal/app"
	"duesync/internal/config"
	"duesync/internal/gcal"
	appLog "duesync/internal/log"
	"duesync/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath     string
	listen         string
	once           bool
	updateExisting bool
	auth           bool
}

func main() {
	flags := parseFlags()

	if _, err := maxprocs.Set(); err != nil {
		appLog.Warn("failed to set GOMAXPROCS", "err", err)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(conf, flags)
	setupLogging(conf)

	appLog.Info("duesync starting", "version", version)
	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"source", conf.Source.Kind,
		"calendar", conf.Calendar.Kind,
		"update_existing", conf.UpdateExisting,
		"duplicate_window", conf.DuplicateWindow,
		"schedule", conf.Schedule,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.auth {
		if err := runAuth(ctx, conf); err != nil {
			appLog.Error("authorization failed", err)
			os.Exit(1)
		}
		return
	}

	runner, err := app.NewFromConfig(ctx, conf, os.Stdout)
	if err != nil {
		appLog.Error("failed to set up runner", err)
		os.Exit(1)
	}

	if flags.once || conf.Schedule == "" {
		if _, err := runner.Run(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := runDaemon(ctx, conf, runner); err != nil {
		appLog.Error("daemon stopped", err)
		os.Exit(1)
	}
	appLog.Info("duesync exiting")
}

const version = "0.1.0"

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "Status API listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one reconciliation pass and exit, even if a schedule is configured")
	flag.BoolVar(&cfg.updateExisting, "update-existing", false, "Update events that already exist instead of skipping them")
	flag.BoolVar(&cfg.auth, "auth", false, "Authorize Google Calendar access and store the token")

	flag.Parse()

	return cfg
}

// applyFlags lets CLI flags override the config file.
func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.updateExisting {
		conf.UpdateExisting = true
	}
}

func setupLogging(conf *config.Config) {
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.SetJSON(strings.EqualFold(conf.LogFormat, "json"))
}

// runDaemon runs on the cron schedule and serves the status API until ctx is
// cancelled. Ticks that fire while a run is in progress are dropped.
func runDaemon(ctx context.Context, conf *config.Config, runner *app.Runner) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(conf.Schedule, func() {
		if _, err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Warn("scheduled run failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", conf.Schedule, err)
	}

	c.Start()
	appLog.Info("scheduler started", "schedule", conf.Schedule)
	defer func() {
		<-c.Stop().Done()
	}()

	return web.NewServer(conf, runner).Serve(ctx)
}

// runAuth performs the one-time OAuth consent flow on the terminal.
func runAuth(ctx context.Context, conf *config.Config) error {
	oauthCfg, err := gcal.LoadOAuthConfig(conf.Calendar.CredentialsPath)
	if err != nil {
		return err
	}

	fmt.Println("Open the following URL in a browser and authorize access:")
	fmt.Println()
	fmt.Println(gcal.AuthURL(oauthCfg))
	fmt.Println()
	fmt.Print("Paste the authorization code: ")

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read authorization code: %w", err)
	}

	tok, err := gcal.Exchange(ctx, oauthCfg, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if err := gcal.SaveToken(conf.Calendar.TokenPath, tok); err != nil {
		return err
	}
	appLog.Info("token saved", "path", conf.Calendar.TokenPath)
	return nil
}

// cronLogger routes scheduler messages to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
