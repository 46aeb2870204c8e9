package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/awaae001/LN-IdentityGroupRobot/internal/command"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/config"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/discord"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/expiry"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/metrics"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/projection"
	"github.com/awaae001/LN-IdentityGroupRobot/internal/storage"
	"github.com/awaae001/LN-IdentityGroupRobot/pkg/jobmgr"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)
	log.Info().Int("guilds", len(cfg.GuildIDs)).Msg("starting role bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oplog := storage.NewOperationLog(filepath.Join(cfg.DataDir, "roles.json"), log)
	exits := storage.NewExitList(filepath.Join(cfg.DataDir, "removed"), log)
	groups := storage.NewGroupStore(filepath.Join(cfg.DataDir, "role_groups.json"), log)
	panels := storage.NewPanelStore(filepath.Join(cfg.DataDir, "remove_role_panels.json"), log)
	projStore := projection.NewStore(filepath.Join(cfg.DataDir, "user_roles.json"), log)

	dg, err := discord.NewSession(cfg.DiscordToken)
	if err != nil {
		return err
	}
	adapter := discord.NewAdapter(dg)
	notifier := discord.NewChannelNotifier(dg, cfg.LogChannelID, log)

	deps := &command.Deps{
		Cfg:        cfg,
		Dir:        adapter,
		Mut:        adapter,
		Oplog:      oplog,
		Exits:      exits,
		Groups:     groups,
		Panels:     panels,
		Projection: projStore,
		Log:        log,
		StartedAt:  time.Now(),
	}
	reg := command.NewRegistry()
	command.RegisterAll(reg, deps)

	metrics.Serve(cfg.MetricsAddr, log)

	sweeper := expiry.New(adapter, adapter, oplog, exits, notifier, cfg.ReplacementRoles, cfg.ExpiryWindow, log)
	jobs := jobmgr.New(log)
	defer jobs.StopAll()

	if err := jobs.StartPeriodic(ctx, "expiry-sweep", cfg.SweepInterval, func(ctx context.Context) error {
		sum, err := sweeper.Run(ctx)
		if err != nil {
			return err
		}
		metrics.SweepRuns.Inc()
		metrics.SweepCompacted.Add(float64(sum.Compacted))
		metrics.SweepRetained.Add(float64(sum.Retained))
		return nil
	}); err != nil {
		return err
	}
	if err := jobs.StartPeriodic(ctx, "projection-rebuild", cfg.SweepInterval, func(ctx context.Context) error {
		_, err := projStore.Rebuild(oplog)
		return err
	}); err != nil {
		return err
	}

	bot := discord.New(dg, cfg, reg, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		cancel()
		if err != nil {
			return err
		}
	}
	log.Info().Msg("exited cleanly")
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.LogFile != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
