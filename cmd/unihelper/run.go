package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/nhle/uni-helper/internal/app"
	"github.com/nhle/uni-helper/internal/mailbox"
)

type runCmd struct {
	logfile string
	logjson bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the email assistant (default)" }
func (*runCmd) Usage() string {
	return `run [-logfile path] [-logjson]:
	poll the mailbox, process messages, and send reminders until interrupted
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.logfile, "logfile", "stderr", "write log output to this file")
	f.BoolVar(&r.logjson, "logjson", false, "logs are written in JSON format")
}

func (r *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return r.run(ctx)
}

func (r *runCmd) executeDefault(ctx context.Context) subcommands.ExitStatus {
	r.logfile = "stderr"
	return r.run(ctx)
}

func (r *runCmd) run(ctx context.Context) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		return fatal("Configuration error", err)
	}

	closeLog, err := setupLogging(cfg, r.logfile, r.logjson)
	if err != nil {
		return fatal("Log error", err)
	}
	defer closeLog()

	startupLog := log.With().Str("phase", "startup").Logger()

	a, err := app.New(cfg, log.Logger)
	if err != nil {
		startupLog.Error().Err(err).Msg("Failed to configure service")
		fmt.Fprintln(os.Stderr, "Run `unihelper setup` to create a configuration.")
		return subcommands.ExitFailure
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		startupLog.Error().Err(err).Msg("Failed to start service")
		a.Shutdown()
		return subcommands.ExitFailure
	}
	startupLog.Info().Str("mailbox", cfg.Mailbox.Username).Msg("Jarvis is running")

	status := subcommands.ExitSuccess
	select {
	case sig := <-sigChan:
		log.Info().Str("phase", "shutdown").Str("signal", sig.String()).
			Msg("Received signal, shutting down")
	case err := <-a.Done():
		if errors.Is(err, mailbox.ErrFailed) {
			log.Error().Str("phase", "shutdown").Err(err).Msg("Mailbox unreachable, giving up")
			status = subcommands.ExitFailure
		}
	}

	a.Shutdown()
	cancel()
	return status
}
