package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/nhle/uni-helper/internal/app"
)

type remindCmd struct{}

func (*remindCmd) Name() string     { return "remind" }
func (*remindCmd) Synopsis() string { return "send due assignment reminders now" }
func (*remindCmd) Usage() string {
	return `remind:
	run the daily reminder check once and exit
`
}

func (*remindCmd) SetFlags(*flag.FlagSet) {}

func (*remindCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		return fatal("Configuration error", err)
	}
	closeLog, err := setupLogging(cfg, "stderr", false)
	if err != nil {
		return fatal("Log error", err)
	}
	defer closeLog()

	a, err := app.New(cfg, log.Logger)
	if err != nil {
		return fatal("Failed to configure service", err)
	}
	defer a.Shutdown()

	sent, err := a.RemindNow(ctx)
	if err != nil {
		return fatal("Reminder check failed", err)
	}
	fmt.Printf("Sent %d reminder(s)\n", sent)
	return subcommands.ExitSuccess
}
