// Package main is the uni-helper command: an email assistant that files
// assignments and notes sent to a student's mailbox and answers questions
// about them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/nhle/uni-helper/internal/credential"
	"github.com/nhle/uni-helper/internal/model"
)

var configPath = flag.String("config", model.DefaultConfigPath(), "path to the YAML config file")

func main() {
	subcommands.ImportantFlag("config")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&setupCmd{}, "")
	subcommands.Register(&monitorCmd{}, "")
	subcommands.Register(&remindCmd{}, "")

	flag.Parse()
	if flag.NArg() == 0 {
		// Running the daemon is the default.
		os.Exit(int((&runCmd{}).executeDefault(context.Background())))
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}

// loadConfig reads the config file and fills secrets from the keyring.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return nil, err
	}

	creds, err := credential.Open()
	if err != nil {
		log.Warn().Err(err).Msg("Keyring unavailable, relying on config and environment")
		return cfg, nil
	}
	if err := creds.Resolve(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fatal(msg string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	return subcommands.ExitFailure
}
