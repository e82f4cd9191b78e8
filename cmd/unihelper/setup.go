package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/nhle/uni-helper/internal/credential"
	"github.com/nhle/uni-helper/internal/ui/setup"
)

type setupCmd struct{}

func (*setupCmd) Name() string     { return "setup" }
func (*setupCmd) Synopsis() string { return "interactively create the configuration" }
func (*setupCmd) Usage() string {
	return `setup:
	ask for mailbox and AI provider details, then write the config file
	and store secrets in the system keyring
`
}

func (*setupCmd) SetFlags(*flag.FlagSet) {}

func (*setupCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	creds, err := credential.Open()
	if err != nil {
		return fatal("Keyring error", err)
	}
	if err := setup.Run(*configPath, creds); err != nil {
		return fatal("Setup failed", err)
	}
	return subcommands.ExitSuccess
}
