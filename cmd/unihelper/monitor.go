package main

import (
	"context"
	"flag"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/subcommands"

	"github.com/nhle/uni-helper/internal/ui/monitor"
)

type monitorCmd struct {
	addr string
}

func (*monitorCmd) Name() string     { return "monitor" }
func (*monitorCmd) Synopsis() string { return "watch a running assistant's status" }
func (*monitorCmd) Usage() string {
	return `monitor [-addr url]:
	show mailbox and queue status, refreshed every two seconds
`
}

func (m *monitorCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.addr, "addr", "http://127.0.0.1:8080", "base URL of the status server")
}

func (m *monitorCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	addr := m.addr
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	p := tea.NewProgram(monitor.New(addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fatal("Monitor failed", err)
	}
	return subcommands.ExitSuccess
}
