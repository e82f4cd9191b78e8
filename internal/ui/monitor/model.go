// Package monitor is a terminal dashboard for a running service's status
// endpoint.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"

	"github.com/nhle/uni-helper/internal/httpd"
	"github.com/nhle/uni-helper/internal/keys"
	"github.com/nhle/uni-helper/internal/theme"
)

// RefreshInterval is how often the status endpoint is polled.
const RefreshInterval = 2 * time.Second

// statusMsg carries the result of one fetch.
type statusMsg struct {
	status *httpd.Status
	err    error
}

// tickMsg triggers the next fetch.
type tickMsg time.Time

// Model is the Bubble Tea model for the status monitor.
type Model struct {
	baseURL string
	client  *http.Client

	keys    *keys.KeyMap
	help    help.Model
	spinner spinner.Model

	status     *httpd.Status
	err        error
	loading    bool
	lastUpdate time.Time

	width, height int
}

// New creates a monitor for the service listening at baseURL.
func New(baseURL string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		keys:    keys.DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		loading: true,
		width:   80,
	}
}

// Init starts the spinner and the first fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetch())
		}
		return m, nil

	case statusMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.status
			m.lastUpdate = time.Now()
		}
		return m, tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })

	case tickMsg:
		return m, m.fetch()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	header := theme.HeaderStyle.Width(m.width).Render("Jarvis status  " + m.baseURL)

	var body string
	switch {
	case m.status == nil && m.err == nil:
		body = m.spinner.View() + " Connecting..."
	case m.status == nil:
		body = theme.ErrorStyle.Render("Unreachable: " + m.err.Error())
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.mailboxPanel(), " ", m.queuePanel())
		if m.err != nil {
			body += "\n" + theme.ErrorStyle.Render("Last refresh failed: "+m.err.Error())
		}
	}

	var footer string
	if !m.lastUpdate.IsZero() {
		footer = theme.HelpStyle.Render("Updated " + m.lastUpdate.Format("15:04:05"))
		if m.loading {
			footer += " " + m.spinner.View()
		}
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		"",
		body,
		"",
		footer,
		theme.StatusBarStyle.Width(m.width).Render(m.help.View(m.keys)),
	)
}

func (m Model) mailboxPanel() string {
	s := m.status.Mailbox
	lastPoll := "never"
	if !s.LastPoll.IsZero() {
		lastPoll = s.LastPoll.Local().Format("15:04:05")
	}

	rows := []string{
		theme.PanelTitleStyle.Render("Mailbox"),
		row("Connection", theme.ConnectionStyle(s.Status).Render(s.Status.String())),
		row("Consecutive failures", fmt.Sprint(s.ConsecutiveFailures)),
		row("Retry delay", s.RetryDelay.String()),
		row("Last poll", lastPoll),
	}
	return theme.PanelStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) queuePanel() string {
	q := m.status.Queue
	running := "stopped"
	if q.Running {
		running = "running"
	}

	rows := []string{
		theme.PanelTitleStyle.Render("Queue"),
		row("State", theme.RunningStyle(q.Running).Render(running)),
		row("Waiting", fmt.Sprint(q.QueueSize)),
		row("Processed", fmt.Sprint(q.TotalProcessed)),
		row("Errors", fmt.Sprint(q.TotalErrors)),
		row("Uptime", q.Uptime.Truncate(time.Second).String()),
	}
	return theme.PanelStyle.Render(strings.Join(rows, "\n"))
}

func row(label, value string) string {
	return theme.LabelStyle.Render(label) + value
}

// fetch reads /status once.
func (m Model) fetch() tea.Cmd {
	url := m.baseURL + "/status"
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), client.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return statusMsg{err: err}
		}
		resp, err := client.Do(req)
		if err != nil {
			return statusMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return statusMsg{err: fmt.Errorf("status endpoint returned %s", resp.Status)}
		}

		var st httpd.Status
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			return statusMsg{err: fmt.Errorf("decoding status: %w", err)}
		}
		return statusMsg{status: &st}
	}
}
