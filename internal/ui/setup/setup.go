// Package setup is the interactive first-run configuration wizard.
package setup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/uni-helper/internal/model"
)

// SecretStore persists the secrets the wizard collects.
type SecretStore interface {
	Save(cfg *model.AppConfig) error
}

// Answers holds the form values. huh binds to these fields.
type Answers struct {
	Address      string
	Password     string
	IMAPHost     string
	SMTPHost     string
	Provider     string
	APIKey       string
	LocalURL     string
	PollInterval string
	ReminderTime string
}

// AnswersFrom pre-fills the form from an existing config.
func AnswersFrom(cfg *model.AppConfig) *Answers {
	return &Answers{
		Address:      cfg.Mailbox.Username,
		IMAPHost:     cfg.Mailbox.Host,
		SMTPHost:     cfg.SMTP.Host,
		Provider:     cfg.AI.Provider,
		LocalURL:     cfg.AI.Local.Endpoint,
		PollInterval: strconv.Itoa(cfg.Mailbox.PollIntervalSec),
		ReminderTime: cfg.Reminders.Time,
	}
}

// Form builds the wizard.
func Form(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email address").
				Description("The mailbox Jarvis reads and replies from").
				Placeholder("you@university.edu").
				Value(&a.Address).
				Validate(validateAddress),
			huh.NewInput().
				Title("App password").
				Description("Stored in the system keyring, never in the config file").
				EchoMode(huh.EchoModePassword).
				Value(&a.Password).
				Validate(validateRequired("App password")),
			huh.NewInput().
				Title("IMAP host").
				Placeholder("imap.gmail.com").
				Value(&a.IMAPHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("SMTP host").
				Placeholder("smtp.gmail.com").
				Value(&a.SMTPHost).
				Validate(validateRequired("SMTP host")),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("AI provider").
				Options(
					huh.NewOption("Claude (Anthropic)", model.ProviderClaude),
					huh.NewOption("OpenAI", model.ProviderOpenAI),
					huh.NewOption("Local model server", model.ProviderLocal),
				).
				Value(&a.Provider),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey).
				Validate(validateRequired("API key")),
		).WithHideFunc(func() bool { return a.Provider == model.ProviderLocal }),
		huh.NewGroup(
			huh.NewInput().
				Title("Local model endpoint").
				Placeholder("http://127.0.0.1:8081").
				Value(&a.LocalURL).
				Validate(validateRequired("Endpoint")),
		).WithHideFunc(func() bool { return a.Provider != model.ProviderLocal }),
		huh.NewGroup(
			huh.NewInput().
				Title("Poll interval (seconds)").
				Placeholder("60").
				Value(&a.PollInterval).
				Validate(validatePositive),
			huh.NewInput().
				Title("Daily reminder time (HH:MM, UTC)").
				Placeholder("09:00").
				Value(&a.ReminderTime).
				Validate(validateClock),
		),
	)
}

// Apply copies the answers onto cfg. Inputs are assumed validated.
func (a *Answers) Apply(cfg *model.AppConfig) {
	cfg.Mailbox.Username = strings.TrimSpace(a.Address)
	cfg.Mailbox.Password = a.Password
	cfg.Mailbox.Host = strings.TrimSpace(a.IMAPHost)
	cfg.SMTP.Host = strings.TrimSpace(a.SMTPHost)

	cfg.AI.Provider = a.Provider
	if a.Provider == model.ProviderLocal {
		cfg.AI.APIKey = ""
		cfg.AI.Local.Endpoint = strings.TrimSpace(a.LocalURL)
	} else {
		cfg.AI.APIKey = strings.TrimSpace(a.APIKey)
	}

	if n, err := strconv.Atoi(strings.TrimSpace(a.PollInterval)); err == nil && n > 0 {
		cfg.Mailbox.PollIntervalSec = n
	}
	if a.ReminderTime != "" {
		cfg.Reminders.Time = strings.TrimSpace(a.ReminderTime)
	}
}

// Run shows the wizard, then writes the config file and the secrets.
func Run(path string, secrets SecretStore) error {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}

	a := AnswersFrom(cfg)
	if err := Form(a).Run(); err != nil {
		return fmt.Errorf("setup form: %w", err)
	}
	a.Apply(cfg)

	if err := secrets.Save(cfg); err != nil {
		return err
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email address is required")
	}
	if at := strings.Index(s, "@"); at < 1 || at == len(s)-1 {
		return fmt.Errorf("%q is not an email address", s)
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

func validateClock(s string) error {
	_, _, err := model.ParseClock(strings.TrimSpace(s))
	return err
}
