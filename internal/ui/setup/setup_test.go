package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/uni-helper/internal/model"
)

func TestApplyHostedProvider(t *testing.T) {
	cfg := model.DefaultAppConfig()
	a := AnswersFrom(cfg)
	a.Address = " student@uni.edu "
	a.Password = "app-pass"
	a.Provider = model.ProviderOpenAI
	a.APIKey = "sk-1"
	a.PollInterval = "30"
	a.ReminderTime = "07:30"

	a.Apply(cfg)

	assert.Equal(t, "student@uni.edu", cfg.Mailbox.Username)
	assert.Equal(t, "app-pass", cfg.Mailbox.Password)
	assert.Equal(t, model.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "sk-1", cfg.AI.APIKey)
	assert.Equal(t, 30, cfg.Mailbox.PollIntervalSec)
	assert.Equal(t, "07:30", cfg.Reminders.Time)
	assert.Empty(t, cfg.Validate())
}

func TestApplyLocalProviderDropsKey(t *testing.T) {
	cfg := model.DefaultAppConfig()
	a := AnswersFrom(cfg)
	a.Provider = model.ProviderLocal
	a.APIKey = "leftover"
	a.LocalURL = "http://10.0.0.2:8081"

	a.Apply(cfg)

	assert.Empty(t, cfg.AI.APIKey)
	assert.Equal(t, "http://10.0.0.2:8081", cfg.AI.Local.Endpoint)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAddress("a@b.c"))
	assert.Error(t, validateAddress("@b.c"))
	assert.Error(t, validateAddress("nobody"))

	assert.NoError(t, validatePositive("60"))
	assert.Error(t, validatePositive("0"))
	assert.Error(t, validatePositive("soon"))

	assert.NoError(t, validateClock("09:00"))
	assert.Error(t, validateClock("9am"))

	assert.Error(t, validateRequired("Host")("  "))
}
