package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/uni-helper/internal/model"
)

func TestResolveFillsMissingSecrets(t *testing.T) {
	s := New(keyring.NewArrayKeyring([]keyring.Item{
		{Key: KeyMailboxPassword, Data: []byte("app-pass")},
		{Key: APIKeyName(model.ProviderClaude), Data: []byte("sk-ant")},
	}))

	cfg := model.DefaultAppConfig()
	cfg.AI.Provider = model.ProviderClaude
	require.NoError(t, s.Resolve(cfg))

	assert.Equal(t, "app-pass", cfg.Mailbox.Password)
	assert.Equal(t, "sk-ant", cfg.AI.APIKey)
}

func TestResolveKeepsExplicitValues(t *testing.T) {
	s := New(keyring.NewArrayKeyring([]keyring.Item{
		{Key: KeyMailboxPassword, Data: []byte("from-ring")},
	}))

	cfg := model.DefaultAppConfig()
	cfg.Mailbox.Password = "from-env"
	cfg.AI.Provider = model.ProviderOpenAI
	require.NoError(t, s.Resolve(cfg))

	assert.Equal(t, "from-env", cfg.Mailbox.Password)
	assert.Empty(t, cfg.AI.APIKey)
}

func TestSaveThenGet(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	cfg := model.DefaultAppConfig()
	cfg.Mailbox.Password = "pw"
	cfg.AI.Provider = model.ProviderOpenAI
	cfg.AI.APIKey = "sk-openai"
	require.NoError(t, s.Save(cfg))

	v, err := s.Get(APIKeyName(model.ProviderOpenAI))
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", v)

	require.NoError(t, s.Delete(KeyMailboxPassword))
	require.NoError(t, s.Delete(KeyMailboxPassword))

	_, err = s.Get(KeyMailboxPassword)
	assert.ErrorIs(t, err, ErrNotFound)
}
