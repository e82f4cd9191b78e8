// Package credential keeps the mailbox password and provider API keys in the
// operating system keyring.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/uni-helper/internal/model"
)

const serviceName = "unihelper"

// Keyring item names.
const (
	KeyMailboxPassword = "mailbox-password"
)

// ErrNotFound is returned when no secret is stored under a key.
var ErrNotFound = keyring.ErrKeyNotFound

// APIKeyName returns the keyring item holding the API key for provider.
func APIKeyName(provider string) string {
	return provider + "-api-key"
}

// Store reads and writes secrets in a keyring.
type Store struct {
	ring keyring.Keyring
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open opens the system keyring, falling back to an encrypted file under
// ~/.config/unihelper/credentials.
func Open() (*Store, error) {
	dir := "~/.config/unihelper/credentials"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", "unihelper", "credentials")
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("unihelper-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// Get retrieves a secret by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret by key.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "unihelper " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Resolve fills the mailbox password and the provider API key from the
// keyring when the config (file or environment) left them empty. Missing
// secrets are left empty for Validate to report.
func (s *Store) Resolve(cfg *model.AppConfig) error {
	if cfg.Mailbox.Password == "" {
		v, err := s.lookup(KeyMailboxPassword)
		if err != nil {
			return err
		}
		cfg.Mailbox.Password = v
	}

	if cfg.AI.APIKey == "" && cfg.AI.Provider != model.ProviderLocal {
		v, err := s.lookup(APIKeyName(cfg.AI.Provider))
		if err != nil {
			return err
		}
		cfg.AI.APIKey = v
	}
	return nil
}

// Save writes whichever secrets are set on cfg.
func (s *Store) Save(cfg *model.AppConfig) error {
	if cfg.Mailbox.Password != "" {
		if err := s.Set(KeyMailboxPassword, cfg.Mailbox.Password); err != nil {
			return err
		}
	}
	if cfg.AI.APIKey != "" && cfg.AI.Provider != model.ProviderLocal {
		if err := s.Set(APIKeyName(cfg.AI.Provider), cfg.AI.APIKey); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) lookup(key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}
