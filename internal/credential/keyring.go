package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	gosync "sync"

	"github.com/99designs/keyring"
)

const (
	serviceName = "clinicdesk"
	tokenKey    = "api-token"
)

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	// Token returns the stored token, or "" if none is stored.
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// KeyringStore keeps the token in the system keyring.
type KeyringStore struct {
	configDir string
}

// NewKeyringStore returns a keyring-backed TokenStore. The file backend,
// used when no system keyring is available, lives under configDir.
func NewKeyringStore(configDir string) *KeyringStore {
	return &KeyringStore{configDir: configDir}
}

// openKeyring returns a configured keyring instance.
func (s *KeyringStore) openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(s.configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("clinicdesk-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token retrieves the bearer token from the system keyring.
func (s *KeyringStore) Token() (string, error) {
	ring, err := s.openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}

	return string(item.Data), nil
}

// SetToken stores the bearer token in the system keyring.
func (s *KeyringStore) SetToken(token string) error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "clinicdesk API token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}

	return nil
}

// ClearToken removes the bearer token. Removing a missing token is not
// an error.
func (s *KeyringStore) ClearToken() error {
	ring, err := s.openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}

	return nil
}

// MemoryStore keeps the token in process memory only.
type MemoryStore struct {
	mu    gosync.RWMutex
	token string
}

// NewMemoryStore returns a MemoryStore seeded with token.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) ClearToken() error {
	return s.SetToken("")
}

// Open returns the TokenStore named by kind ("keyring" or "memory").
func Open(kind, configDir string) (TokenStore, error) {
	switch kind {
	case "", "keyring":
		return NewKeyringStore(configDir), nil
	case "memory":
		return NewMemoryStore(""), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}
