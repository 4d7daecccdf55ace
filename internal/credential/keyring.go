// Package credential keeps backend bearer tokens in the system keyring.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"

	"github.com/nhle/campusbourses/internal/model"
)

const serviceName = "campusbourses"

// ErrNoToken is returned when no token is stored for a backend and scope.
var ErrNoToken = errors.New("no token stored; run `campusbourses login`")

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/campusbourses/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("campusbourses-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Vault stores one token per backend URL and scope.
type Vault struct {
	ring keyring.Keyring
}

// Open opens the system keyring.
func Open() (*Vault, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return NewVault(ring), nil
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// TokenKey is the keyring key of a backend and scope.
func TokenKey(baseURL string, scope model.Scope) string {
	return fmt.Sprintf("token:%s:%s", scope, strings.TrimRight(baseURL, "/"))
}

// Token returns the stored token, or ErrNoToken.
func (v *Vault) Token(baseURL string, scope model.Scope) (string, error) {
	key := TokenKey(baseURL, scope)
	item, err := v.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// SetToken stores a token, replacing any previous one.
func (v *Vault) SetToken(baseURL string, scope model.Scope, token string) error {
	key := TokenKey(baseURL, scope)
	err := v.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(token),
		Label: "CampusBourses " + string(scope) + " token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// DeleteToken removes a token. Removing a missing token is not an error.
func (v *Vault) DeleteToken(baseURL string, scope model.Scope) error {
	key := TokenKey(baseURL, scope)
	err := v.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
