package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DefaultProfile is the profile name used when the caller does not name one.
const DefaultProfile = "default"

// Credential is one stored pixiv login. The refresh token is the only
// secret; access tokens are short-lived and never persisted.
type Credential struct {
	Profile      string    `json:"profile"`
	RefreshToken string    `json:"refresh_token"`
	AccountName  string    `json:"account_name,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for persisting refresh tokens.
type TokenStore interface {
	// Store saves a credential under its profile name.
	Store(cred *Credential) error

	// Retrieve gets the credential for a profile.
	Retrieve(profile string) (*Credential, error)

	// List returns all stored credentials.
	List() ([]*Credential, error)

	// Delete removes the credential for a profile.
	Delete(profile string) error

	// Exists checks whether a credential exists for a profile.
	Exists(profile string) bool
}

// Manager handles token storage with fallback backends: system keychain
// first, an encrypted file next, environment variables read-only last.
type Manager struct {
	stores []TokenStore
}

// NewManager creates a token manager with the available backends.
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a credential using the first backend that accepts it.
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.RefreshToken == "" {
		return ErrInvalidCredential
	}
	if cred.Profile == "" {
		cred.Profile = DefaultProfile
	}
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credential: %w", lastErr)
	}
	return errors.New("no available token stores")
}

// Retrieve gets the credential from the first backend that has it.
func (m *Manager) Retrieve(profile string) (*Credential, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(profile); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: profile %s", ErrTokenNotFound, profile)
}

// List returns all stored credentials across backends, most recently
// modified version winning per profile.
func (m *Manager) List() ([]*Credential, error) {
	byProfile := make(map[string]*Credential)
	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byProfile[cred.Profile]; !ok || cred.LastModified.After(existing.LastModified) {
				byProfile[cred.Profile] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range byProfile {
		result = append(result, cred)
	}
	return result, nil
}

// Delete removes a profile's credential from every backend.
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credential: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: profile %s", ErrTokenNotFound, profile)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "pixdown")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "pixdown")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "pixdown")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "pixdown")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// MaskToken masks all but the first and last 4 characters of a token for
// display.
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrTokenNotFound     = errors.New("refresh token not found")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrStoreUnavailable  = errors.New("token store unavailable")
)
