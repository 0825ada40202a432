package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements TokenStore using environment variables. It is
// read-only and mainly serves CI and scripted runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based token store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the refresh token from PIXDOWN_REFRESH_TOKEN, falling back
// to the legacy PIXIV_TOKEN name.
func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	token := os.Getenv("PIXDOWN_REFRESH_TOKEN")
	if token == "" {
		token = os.Getenv("PIXIV_TOKEN")
	}
	if token == "" {
		return nil, ErrTokenNotFound
	}

	if profile == "" {
		profile = DefaultProfile
	}
	return &Credential{
		Profile:      profile,
		RefreshToken: token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if the environment variable is set.
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment token is set.
func (e *EnvironmentStore) Exists(profile string) bool {
	return os.Getenv("PIXDOWN_REFRESH_TOKEN") != "" || os.Getenv("PIXIV_TOKEN") != ""
}
