package keyring

import (
	"errors"
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const serviceName = "nebo-advisor"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = zkr.ErrNotFound

// GetAPIKey retrieves a provider API key from the OS keychain.
func GetAPIKey(provider string) (string, error) {
	if !enabled() {
		return "", ErrNotFound
	}
	key, err := zkr.Get(serviceName, provider)
	if err != nil {
		if errors.Is(err, zkr.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return key, nil
}

// SetAPIKey stores a provider API key in the OS keychain.
func SetAPIKey(provider, key string) error {
	if !enabled() {
		return fmt.Errorf("keychain disabled by ADVISOR_KEYRING_DISABLED")
	}
	return zkr.Set(serviceName, provider, key)
}

// DeleteAPIKey removes a provider API key from the OS keychain.
func DeleteAPIKey(provider string) error {
	return zkr.Delete(serviceName, provider)
}

// ADVISOR_KEYRING_DISABLED=1 opts out for headless/CI/Docker.
func enabled() bool {
	return os.Getenv("ADVISOR_KEYRING_DISABLED") != "1"
}
