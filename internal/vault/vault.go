// Package vault resolves gateway secrets from the OS keychain, the
// environment, or a file.
package vault

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "storepulse"

// Secret names stored under the storepulse keychain service.
const (
	GatewayPassword = "gateway-password"
	GatewayHMACKey  = "gateway-hmac-key"
)

// KnownSecrets is the list of secrets checked by List.
var KnownSecrets = []string{GatewayPassword, GatewayHMACKey}

var ErrNotFound = errors.New("vault: secret not found")

// Vault provides secret storage using the OS keychain, with fallback to
// environment variables.
type Vault struct{}

func New() *Vault {
	return &Vault{}
}

// EnvName is the environment variable consulted when the keychain has no
// entry, e.g. STOREPULSE_SECRET_GATEWAY_HMAC_KEY.
func EnvName(name string) string {
	return "STOREPULSE_SECRET_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Set stores a secret in the OS keychain.
func (v *Vault) Set(name, secret string) error {
	if err := keyring.Set(serviceName, name, secret); err != nil {
		return fmt.Errorf("vault: set %s: %w", name, err)
	}
	return nil
}

// Get retrieves a secret from the OS keychain, then from EnvName(name).
func (v *Vault) Get(name string) (string, error) {
	secret, err := keyring.Get(serviceName, name)
	if err == nil && secret != "" {
		return secret, nil
	}

	envKey := EnvName(name)
	if val := os.Getenv(envKey); val != "" {
		return val, nil
	}

	return "", fmt.Errorf("%w: %q is not in the keychain and %s is not set", ErrNotFound, name, envKey)
}

// Delete removes a secret from the OS keychain.
func (v *Vault) Delete(name string) error {
	if err := keyring.Delete(serviceName, name); err != nil {
		return fmt.Errorf("vault: delete %s: %w", name, err)
	}
	return nil
}

// List returns the known secrets that currently resolve, from either the
// keychain or the environment.
func (v *Vault) List() []string {
	var found []string
	for _, name := range KnownSecrets {
		if _, err := v.Get(name); err == nil {
			found = append(found, name)
		}
	}
	return found
}

// ResolveRef parses a secret reference and retrieves the secret.
// Supported formats:
//   - "keyring://storepulse/<name>"
//   - "env:VARIABLE_NAME"
//   - "file:///path/to/secret"
func (v *Vault) ResolveRef(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "keyring://"):
		path := strings.TrimPrefix(ref, "keyring://")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("vault: invalid reference %q (expected \"keyring://storepulse/<name>\")", ref)
		}
		return v.Get(parts[1])

	case strings.HasPrefix(ref, "env:"):
		envVar := strings.TrimPrefix(ref, "env:")
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("%w: environment variable %q is not set", ErrNotFound, envVar)

	case strings.HasPrefix(ref, "file://"):
		filePath := strings.TrimPrefix(ref, "file://")
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("vault: read secret file %q: %w", filePath, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%w: secret file %q is empty", ErrNotFound, filePath)
		}
		return secret, nil
	}

	return "", fmt.Errorf("vault: invalid reference %q (expected \"keyring://storepulse/<name>\", \"env:VARIABLE_NAME\", or \"file:///path\")", ref)
}
