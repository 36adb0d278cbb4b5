package config

import (
	"os"
	"strings"
)

// EnvSecretStore serves secrets from a snapshot of the process environment,
// taken after .env files are loaded. It never changes afterwards.
type EnvSecretStore struct {
	values map[string]string
}

// NewEnvSecretStore snapshots the current environment
func NewEnvSecretStore() *EnvSecretStore {
	return NewSecretStore(os.Environ())
}

// NewSecretStore builds a store from KEY=VALUE pairs
func NewSecretStore(environ []string) *EnvSecretStore {
	values := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		values[key] = value
	}
	return &EnvSecretStore{values: values}
}

// GetSecret returns the value of a secret. Empty values count as absent.
func (s *EnvSecretStore) GetSecret(name string) (string, bool) {
	v, ok := s.values[name]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
