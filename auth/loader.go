package auth

import (
	"crypto/subtle"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/* Loader manages API key configuration from a YAML file
 * Provides in-memory lookup for fast access on the request path
 */

// Key is one caller identity
type Key struct {
	Name        string `yaml:"name"`
	Key         string `yaml:"key"`
	WorkspaceID string `yaml:"workspace_id"`
}

// File represents the structure of the API keys file
type File struct {
	Keys []Key `yaml:"keys"`
}

// Loader holds the loaded keys
type Loader struct {
	keys []Key
}

// NewLoader creates an empty key loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the API keys YAML file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading API keys file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing API keys YAML: %w", err)
	}

	for _, k := range file.Keys {
		if k.Name == "" {
			return fmt.Errorf("API key entry missing name")
		}
		if k.Key == "" {
			return fmt.Errorf("API key %s missing key value", k.Name)
		}
		if k.WorkspaceID == "" {
			return fmt.Errorf("API key %s missing workspace_id", k.Name)
		}
	}

	l.keys = file.Keys
	return nil
}

// Add registers a key directly, for tests and programmatic setup
func (l *Loader) Add(key Key) {
	l.keys = append(l.keys, key)
}

// Lookup finds the identity for a presented key value using constant-time
// comparison per candidate. Returns false when no key matches.
func (l *Loader) Lookup(presented string) (Key, bool) {
	for _, k := range l.keys {
		if len(k.Key) == len(presented) &&
			subtle.ConstantTimeCompare([]byte(k.Key), []byte(presented)) == 1 {
			return k, true
		}
	}
	return Key{}, false
}

// Len returns the number of loaded keys
func (l *Loader) Len() int {
	return len(l.keys)
}
