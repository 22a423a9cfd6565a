// Package settings provides persistent storage of translation API keys.
//
// Keys are stored per endpoint host in the XDG data directory:
//
//	$XDG_DATA_HOME/resxkit/auth.json  (default: ~/.local/share/resxkit/)
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for the API key at run time:
//  1. --api-key flag (highest priority)
//  2. OPENAI_API_KEY environment variable
//  3. this store, keyed by the endpoint host
package settings

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
)

const (
	dataDirName = "resxkit"
	fileName    = "auth.json"
)

// Store maps an endpoint host (e.g. "api.openai.com") to its API key.
type Store map[string]string

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for resxkit, respecting
// $XDG_DATA_HOME and falling back to ~/.local/share.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the store from disk. A missing or invalid file yields an
// empty store rather than an error: a broken auth file should degrade to
// "no stored key", not block the run.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Key operations
// ---------------------------------------------------------------------------

// HostFor normalizes a base URL to its host, the key under which API keys
// are stored. Returns the input unchanged when it doesn't parse as a URL.
func HostFor(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

// APIKeyFor returns the stored key for a base URL, or "".
func APIKeyFor(baseURL string) string {
	return Load()[HostFor(baseURL)]
}

// SetAPIKey stores (or replaces) the key for a base URL.
func SetAPIKey(baseURL, key string) error {
	store := Load()
	store[HostFor(baseURL)] = key
	return Save(store)
}

// RemoveAPIKey deletes the key for a base URL. Removing an absent key is
// not an error.
func RemoveAPIKey(baseURL string) error {
	store := Load()
	delete(store, HostFor(baseURL))
	return Save(store)
}

// Hosts lists the hosts with stored keys, sorted.
func Hosts() []string {
	store := Load()
	hosts := make([]string, 0, len(store))
	for h := range store {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
