package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ServerCredentials holds the persisted OAuth material for one MCP server.
type ServerCredentials struct {
	AccessToken  string `json:"accessToken,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// CredentialStore persists per-server tokens and registered client ids as a
// flat key/value file. It is the storage collaborator the OAuth flow writes
// through; every mutation is saved immediately.
type CredentialStore struct {
	path string

	mu      sync.Mutex
	servers map[string]ServerCredentials
}

// CredentialsPath returns the default credential file path.
func CredentialsPath() string {
	return filepath.Join(DataDir(), "credentials.json")
}

// OpenCredentialStore loads (or initialises) the credential file at path.
// If path is empty, CredentialsPath() is used. A missing file is not an error.
func OpenCredentialStore(path string) (*CredentialStore, error) {
	if path == "" {
		path = CredentialsPath()
	}
	cs := &CredentialStore{path: path, servers: map[string]ServerCredentials{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cs, nil
		}
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cs.servers); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return cs, nil
}

// Get returns the stored credentials for server (zero value when absent).
func (cs *CredentialStore) Get(server string) ServerCredentials {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.servers[server]
}

// SetAccessToken stores and persists the access token for server.
func (cs *CredentialStore) SetAccessToken(server, token string) error {
	return cs.update(server, func(sc *ServerCredentials) { sc.AccessToken = token })
}

// ClearAccessToken removes the access token for server, keeping the client
// registration intact.
func (cs *CredentialStore) ClearAccessToken(server string) error {
	return cs.update(server, func(sc *ServerCredentials) { sc.AccessToken = "" })
}

// SetClient stores and persists a registered client id and optional secret.
func (cs *CredentialStore) SetClient(server, clientID, clientSecret string) error {
	return cs.update(server, func(sc *ServerCredentials) {
		sc.ClientID = clientID
		if clientSecret != "" {
			sc.ClientSecret = clientSecret
		}
	})
}

func (cs *CredentialStore) update(server string, fn func(*ServerCredentials)) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	sc := cs.servers[server]
	fn(&sc)
	cs.servers[server] = sc
	return cs.saveLocked()
}

func (cs *CredentialStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0o755); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(cs.servers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(cs.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials %s: %w", cs.path, err)
	}
	return nil
}
