// Package yamlcred implements plugins.CredentialPort by reading a static
// YAML file of credential id -> {username, password} entries, grounded on
// the worker's YamlCredentialPlugin.
package yamlcred

import (
	"context"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"tower/internal/core/plugins"
	perr "tower/internal/platform/errors"
)

type entry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Store is a file-backed credential store, lazily loaded on first use or
// eagerly via Validate.
type Store struct {
	path string

	mu   sync.RWMutex
	data map[string]entry
}

func New(path string) *Store { return &Store{path: path} }

func init() {
	plugins.RegisterCredential("yaml", func(lookup func(key, def string) string) (plugins.CredentialPort, error) {
		return New(lookup("file", "inventory/creds.yml")), nil
	})
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data != nil {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return perr.NotFoundf("credential file %s: %v", s.path, err)
	}
	var data map[string]entry
	if err := yaml.Unmarshal(b, &data); err != nil {
		return perr.InvalidArgf("invalid YAML in credential file %s: %v", s.path, err)
	}
	s.data = data
	return nil
}

// Validate loads and sanity-checks every entry so a missing username or
// password field is caught at startup rather than mid-job.
func (s *Store) Validate(_ context.Context) error {
	if err := s.load(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, e := range s.data {
		if e.Username == "" || e.Password == "" {
			return perr.InvalidArgf("credential %s in %s is missing username or password", id, s.path)
		}
	}
	return nil
}

func (s *Store) GetSSHCredentials(_ context.Context, credentialID string) (plugins.SSHCredentials, error) {
	if err := s.load(); err != nil {
		return plugins.SSHCredentials{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[credentialID]
	if !ok {
		return plugins.SSHCredentials{}, perr.NotFoundf("credential %s not found in %s", credentialID, s.path)
	}
	if e.Username == "" || e.Password == "" {
		return plugins.SSHCredentials{}, perr.InvalidArgf("credential %s is missing username or password", credentialID)
	}
	return plugins.SSHCredentials{CredentialID: credentialID, Username: e.Username, Password: e.Password}, nil
}

// ListCredentialIDs returns every credential id defined in the file.
func (s *Store) ListCredentialIDs(_ context.Context) ([]string, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
