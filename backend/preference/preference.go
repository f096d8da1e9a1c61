// Package preference persists small user preferences, such as answers
// given during context gathering, so later conversations can pre-fill them.
package preference

import (
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/wthorbecke/gather/shared"
)

type Store struct {
	fs   afero.Fs
	path string

	mu     sync.RWMutex
	values map[string]string
}

// NewStore loads preferences from path, creating an empty store when the
// file does not exist yet.
func NewStore(fs afero.Fs, path string) (*Store, error) {
	store := &Store{
		fs:     fs,
		path:   path,
		values: make(map[string]string),
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to check preferences file")
	}
	if !exists {
		return store, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to read preferences file")
	}
	if err := yaml.Unmarshal(data, &store.values); err != nil {
		return nil, shared.Wrap(shared.ErrorSourceStore, err, "failed to parse preferences file")
	}
	if store.values == nil {
		store.values = make(map[string]string)
	}

	return store, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	return value, ok
}

// Set stores a preference and writes the whole file back.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return shared.Wrap(shared.ErrorSourceStore, err, "failed to encode preferences")
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return shared.Wrap(shared.ErrorSourceStore, err, "failed to create preferences directory")
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o600); err != nil {
		return shared.Wrap(shared.ErrorSourceStore, err, "failed to write preferences file")
	}

	return nil
}
