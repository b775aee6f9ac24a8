/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemoryStore is an in-memory Store. It publishes EventUpdated and EventCleared on the bus (if any).
type MemoryStore struct {
	mu   sync.RWMutex
	cred Credential
	has  bool
	bus  *Bus
}

// NewMemoryStore creates a new MemoryStore that publishes changes on bus. bus may be nil.
func NewMemoryStore(bus *Bus) *MemoryStore {
	return &MemoryStore{bus: bus}
}

// Get returns the current credential.
func (s *MemoryStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.has
}

// Set replaces the current credential.
func (s *MemoryStore) Set(c Credential) error {
	s.mu.Lock()
	s.cred, s.has = c, true
	s.mu.Unlock()
	s.bus.Publish(Event{Kind: EventUpdated, Credential: c})
	return nil
}

// Clear removes the current credential.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.cred, s.has = Credential{}, false
	s.mu.Unlock()
	s.bus.Publish(Event{Kind: EventCleared})
	return nil
}

// FileStore is a Store that keeps the credential in memory and persists it to a YAML file,
// so a CLI session survives restarts.
type FileStore struct {
	mem  *MemoryStore
	path string
	wmu  sync.Mutex
}

// NewFileStore creates a FileStore backed by the file at path and loads the credential from it if the file exists.
func NewFileStore(path string, bus *Bus) (*FileStore, error) {
	s := &FileStore{mem: NewMemoryStore(nil), path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mem.bus = bus
			return s, nil
		}
		return nil, fmt.Errorf("read credential file %q: %w", path, err)
	}
	var c Credential
	if err = yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode credential file %q: %w", path, err)
	}
	if !c.IsZero() {
		if err = s.mem.Set(c); err != nil {
			return nil, err
		}
	}
	s.mem.bus = bus
	return s, nil
}

// Path returns the path of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the current credential.
func (s *FileStore) Get() (Credential, bool) {
	return s.mem.Get()
}

// Set persists c and replaces the current credential.
func (s *FileStore) Set(c Credential) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err = writeFileAtomically(s.path, data); err != nil {
		return err
	}
	return s.mem.Set(c)
}

// Clear removes the backing file and the current credential.
func (s *FileStore) Clear() error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential file %q: %w", s.path, err)
	}
	return s.mem.Clear()
}

func writeFileAtomically(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credential dir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write credential file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close credential file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename credential file: %w", err)
	}
	return nil
}
