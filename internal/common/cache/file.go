package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileDocument is the on-disk shape: a single JSON document mapping cache
// keys to entries. Writes are whole-file rewrites; concurrent processes
// sharing one file get last-writer-wins semantics.
type fileDocument struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// FileStore keeps entries in memory and mirrors every change to a JSON file.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// NewFileStore loads any existing document at path. A missing or unreadable
// file starts an empty store rather than failing construction.
func NewFileStore(path string) *FileStore {
	s := &FileStore{
		path:    path,
		entries: make(map[string]Entry),
	}
	s.load()
	return s
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return
	}
	if doc.Version != 0 && doc.Version != SchemaVersion {
		return
	}
	if doc.Entries != nil {
		s.entries = doc.Entries
	}
}

// save must be called with the mutex held.
func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	doc := fileDocument{
		Version: SchemaVersion,
		Entries: s.entries,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache document: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *FileStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Key] = entry
	return s.save()
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.save()
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]Entry)
	return s.save()
}

func (s *FileStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out, nil
}
