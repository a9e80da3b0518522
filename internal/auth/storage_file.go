package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStorage keeps all values in a single JSON file, e.g.
// ~/.cozyclient/credentials.json.
type FileStorage struct {
	Path string

	mu sync.Mutex
}

type storageFile struct {
	Version int                        `json:"version"`
	Values  map[string]json.RawMessage `json:"values"`
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

func (s *FileStorage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return nil, err
	}
	v, ok := f.Values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (s *FileStorage) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	f.Values[key] = json.RawMessage(append([]byte(nil), value...))
	return s.write(f)
}

func (s *FileStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := f.Values[key]; !ok {
		return nil
	}
	delete(f.Values, key)
	return s.write(f)
}

// read parses the file. A missing file reads as empty.
func (s *FileStorage) read() (*storageFile, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &storageFile{Version: 1, Values: make(map[string]json.RawMessage)}, nil
		}
		return nil, err
	}

	var f storageFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Values == nil {
		f.Values = make(map[string]json.RawMessage)
	}
	return &f, nil
}

// write creates the parent directory with 0700 permissions if needed and
// writes the file with 0600 permissions (owner-only read/write).
func (s *FileStorage) write(f *storageFile) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0600)
}
