package cache

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Store maps subscription URLs to raw cached documents on disk. Keys are a
// pure function of the URL, so entries for different URLs never collide on
// the same file. Writes are serialized per key; the last write wins.
type Store struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Key returns the cache key for a URL: the first 8 bytes of its SHA-256
// digest, hex-encoded to a fixed 16 characters.
func (s *Store) Key(url string) string {
	hash := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", hash[:8])
}

func (s *Store) Save(url string, data []byte) error {
	lock := s.keyLock(s.Key(url))
	lock.Lock()
	defer lock.Unlock()

	path := s.entryPath(url)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	slog.Debug("Cache entry written", "url", url, "path", path, "bytes", len(data))
	return nil
}

// Load returns the cached document for a URL. A missing entry is reported
// through the second return value, not as an error.
func (s *Store) Load(url string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.entryPath(url))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return data, true, nil
}

func (s *Store) Clear(url string) error {
	err := os.Remove(s.entryPath(url))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

func (s *Store) ClearAll() error {
	entries, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	for _, entry := range entries {
		if err := os.Remove(entry); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cache entry: %w", err)
		}
	}
	return nil
}

func (s *Store) entryPath(url string) string {
	return filepath.Join(s.dir, s.Key(url)+".json")
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}
