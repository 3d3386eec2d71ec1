// Package checkpoint persists the URL -> summary-file mapping that lets a
// rerun skip documents whose summaries already exist on disk.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileName is the checkpoint file kept alongside the summaries.
const FileName = "summarized_urls.json"

// Store is a file-backed checkpoint. Lookups verify that the recorded summary
// file still exists; an entry whose target is gone is treated as absent so
// the document is reprocessed rather than silently dropped from the output.
type Store struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]string
}

// Open loads the checkpoint from dir, creating the directory if needed. A
// missing checkpoint file yields an empty store; a corrupt one is an error.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	s := &Store{
		dir:     dir,
		logger:  logger,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	logger.Debug("checkpoint loaded", zap.Int("entries", len(s.entries)), zap.String("dir", dir))
	return s, nil
}

// Has reports whether url has a live checkpoint entry.
func (s *Store) Has(url string) bool {
	_, ok := s.Get(url)
	return ok
}

// Get returns the summary filename recorded for url. Entries whose summary
// file no longer exists are reported as absent.
func (s *Store) Get(url string) (string, bool) {
	s.mu.RLock()
	filename, ok := s.entries[url]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if _, err := os.Stat(filepath.Join(s.dir, filename)); err != nil {
		s.logger.Warn("checkpoint entry is stale, will reprocess",
			zap.String("url", url),
			zap.String("file", filename),
		)
		return "", false
	}
	return filename, true
}

// Put records the summary filename for url in memory. Call Flush to persist.
func (s *Store) Put(url, filename string) {
	s.mu.Lock()
	s.entries[url] = filename
	s.mu.Unlock()
}

// Len returns the number of recorded entries, live or stale.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flush atomically rewrites the checkpoint file with the full mapping. The
// write goes through a temp file and rename so a crash mid-flush can never
// leave a truncated checkpoint.
func (s *Store) Flush() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, FileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}
