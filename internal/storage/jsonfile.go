// Package storage persists the bot's bookkeeping state as flat JSON files:
// the operation log, per-role exit records, the role-group mapping table and
// self-removal panel state. Every save is a full-file rewrite.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a JSON document persisted by full-file rewrite. Writes go through a
// temp file, fsync and rename so a crash never leaves a half-written file,
// and are skipped when the content checksum has not changed.
type File struct {
	path string

	mu      sync.Mutex
	lastSum string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Path() string { return f.path }

// Read returns the file contents, or (nil, nil) when the file does not exist.
func (f *File) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// Write atomically replaces the file contents.
func (f *File) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sum := checksum(data)
	if sum == f.lastSum {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.path, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	tf, err := os.OpenFile(tmp, os.O_RDWR, 0o644)
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("open temp file for sync: %w", err)
	}
	if err := tf.Sync(); err != nil {
		tf.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	tf.Close()

	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}

	f.lastSum = sum
	return nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
