// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/iachat/internal/util"
)

const (
	fileSuffix = ".json"
	tempPrefix = ".tmp-"
)

// FileStore keeps one file per key in a directory. Writes are atomic, so a
// crash leaves either the previous or the new value.
type FileStore struct {
	dir   string
	quota int64

	mu sync.Mutex
	// sums of our own last writes, so Watch can skip self-inflicted events
	written map[string][sha256.Size]byte
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileQuota limits the total size of all values in bytes.
func WithFileQuota(bytes int64) FileOption {
	return func(s *FileStore) { s.quota = bytes }
}

// NewFileStore opens (creating if needed) a store rooted at dir.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &FileStore{
		dir:     dir,
		written: make(map[string][sha256.Size]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &OpError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// Set implements Store.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		total, err := s.totalSize()
		if err != nil {
			return &OpError{Op: "set", Key: key, Err: err}
		}
		var oldLen int64
		if info, err := os.Stat(s.path(key)); err == nil {
			oldLen = info.Size()
		}
		if !quotaAllows(s.quota, total, oldLen, int64(len(value))) {
			return &OpError{Op: "set", Key: key, Err: ErrQuotaExceeded}
		}
	}

	if err := util.AtomicWriteFile(s.path(key), value, 0600); err != nil {
		return &OpError{Op: "set", Key: key, Err: err}
	}
	s.written[key] = sha256.Sum256(value)
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &OpError{Op: "delete", Key: key, Err: err}
	}
	delete(s.written, key)
	return nil
}

// Keys implements Store.
func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &OpError{Op: "keys", Err: err}
	}
	var keys []string
	for _, e := range entries {
		if key, ok := keyFromName(e.Name()); ok && !e.IsDir() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// =============================================================================
// CHANGE NOTIFICATION
// =============================================================================

// Watch calls fn with the key of every value changed or removed by another
// process until ctx is cancelled. Writes made through this store are not
// reported.
func (s *FileStore) Watch(ctx context.Context, fn func(key string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				key, ok := keyFromName(filepath.Base(ev.Name))
				if !ok || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if s.isOwnWrite(key) {
					continue
				}
				fn(key)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// isOwnWrite reports whether the current content of key is what this store
// last wrote (or, for absent keys, what it last deleted).
func (s *FileStore) isOwnWrite(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, wrote := s.written[key]
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return !wrote
	}
	if err != nil {
		return false
	}
	return wrote && sha256.Sum256(data) == sum
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, nameForKey(key))
}

// totalSize sums the size of every stored value. Caller holds s.mu.
func (s *FileStore) totalSize() (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if _, ok := keyFromName(e.Name()); !ok || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// nameForKey maps a key to a file name that is safe on every platform and
// cannot collide with temp files.
func nameForKey(key string) string {
	name := url.PathEscape(key)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name + fileSuffix
}

func keyFromName(name string) (string, bool) {
	if strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}
