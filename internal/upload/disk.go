// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package upload

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// DiskStorage writes objects under a local directory. It backs development
// setups without an S3 bucket; the HTTP server serves the directory at
// BaseURL.
type DiskStorage struct {
	dir     string
	baseURL string
}

// NewDiskStorage creates the directory if needed.
func NewDiskStorage(dir, baseURL string) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, oops.Code("UPLOAD_DIR_FAILED").With("dir", dir).Wrap(err)
	}
	return &DiskStorage{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir returns the directory files are written to.
func (d *DiskStorage) Dir() string {
	return d.dir
}

// Put implements Storage.
func (d *DiskStorage) Put(_ context.Context, obj Object) (string, error) {
	name := filepath.Base(obj.Key)
	f, err := os.OpenFile(filepath.Join(d.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", oops.With("operation", "create upload file").With("key", obj.Key).Wrap(err)
	}
	if _, err := io.Copy(f, obj.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", oops.With("operation", "write upload file").With("key", obj.Key).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return "", oops.With("operation", "close upload file").With("key", obj.Key).Wrap(err)
	}
	return d.baseURL + "/" + url.PathEscape(name), nil
}

// MemoryStorage keeps objects in memory.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

// Put implements Storage.
func (m *MemoryStorage) Put(_ context.Context, obj Object) (string, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", oops.With("operation", "read upload").With("key", obj.Key).Wrap(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Key] = data
	m.types[obj.Key] = obj.ContentType
	return "memory://" + obj.Key, nil
}

// Get returns a stored object and its content type.
func (m *MemoryStorage) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, m.types[key], ok
}

// Len reports how many objects are stored.
func (m *MemoryStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var (
	_ Storage = (*DiskStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
