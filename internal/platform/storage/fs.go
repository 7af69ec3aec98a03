// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore serves documents from a directory on the local filesystem.
//
// Locations are slash separated paths relative to the root. Absolute paths and
// paths escaping the root are treated as missing.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at root. The directory must exist.
func NewFileStore(root string) (*FileStore, error) {
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root %s: %w", root, err)
	}

	info, err := os.Stat(absolute)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root %s: %w", absolute, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root %s is not a directory", absolute)
	}

	return &FileStore{root: absolute}, nil
}

// Stat opens the file to prove readability, then reports its size.
func (store *FileStore) Stat(ctx context.Context, location string) (Object, error) {
	file, err := store.open(location)
	if err != nil {
		return Object{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Object{}, fmt.Errorf("storage: stat %s: %w", location, err)
	}
	if !info.Mode().IsRegular() {
		return Object{}, ErrNotFound
	}

	return Object{Location: location, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// OpenRange opens the file positioned at offset and limited to length bytes.
func (store *FileStore) OpenRange(ctx context.Context, location string, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 || length < 0 {
		return nil, ErrInvalidRange
	}

	file, err := store.open(location)
	if err != nil {
		return nil, err
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: seek %s to %d: %w", location, offset, err)
	}

	return &limitedFile{Reader: io.LimitReader(file, length), file: file}, nil
}

// Ping checks that the root directory is still accessible.
func (store *FileStore) Ping(ctx context.Context) error {
	if _, err := os.Stat(store.root); err != nil {
		return fmt.Errorf("storage: root unavailable: %w", err)
	}
	return nil
}

// open resolves location inside the root and opens it read-only.
func (store *FileStore) open(location string) (*os.File, error) {
	path, ok := store.resolve(location)
	if !ok {
		return nil, ErrNotFound
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: open %s: %w", location, err)
	}

	return file, nil
}

// resolve maps a relative location to an absolute path under the root.
func (store *FileStore) resolve(location string) (string, bool) {
	if location == "" || strings.HasPrefix(location, "/") || strings.Contains(location, "\\") {
		return "", false
	}

	cleaned := filepath.Clean(filepath.FromSlash(location))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", false
	}

	return filepath.Join(store.root, cleaned), true
}

// limitedFile closes the underlying file once the caller is done with the slice.
type limitedFile struct {
	io.Reader
	file *os.File
}

func (limited *limitedFile) Close() error {
	return limited.file.Close()
}
