// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package reader

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/taibuivan/lectern/pkg/slug"
)

// PageWriter stores rendered frames as PNG files named after the document.
type PageWriter struct {
	dir  string
	base string
}

// NewPageWriter creates dir if needed.
func NewPageWriter(dir, name string) (*PageWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reader: create output directory: %w", err)
	}

	base := slug.From(name)
	if base == "" {
		base = "document"
	}

	return &PageWriter{dir: dir, base: base}, nil
}

// Path is where page n is written.
func (writer *PageWriter) Path(page int) string {
	return filepath.Join(writer.dir, fmt.Sprintf("%s-page-%04d.png", writer.base, page))
}

// Write encodes frame for page. Readers of the directory never see a
// partially written file.
func (writer *PageWriter) Write(page int, frame image.Image) (string, error) {
	if frame == nil {
		return "", errors.New("reader: no frame to write")
	}

	temp, err := os.CreateTemp(writer.dir, ".page-*.png")
	if err != nil {
		return "", fmt.Errorf("reader: create page file: %w", err)
	}
	defer os.Remove(temp.Name())

	if err := png.Encode(temp, frame); err != nil {
		temp.Close()
		return "", fmt.Errorf("reader: encode page %d: %w", page, err)
	}
	if err := temp.Close(); err != nil {
		return "", fmt.Errorf("reader: close page file: %w", err)
	}

	path := writer.Path(page)
	if err := os.Rename(temp.Name(), path); err != nil {
		return "", fmt.Errorf("reader: move page file: %w", err)
	}

	return path, nil
}
