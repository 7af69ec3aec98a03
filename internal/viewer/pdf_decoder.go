// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ledongthuc/pdf"
)

// maxParentDepth bounds the walk up the page tree for inherited attributes.
const maxParentDepth = 32

// PDFDecoder decodes PDF bytes with github.com/ledongthuc/pdf.
type PDFDecoder struct{}

// NewPDFDecoder returns the default decoder.
func NewPDFDecoder() *PDFDecoder {
	return &PDFDecoder{}
}

// Decode parses the cross reference table and counts pages. Page content is
// decoded lazily by [Document.Page].
func (decoder *PDFDecoder) Decode(ctx context.Context, data []byte) (document Document, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: errors.New("empty document")}
	}

	// The library panics on some malformed input
	defer func() {
		if recovered := recover(); recovered != nil {
			document = nil
			err = &DecodeError{Reason: ReasonMalformed, Err: fmt.Errorf("parser panic: %v", recovered)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
	}

	pages := reader.NumPage()
	if pages <= 0 {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: errors.New("document has no pages")}
	}

	return &pdfDocument{reader: reader, pages: pages}, nil
}

// pdfDocument serializes access to the reader, which is not safe for
// concurrent use.
type pdfDocument struct {
	mu     sync.Mutex
	reader *pdf.Reader
	pages  int
}

func (document *pdfDocument) NumPages() int {
	return document.pages
}

func (document *pdfDocument) Page(ctx context.Context, n int) (*Page, error) {
	if n < 1 || n > document.pages {
		return nil, &DecodeError{Reason: ReasonUnknown, Page: n, Err: ErrPageOutOfRange}
	}

	var result *Page
	err := withWorker(ctx, func() error {
		if ctx.Err() != nil {
			return ErrRenderCancelled
		}

		document.mu.Lock()
		defer document.mu.Unlock()

		var decodeErr error
		result, decodeErr = document.decode(n)
		return decodeErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// decode extracts the page box and text runs of page n.
func (document *pdfDocument) decode(n int) (page *Page, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			page = nil
			err = &DecodeError{Reason: ReasonMalformed, Page: n, Err: fmt.Errorf("content panic: %v", recovered)}
		}
	}()

	source := document.reader.Page(n)
	if source.V.IsNull() {
		return nil, &DecodeError{Reason: ReasonMalformed, Page: n, Err: errors.New("missing page object")}
	}

	width, height := mediaBox(source.V)
	page = &Page{Number: n, Width: width, Height: height}

	for _, text := range source.Content().Text {
		page.Runs = append(page.Runs, TextRun{X: text.X, Y: text.Y, FontSize: text.FontSize, Text: text.S})
	}

	return page, nil
}

// mediaBox reads the page size, inheriting MediaBox from ancestors.
func mediaBox(node pdf.Value) (width, height float64) {
	for depth := 0; depth < maxParentDepth && !node.IsNull(); depth++ {
		box := node.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			width = box.Index(2).Float64() - box.Index(0).Float64()
			height = box.Index(3).Float64() - box.Index(1).Float64()
			if width > 0 && height > 0 {
				return width, height
			}
		}
		node = node.Key("Parent")
	}

	return defaultPageWidth, defaultPageHeight
}
