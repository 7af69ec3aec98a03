// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import "context"

// US Letter in PDF points, used when a page declares no usable box.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// TextRun is one positioned piece of text on a page, in PDF user space.
type TextRun struct {
	X        float64
	Y        float64
	FontSize float64
	Text     string
}

// Page is a decoded page. It is owned by its [Document] and borrowed by the
// cache; it stays valid only while the document is in use.
type Page struct {
	Number int
	Width  float64
	Height float64
	Runs   []TextRun
}

// Document is a page-addressable decoded document.
type Document interface {
	NumPages() int

	// Page decodes page n (1-based). It honours ctx cancellation.
	Page(ctx context.Context, n int) (*Page, error)
}

// Decoder turns downloaded bytes into a [Document].
type Decoder interface {
	Decode(ctx context.Context, data []byte) (Document, error)
}
