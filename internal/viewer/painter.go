// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"context"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// maxFrameSide bounds either side of a painted frame in pixels.
const maxFrameSide = 8192

// cancelCheckInterval is how many text runs are drawn between context checks.
const cancelCheckInterval = 64

// Painter turns a decoded page into a frame.
type Painter interface {
	// Paint draws page at scale. A fidelity below 1 draws at scale×fidelity
	// and stretches the result to the full size.
	Paint(ctx context.Context, page *Page, scale, fidelity float64) (image.Image, error)
}

// RasterPainter is a minimal rasterizer: a white sheet with the page's text
// runs drawn in a fixed bitmap face.
type RasterPainter struct {
	Face font.Face
	Ink  color.Color
}

// NewRasterPainter returns a painter using basicfont.Face7x13 in black.
func NewRasterPainter() *RasterPainter {
	return &RasterPainter{Face: basicfont.Face7x13, Ink: color.Black}
}

// Paint implements [Painter].
func (painter *RasterPainter) Paint(ctx context.Context, page *Page, scale, fidelity float64) (image.Image, error) {
	if ctx.Err() != nil {
		return nil, ErrRenderCancelled
	}
	if fidelity <= 0 || fidelity > 1 {
		fidelity = 1
	}

	target := frameBounds(page, scale)
	sheet, err := painter.draw(ctx, page, scale*fidelity)
	if err != nil {
		return nil, err
	}

	if sheet.Bounds() == target {
		return sheet, nil
	}

	stretched := image.NewRGBA(target)
	draw.ApproxBiLinear.Scale(stretched, target, sheet, sheet.Bounds(), draw.Src, nil)
	return stretched, nil
}

// draw renders the page at the given effective scale.
func (painter *RasterPainter) draw(ctx context.Context, page *Page, scale float64) (*image.RGBA, error) {
	bounds := frameBounds(page, scale)
	sheet := image.NewRGBA(bounds)
	draw.Draw(sheet, bounds, image.White, image.Point{}, draw.Src)

	face := painter.Face
	if face == nil {
		face = basicfont.Face7x13
	}
	ink := painter.Ink
	if ink == nil {
		ink = color.Black
	}

	drawer := &font.Drawer{Dst: sheet, Src: image.NewUniform(ink), Face: face}

	for index, run := range page.Runs {
		if index%cancelCheckInterval == 0 && ctx.Err() != nil {
			return nil, ErrRenderCancelled
		}

		// PDF user space has its origin at the bottom left
		x := run.X * scale
		y := (page.Height - run.Y) * scale
		if x < 0 || y < 0 || x > float64(bounds.Dx()) || y > float64(bounds.Dy()) {
			continue
		}

		drawer.Dot = fixed.P(int(x), int(y))
		drawer.DrawString(run.Text)
	}

	return sheet, nil
}

// frameBounds is the pixel rectangle for page at scale, at least 1×1.
func frameBounds(page *Page, scale float64) image.Rectangle {
	width := clampSide(page.Width * scale)
	height := clampSide(page.Height * scale)
	return image.Rect(0, 0, width, height)
}

func clampSide(side float64) int {
	return int(math.Min(math.Max(math.Ceil(side), 1), maxFrameSide))
}
