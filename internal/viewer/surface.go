// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package viewer

import (
	"errors"
	"image"
	"sync"
)

// ErrSurfaceReleased is returned when presenting to a released surface.
var ErrSurfaceReleased = errors.New("viewer: surface released")

// Surface is the host paint target. Present is only ever called by one render
// at a time.
type Surface interface {
	Present(frame image.Image) error
	Clear()
	Release()
}

// ImageSurface keeps the most recent frame in memory for hosts that export it.
type ImageSurface struct {
	mu       sync.Mutex
	frame    image.Image
	frames   int
	released bool
}

// NewImageSurface returns an empty surface.
func NewImageSurface() *ImageSurface {
	return &ImageSurface{}
}

// Present stores frame as the current picture.
func (surface *ImageSurface) Present(frame image.Image) error {
	surface.mu.Lock()
	defer surface.mu.Unlock()

	if surface.released {
		return ErrSurfaceReleased
	}
	surface.frame = frame
	surface.frames++
	return nil
}

// Clear drops the current frame.
func (surface *ImageSurface) Clear() {
	surface.mu.Lock()
	defer surface.mu.Unlock()
	surface.frame = nil
}

// Release clears the surface and refuses further frames.
func (surface *ImageSurface) Release() {
	surface.mu.Lock()
	defer surface.mu.Unlock()
	surface.frame = nil
	surface.released = true
}

// Frame returns the current picture, or nil.
func (surface *ImageSurface) Frame() image.Image {
	surface.mu.Lock()
	defer surface.mu.Unlock()
	return surface.frame
}

// Frames counts every frame presented so far.
func (surface *ImageSurface) Frames() int {
	surface.mu.Lock()
	defer surface.mu.Unlock()
	return surface.frames
}

// Released reports whether Release was called.
func (surface *ImageSurface) Released() bool {
	surface.mu.Lock()
	defer surface.mu.Unlock()
	return surface.released
}
