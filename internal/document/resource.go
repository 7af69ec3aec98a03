// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package document delivers stored PDF documents to authorized clients.

A serve request passes five steps in one pass, without retries:

	Validate ─► Lookup ─► Authorize ─► Locate ─► Serve

Validate and Serve live in the HTTP handler. Lookup, Authorize and Locate live
in the [Gateway], which hands back a [Delivery] ready to be streamed. An
inactive or unknown resource is a 404 before any token is looked at.
*/
package document

import (
	"time"

	"github.com/taibuivan/lectern/pkg/slug"
)

// Status is the publication state of a resource.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// DefaultMimeType is assumed when a resource has no recorded type.
const DefaultMimeType = "application/pdf"

// Resource is a stored document as recorded by the content repository.
type Resource struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	StorageLocation string    `json:"-"`
	Status          Status    `json:"status"`
	ByteLength      int64     `json:"byte_length"`
	MimeType        string    `json:"mime_type"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsActive reports whether the resource may be served.
func (resource *Resource) IsActive() bool {
	return resource.Status == StatusActive
}

// ContentType returns the declared MIME type or [DefaultMimeType].
func (resource *Resource) ContentType() string {
	if resource.MimeType == "" {
		return DefaultMimeType
	}
	return resource.MimeType
}

// Filename is the inline filename suggested to the client.
func (resource *Resource) Filename() string {
	return slug.Filename(resource.Title, "pdf")
}
