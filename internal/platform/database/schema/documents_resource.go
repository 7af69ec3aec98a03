// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema holds table and column names so SQL is built from one source.
package schema

// DocumentsResourceTable represents the 'documents.resource' table
type DocumentsResourceTable struct {
	Table           string
	ID              string
	Title           string
	StorageLocation string
	Status          string
	ByteLength      string
	MimeType        string
	CreatedAt       string
	UpdatedAt       string
}

// DocumentsResource is the schema definition for documents.resource
var DocumentsResource = DocumentsResourceTable{
	Table:           "documents.resource",
	ID:              "id",
	Title:           "title",
	StorageLocation: "storagelocation",
	Status:          "status",
	ByteLength:      "bytelength",
	MimeType:        "mimetype",
	CreatedAt:       "createdat",
	UpdatedAt:       "updatedat",
}

func (t DocumentsResourceTable) Columns() []string {
	return []string{t.ID, t.Title, t.StorageLocation, t.Status, t.ByteLength, t.MimeType, t.CreatedAt, t.UpdatedAt}
}
