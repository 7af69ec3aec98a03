// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/lectern/internal/platform/database/schema"
	"github.com/taibuivan/lectern/internal/platform/dberr"
)

// PostgresRepository reads resources from the documents schema.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository over an existing pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var findActiveQuery = fmt.Sprintf(`
	SELECT %s
	FROM %s
	WHERE %s = $1 AND %s = $2
`,
	strings.Join(schema.DocumentsResource.Columns(), ", "),
	schema.DocumentsResource.Table,
	schema.DocumentsResource.ID, schema.DocumentsResource.Status,
)

/*
FindActiveByID loads a resource by id, filtering out inactive rows in SQL.

Parameters:
  - ctx: context.Context
  - id: int64

Returns:
  - *Resource: The active resource
  - error: ErrNotFound or a wrapped database failure
*/
func (repository *PostgresRepository) FindActiveByID(ctx context.Context, id int64) (*Resource, error) {
	resource := &Resource{}

	err := repository.db.QueryRow(ctx, findActiveQuery, id, StatusActive).Scan(
		&resource.ID,
		&resource.Title,
		&resource.StorageLocation,
		&resource.Status,
		&resource.ByteLength,
		&resource.MimeType,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, dberr.Wrap(err, "find_active_resource")
	}

	return resource, nil
}
