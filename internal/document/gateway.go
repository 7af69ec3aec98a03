// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package document

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/taibuivan/lectern/internal/access"
	"github.com/taibuivan/lectern/internal/platform/apperr"
	"github.com/taibuivan/lectern/internal/platform/ctxutil"
	"github.com/taibuivan/lectern/internal/platform/storage"
)

// TokenAuthority validates and issues capability tokens.
type TokenAuthority interface {
	Validate(ctx context.Context, resourceID int64, token string) error
	Issue(ctx context.Context, resourceID int64) (*access.AccessToken, error)
}

// Delivery is an authorized, located document ready to be streamed.
//
// It implements stream.Source. Each call to OpenRange acquires a fresh reader
// from the store; the streamer closes it.
type Delivery struct {
	Resource *Resource
	Object   storage.Object
	store    storage.Store
}

// Size is the authoritative byte count used for range math.
func (delivery *Delivery) Size() int64 {
	return delivery.Object.Size
}

// OpenRange reads a slice of the stored document.
func (delivery *Delivery) OpenRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	reader, err := delivery.store.OpenRange(ctx, delivery.Object.Location, offset, length)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperr.Internal(err)
	}
	return reader, nil
}

// Gateway authorizes requests for documents and locates their bytes.
type Gateway struct {
	tokens    TokenAuthority
	resources ResourceRepository
	store     storage.Store
}

// NewGateway wires the gateway collaborators.
func NewGateway(tokens TokenAuthority, resources ResourceRepository, store storage.Store) *Gateway {
	return &Gateway{tokens: tokens, resources: resources, store: store}
}

/*
Open runs the Lookup, Authorize and Locate steps for one serve request.

Lookup comes first so that a missing or inactive resource is a 404 whatever
token is presented.

Parameters:
  - ctx: context.Context
  - resourceID: int64 (already validated as positive)
  - token: string (already validated as present)

Returns:
  - *Delivery: ready to stream
  - error: apperr Unauthorized (401), NotFound (404) or Internal (500)
*/
func (gateway *Gateway) Open(ctx context.Context, resourceID int64, token string) (*Delivery, error) {
	logger := ctxutil.GetLogger(ctx)

	// 1. Lookup
	resource, err := gateway.findActive(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	// 2. Authorize
	if err := gateway.tokens.Validate(ctx, resourceID, token); err != nil {
		logger.WarnContext(ctx, "token_rejected",
			slog.Int64("resource_id", resourceID),
			slog.String("reason", err.Error()),
		)
		unauthorized := apperr.Unauthorized("Invalid or expired access token")
		unauthorized.Cause = err
		return nil, unauthorized
	}

	// 3. Locate
	object, err := gateway.store.Stat(ctx, resource.StorageLocation)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logger.WarnContext(ctx, "document_file_missing",
				slog.Int64("resource_id", resourceID),
				slog.String("location", resource.StorageLocation),
			)
			return nil, ErrNotFound
		}
		return nil, apperr.Internal(err)
	}

	if resource.ByteLength > 0 && resource.ByteLength != object.Size {
		logger.WarnContext(ctx, "document_size_mismatch",
			slog.Int64("resource_id", resourceID),
			slog.Int64("recorded", resource.ByteLength),
			slog.Int64("stored", object.Size),
		)
	}

	return &Delivery{Resource: resource, Object: object, store: gateway.store}, nil
}

/*
IssueToken mints a capability token for an active resource.

Returns:
  - *access.AccessToken
  - error: NotFound for missing or inactive resources
*/
func (gateway *Gateway) IssueToken(ctx context.Context, resourceID int64) (*access.AccessToken, error) {
	if _, err := gateway.findActive(ctx, resourceID); err != nil {
		return nil, err
	}

	token, err := gateway.tokens.Issue(ctx, resourceID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "token_issued",
		slog.Int64("resource_id", resourceID),
		slog.Time("expires_at", token.ExpiresAt),
	)

	return token, nil
}

// findActive returns the resource or ErrNotFound, whatever the repository says.
func (gateway *Gateway) findActive(ctx context.Context, resourceID int64) (*Resource, error) {
	resource, err := gateway.resources.FindActiveByID(ctx, resourceID)
	if err != nil {
		if appError := apperr.As(err); appError != nil && appError.HTTPStatus == ErrNotFound.HTTPStatus {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if resource == nil || !resource.IsActive() {
		return nil, ErrNotFound
	}

	return resource, nil
}
