// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package access decides whether a capability token grants read access to a
document.

Tokens are short lived, signed values bound to exactly one resource. They are
never stored in the database. When a [NonceRegistry] is configured the token's
nonce must also have been recorded at issue time, so only tokens this server
handed out are accepted.

Flow:

	Issue(rid) ─► sec.Mint ─► NonceRegistry.Register ─► AccessToken
	Validate(rid, token) ─► sec.Verify ─► rid match ─► NonceRegistry.Lookup
*/
package access

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidToken is the single outcome callers map to 401. The wrapped cause
// says why, for logs only.
var ErrInvalidToken = errors.New("access: invalid token")

// ErrUnknownNonce is returned by a [NonceRegistry] for nonces it never saw or
// that have expired.
var ErrUnknownNonce = errors.New("access: unknown nonce")

// maxTokenLength bounds the size of a token accepted from a query string.
const maxTokenLength = 2048

// AccessToken is a minted capability for one resource.
type AccessToken struct {
	ResourceID int64     `json:"resource_id"`
	Value      string    `json:"token"`
	Nonce      string    `json:"-"`
	IssuedAt   time.Time `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NonceRegistry records issued token nonces for their lifetime.
type NonceRegistry interface {
	// Register remembers nonce as issued for resourceID until ttl elapses.
	Register(ctx context.Context, nonce string, resourceID int64, ttl time.Duration) error

	// Lookup returns the resource a nonce was issued for, or [ErrUnknownNonce].
	Lookup(ctx context.Context, nonce string) (int64, error)
}
