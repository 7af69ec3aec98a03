// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taibuivan/lectern/internal/platform/sec"
	"github.com/taibuivan/lectern/internal/platform/validate"
)

// TokenValidator issues and validates resource-scoped capability tokens.
type TokenValidator struct {
	capabilities *sec.CapabilityService
	nonces       NonceRegistry
	timeToLive   time.Duration
}

// NewTokenValidator builds a validator. nonces may be nil, in which case any
// correctly signed, unexpired token for the resource is accepted.
func NewTokenValidator(capabilities *sec.CapabilityService, nonces NonceRegistry, timeToLive time.Duration) *TokenValidator {
	return &TokenValidator{
		capabilities: capabilities,
		nonces:       nonces,
		timeToLive:   timeToLive,
	}
}

/*
Validate checks that token grants access to resourceID right now.

Parameters:
  - ctx: context.Context
  - resourceID: int64
  - token: string

Returns:
  - error: nil when valid, otherwise wraps [ErrInvalidToken]
*/
func (validator *TokenValidator) Validate(ctx context.Context, resourceID int64, token string) error {

	// Shape checks before touching crypto
	check := &validate.Validator{}
	check.Required("token", token).
		MaxLen("token", token, maxTokenLength).
		Custom("resourceId", resourceID <= 0, "Must be a positive integer")
	if check.HasErrors() {
		return fmt.Errorf("%w: malformed request", ErrInvalidToken)
	}

	claims, err := validator.capabilities.Verify(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	// A token minted for another document is never reusable here
	if claims.ResourceID != resourceID {
		return fmt.Errorf("%w: issued for resource %d", ErrInvalidToken, claims.ResourceID)
	}

	if validator.nonces == nil {
		return nil
	}

	registered, err := validator.nonces.Lookup(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrUnknownNonce) {
			return fmt.Errorf("%w: nonce not issued", ErrInvalidToken)
		}
		return fmt.Errorf("%w: nonce lookup: %w", ErrInvalidToken, err)
	}
	if registered != resourceID {
		return fmt.Errorf("%w: nonce bound to resource %d", ErrInvalidToken, registered)
	}

	return nil
}

/*
Issue mints a token for resourceID and registers its nonce.

Returns:
  - *AccessToken: the signed value and its window
  - error: signing or registry failures
*/
func (validator *TokenValidator) Issue(ctx context.Context, resourceID int64) (*AccessToken, error) {
	if resourceID <= 0 {
		return nil, fmt.Errorf("access: resource id must be positive, got %d", resourceID)
	}

	value, claims, err := validator.capabilities.Mint(resourceID, validator.timeToLive)
	if err != nil {
		return nil, fmt.Errorf("access: mint: %w", err)
	}

	if validator.nonces != nil {
		if err := validator.nonces.Register(ctx, claims.ID, resourceID, validator.timeToLive); err != nil {
			return nil, fmt.Errorf("access: register nonce: %w", err)
		}
	}

	return &AccessToken{
		ResourceID: resourceID,
		Value:      value,
		Nonce:      claims.ID,
		IssuedAt:   claims.IssuedAt.Time,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// TimeToLive reports how long issued tokens stay valid.
func (validator *TokenValidator) TimeToLive() time.Duration {
	return validator.timeToLive
}
