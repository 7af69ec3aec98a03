// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and capability token management.
//
// # Architecture
//
// This package isolates security-sensitive code (key derivation, JWT signing)
// from the domain logic. It acts as an Infrastructure service injected into the
// access layer, which adds the resource binding and nonce bookkeeping.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/lectern/pkg/uuid"
)

// CapabilityClaims is the payload of a resource-scoped capability token.
//
// # Why a resource claim?
//
// The rid claim binds the signature to exactly one document. A token minted for
// one resource is rejected when presented for another, even before expiry.
type CapabilityClaims struct {
	jwt.RegisteredClaims

	// ResourceID is the document this token grants read access to.
	ResourceID int64 `json:"rid"`
}

// ErrMalformedToken is returned when a token cannot be parsed or verified.
var ErrMalformedToken = errors.New("sec: malformed or unverifiable token")

// CapabilityService signs and verifies capability tokens using HS256.
type CapabilityService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

// NewCapabilityService derives the signing key from secret and returns a service.
func NewCapabilityService(secret, keyInfo, issuer, audience string) (*CapabilityService, error) {
	key, err := DeriveKey([]byte(secret), keyInfo)
	if err != nil {
		return nil, err
	}

	return &CapabilityService{
		signingKey: key,
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source. It is used by tests to mint expired tokens.
func (service *CapabilityService) WithClock(now func() time.Time) *CapabilityService {
	clone := *service
	clone.now = now
	return &clone
}

// Mint creates a signed token for resourceID valid for timeToLive.
func (service *CapabilityService) Mint(resourceID int64, timeToLive time.Duration) (string, *CapabilityClaims, error) {
	issuedAt := service.now()
	claims := &CapabilityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{service.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(timeToLive)),
		},
		ResourceID: resourceID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(service.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signed, claims, nil
}

// Verify checks signature, issuer, audience and freshness of a token string.
//
// It does not compare the resource claim; callers own that decision.
func (service *CapabilityService) Verify(tokenString string) (*CapabilityClaims, error) {
	claims := &CapabilityClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return service.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(service.issuer),
		jwt.WithAudience(service.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(service.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	if !token.Valid || claims.ID == "" || claims.ResourceID <= 0 {
		return nil, ErrMalformedToken
	}

	return claims, nil
}
