// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest operator secret accepted for key derivation.
const MinSecretLength = 32

// signingKeyLength is the size of the derived HMAC-SHA256 key in bytes.
const signingKeyLength = 32

// ErrWeakSecret is returned when the configured secret is too short.
var ErrWeakSecret = errors.New("sec: secret must be at least 32 bytes")

// DeriveKey expands the operator secret into a purpose-bound signing key.
//
// Different info labels yield independent keys, so rotating the label
// invalidates every token minted under the previous one.
func DeriveKey(secret []byte, info string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	reader := hkdf.New(sha256.New, secret, nil, []byte(info))

	key := make([]byte, signingKeyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("sec: failed to derive key: %w", err)
	}

	return key, nil
}
