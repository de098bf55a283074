/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didutils

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

const (
	referenceSize = 16
	didPrefix     = "did:"
	didParts      = 3
)

var (
	// ErrNotBase58Encoded is returned when a key reference isn't base58.
	ErrNotBase58Encoded = errors.New("key reference must be a base58-encoded value")
	// ErrNot128BitValue is returned when a base58 key reference doesn't decode to 128 bits.
	ErrNot128BitValue = errors.New("key reference is base58-encoded, but the decoded value is not 128 bits long")
	// ErrInvalidDID is returned for strings that aren't shaped like did:<method>:<id>.
	ErrInvalidDID = errors.New("invalid DID")
)

type generateRandomBytesFunc func([]byte) (int, error)

// GenerateKeyReference generates a random base58-encoded 128 bit key reference.
func GenerateKeyReference() (string, error) {
	return generateKeyReference(rand.Read)
}

func generateKeyReference(generateRandomBytes generateRandomBytesFunc) (string, error) {
	randomBytes := make([]byte, referenceSize)

	_, err := generateRandomBytes(randomBytes)
	if err != nil {
		return "", err
	}

	return base58.Encode(randomBytes), nil
}

// CheckIfBase58Encoded128BitValue returns an error if reference isn't a base58-encoded 128 bit value.
func CheckIfBase58Encoded128BitValue(reference string) error {
	decoded := base58.Decode(reference)
	if len(decoded) == 0 {
		return ErrNotBase58Encoded
	}

	if len(decoded) != referenceSize {
		return ErrNot128BitValue
	}

	return nil
}

// EncodeToString encodes data as unpadded base64url.
func EncodeToString(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeString decodes base64url, with or without padding.
func DecodeString(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
}

// Method returns the method name of a DID.
func Method(did string) (string, error) {
	parts := strings.SplitN(did, ":", didParts)
	if !strings.HasPrefix(did, didPrefix) || len(parts) != didParts || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDID, did)
	}

	return parts[1], nil
}

// IsDID reports whether s looks like a DID.
func IsDID(s string) bool {
	_, err := Method(s)

	return err == nil
}

// ShortForm strips the initial state query of a long-form DID. Other strings are returned unchanged.
func ShortForm(id string) string {
	if !IsDID(id) {
		return id
	}

	return strings.SplitN(id, "?", 2)[0]
}

// SameDID reports whether a and b name the same DID, short or long form.
func SameDID(a, b string) bool {
	return ShortForm(a) == ShortForm(b)
}
