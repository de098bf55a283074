/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didresolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
)

// ErrKeyNotFound is returned when a DID document has no usable key with the requested ID.
var ErrKeyNotFound = errors.New("key not found in DID document")

// PublicKey returns the key of doc whose ID matches keyID. keyID may be absolute (did#fragment),
// relative (#fragment) or a bare fragment.
func PublicKey(doc *did.Doc, keyID string) (*cryptoprovider.JWK, error) {
	fragment := keyFragment(keyID)

	methods := verificationMethods(doc)

	for i := range methods {
		if keyFragment(methods[i].ID) != fragment {
			continue
		}

		return methodJWK(&methods[i])
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
}

func verificationMethods(doc *did.Doc) []did.VerificationMethod {
	methods := append([]did.VerificationMethod{}, doc.VerificationMethod...)

	for _, verification := range doc.Authentication {
		if verification.Embedded {
			methods = append(methods, verification.VerificationMethod)
		}
	}

	for _, verification := range doc.AssertionMethod {
		if verification.Embedded {
			methods = append(methods, verification.VerificationMethod)
		}
	}

	return methods
}

func methodJWK(vm *did.VerificationMethod) (*cryptoprovider.JWK, error) {
	if jsonWebKey := vm.JSONWebKey(); jsonWebKey != nil {
		keyBytes, err := json.Marshal(jsonWebKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JWK of %s: %w", vm.ID, err)
		}

		var key cryptoprovider.JWK

		if err := json.Unmarshal(keyBytes, &key); err != nil {
			return nil, fmt.Errorf("failed to read JWK of %s: %w", vm.ID, err)
		}

		return key.Public(), nil
	}

	if len(vm.Value) == 0 {
		return nil, fmt.Errorf("%w: %s has no key material", ErrKeyNotFound, vm.ID)
	}

	return cryptoprovider.JWKFromPublicKeyBytes(vm.Value)
}

func keyFragment(keyID string) string {
	if i := strings.LastIndex(keyID, "#"); i >= 0 {
		return keyID[i+1:]
	}

	return keyID
}
