/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package claimtoken

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// TokenType is the closed set of token types understood by the validator.
type TokenType int

const (
	// IDToken is an OpenID Connect id token issued by a third party provider.
	IDToken TokenType = iota + 1
	// VerifiableCredential is a JWT carrying a "vc" claim.
	VerifiableCredential
	// VerifiablePresentation is a JWT carrying a "vp" claim.
	VerifiablePresentation
	// SIOP is a self-issued OpenID provider response carrying "claims".
	SIOP
	// SelfIssued is a token not bound to a resolvable key, asserted by the holder itself.
	SelfIssued
)

var typeNames = map[TokenType]string{ //nolint:gochecknoglobals
	IDToken:                "idToken",
	VerifiableCredential:   "verifiableCredential",
	VerifiablePresentation: "verifiablePresentation",
	SIOP:                   "siop",
	SelfIssued:             "selfIssued",
}

// Types returns every supported token type, in classification priority order.
func Types() []TokenType {
	return []TokenType{VerifiableCredential, VerifiablePresentation, SIOP, SelfIssued, IDToken}
}

// Valid reports whether t is one of the supported token types.
func (t TokenType) Valid() bool {
	_, ok := typeNames[t]

	return ok
}

func (t TokenType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("unknown(%d)", int(t))
}

// MarshalJSON writes the type name.
func (t TokenType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal token type %s", t)
	}

	return json.Marshal(t.String())
}

// UnmarshalJSON reads a type name.
func (t *TokenType) UnmarshalJSON(data []byte) error {
	var name string

	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	parsed, err := ParseTokenType(name)
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// ParseTokenType returns the token type with the given name.
func ParseTokenType(name string) (TokenType, error) {
	for tokenType, typeName := range typeNames {
		if typeName == name {
			return tokenType, nil
		}
	}

	return 0, fmt.Errorf("%s is not a supported token type", name)
}

// ClaimToken is a classified token. It is not modified once created.
type ClaimToken struct {
	Type     TokenType `json:"type"`
	RawToken string    `json:"rawToken"`
	ID       string    `json:"id"`
}

// New creates a classified token. A random ID is assigned when id is blank.
func New(tokenType TokenType, rawToken, id string) *ClaimToken {
	if id == "" {
		id = uuid.New().String()
	}

	return &ClaimToken{Type: tokenType, RawToken: rawToken, ID: id}
}
