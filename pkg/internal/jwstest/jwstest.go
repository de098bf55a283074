/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwstest builds compact JWS tokens for tests.
package jwstest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
)

// Signer signs tokens.
type Signer interface {
	Sign(alg string, privateKey *cryptoprovider.JWK, data []byte) ([]byte, error)
}

// Sign returns a compact JWS of payload signed with key. alg and kid are added to the header.
func Sign(signer Signer, alg, kid string, key *cryptoprovider.JWK, payload map[string]interface{}) (string, error) {
	headers := map[string]interface{}{"alg": alg, "typ": "JWT"}

	if kid != "" {
		headers["kid"] = kid
	}

	signingInput, err := signingInput(headers, payload)
	if err != nil {
		return "", err
	}

	signature, err := signer.Sign(alg, key, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// Unsigned returns an unsecured JWT (alg none) of payload.
func Unsigned(payload map[string]interface{}) (string, error) {
	signingInput, err := signingInput(map[string]interface{}{"alg": "none"}, payload)
	if err != nil {
		return "", err
	}

	return signingInput + ".", nil
}

func signingInput(headers, payload map[string]interface{}) (string, error) {
	headerBytes, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(headerBytes) + "." +
		base64.RawURLEncoding.EncodeToString(payloadBytes), nil
}
