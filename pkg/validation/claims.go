/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validation

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/hyperledger/aries-framework-go/pkg/doc/jwt"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
)

// Registered and well-known claim names.
const (
	claimIssuer          = "iss"
	claimSubject         = "sub"
	claimAudience        = "aud"
	claimExpiration      = "exp"
	claimNotBefore       = "nbf"
	claimIssuedAt        = "iat"
	claimJWTID           = "jti"
	claimNonce           = "nonce"
	claimSubjectJWK      = "sub_jwk"
	claimVC              = "vc"
	claimVP              = "vp"
	claimClaims          = "claims"
	claimAttestations    = "attestations"
	claimCredentialSubj  = "credentialSubject"
	attestPresentations  = "presentations"
	attestIDTokens       = "idTokens"
	attestSelfIssued     = "selfIssued"
	vpVerifiableCredsKey = "verifiableCredential"
)

var reservedClaims = map[string]struct{}{ //nolint:gochecknoglobals
	claimIssuer: {}, claimSubject: {}, claimAudience: {}, claimExpiration: {}, claimNotBefore: {},
	claimIssuedAt: {}, claimJWTID: {}, claimNonce: {}, claimSubjectJWK: {}, claimVC: {}, claimVP: {},
	claimClaims: {}, claimAttestations: {},
}

// GetTokensFromSiop collects the tokens embedded in a SIOP response. Tokens under attestations are typed
// by the attestation they appear in, JWTs found in the claims claim are left to be classified.
func (h *Helpers) GetTokensFromSiop(resp *Response) *Response {
	if resp.Failed() {
		return resp
	}

	var tokens []EmbeddedToken

	if attestations, ok := resp.PayloadObject[claimAttestations]; ok {
		attestationMap, isMap := attestations.(map[string]interface{})
		if !isMap {
			return resp.Fail(StatusMalformedToken, "The attestations in the %s are not an object", h.description)
		}

		for _, name := range sortedKeys(attestationMap) {
			tokenType, known := attestationTypes()[name]
			if !known {
				return resp.Fail(StatusMalformedToken, "The %s contains an unknown attestation %s", h.description, name)
			}

			rawTokens, err := attestationTokens(attestationMap[name])
			if err != nil {
				return resp.Fail(StatusMalformedToken, "The %s attestation in the %s is malformed: %s",
					name, h.description, err)
			}

			for _, rawToken := range rawTokens {
				tokens = append(tokens, EmbeddedToken{RawToken: rawToken, Type: tokenType})
			}
		}
	}

	if claims, ok := resp.PayloadObject[claimClaims]; ok {
		for _, rawToken := range findJWTs(claims) {
			tokens = append(tokens, EmbeddedToken{RawToken: rawToken})
		}
	}

	resp.EmbeddedTokens = tokens

	return resp
}

// GetClaimBag collects the non registered claims of the token. The subject of a credential is flattened
// into the bag, as are the non token values of a SIOP claims object.
func (h *Helpers) GetClaimBag(resp *Response) *Response {
	if resp.Failed() {
		return resp
	}

	bag := make(map[string]interface{})

	for name, value := range resp.PayloadObject {
		if _, reserved := reservedClaims[name]; !reserved {
			bag[name] = value
		}
	}

	if vc, ok := resp.PayloadObject[claimVC].(map[string]interface{}); ok {
		if subject, ok := vc[claimCredentialSubj].(map[string]interface{}); ok {
			for name, value := range subject {
				bag[name] = value
			}
		}
	}

	if claims, ok := resp.PayloadObject[claimClaims].(map[string]interface{}); ok {
		for name, value := range claims {
			if s, isString := value.(string); isString && isJWT(s) {
				continue
			}

			bag[name] = value
		}
	}

	resp.Claims = bag

	return resp
}

// VerifiableCredentials returns the JWT credentials of a presentation payload.
func VerifiableCredentials(payload map[string]interface{}) ([]string, error) {
	vp, ok := payload[claimVP].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing %s claim", claimVP)
	}

	credentials, ok := vp[vpVerifiableCredsKey]
	if !ok {
		return nil, nil
	}

	if credential, isString := credentials.(string); isString {
		credentials = []interface{}{credential}
	}

	list, ok := credentials.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s is not an array", vpVerifiableCredsKey)
	}

	var jwts []string

	for _, credential := range list {
		if s, isString := credential.(string); isString && isJWT(s) {
			jwts = append(jwts, s)
		}
	}

	return jwts, nil
}

// Subject returns the sub claim of a payload.
func Subject(payload map[string]interface{}) string {
	return stringClaim(payload, claimSubject)
}

// SubjectJWK returns the sub_jwk claim of a payload, if any.
func SubjectJWK(payload map[string]interface{}) (map[string]interface{}, bool) {
	subJWK, ok := payload[claimSubjectJWK].(map[string]interface{})

	return subJWK, ok
}

func attestationTypes() map[string]claimtoken.TokenType {
	return map[string]claimtoken.TokenType{
		attestPresentations: claimtoken.VerifiablePresentation,
		attestIDTokens:      claimtoken.IDToken,
		attestSelfIssued:    claimtoken.SelfIssued,
	}
}

// An attestation is either a token or an object whose values are tokens.
func attestationTokens(attestation interface{}) ([]string, error) {
	switch value := attestation.(type) {
	case string:
		return []string{value}, nil
	case map[string]interface{}:
		var tokens []string

		for _, key := range sortedKeys(value) {
			token, ok := value[key].(string)
			if !ok {
				return nil, fmt.Errorf("%s is not a token", key)
			}

			tokens = append(tokens, token)
		}

		return tokens, nil
	default:
		return nil, fmt.Errorf("unexpected %T", attestation)
	}
}

func findJWTs(value interface{}) []string {
	switch v := value.(type) {
	case string:
		if isJWT(v) {
			return []string{v}
		}
	case []interface{}:
		var tokens []string

		for _, item := range v {
			tokens = append(tokens, findJWTs(item)...)
		}

		return tokens
	case map[string]interface{}:
		var tokens []string

		for _, key := range sortedKeys(v) {
			tokens = append(tokens, findJWTs(v[key])...)
		}

		return tokens
	}

	return nil
}

func isJWT(s string) bool {
	return jwt.IsJWS(s) || jwt.IsJWTUnsecured(s)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))

	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func stringClaim(payload map[string]interface{}, name string) string {
	s, _ := payload[name].(string) //nolint:errcheck

	return s
}

func stringsClaim(payload map[string]interface{}, name string) []string {
	switch value := payload[name].(type) {
	case string:
		return []string{value}
	case []interface{}:
		var values []string

		for _, item := range value {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}

		return values
	default:
		return nil
	}
}

// Numeric claims arrive as json.Number or float64 depending on the decoder.
func numericClaim(payload map[string]interface{}, name string) (int64, bool) {
	switch value := payload[name].(type) {
	case float64:
		return int64(value), true
	case int64:
		return value, true
	case int:
		return int64(value), true
	case fmt.Stringer:
		f, err := strconv.ParseFloat(value.String(), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}

		return int64(f), true
	default:
		return 0, false
	}
}
