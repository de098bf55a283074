/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validation

import (
	"context"
	"strings"
	"time"

	"github.com/hyperledger/aries-framework-go/pkg/doc/jose"
	"github.com/hyperledger/aries-framework-go/pkg/doc/jwt"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/didresolver"
	"github.com/trustbloc/didtoken/pkg/didutils"
)

const (
	logModuleName = "validation"

	jwsParts = 3
)

var logger = log.New(logModuleName)

// Delegates is the chain of checks composed by the token validators. Every check takes the response built
// so far and returns it. A failed check sets Result to false and a status, and callers skip the rest of the chain.
type Delegates interface {
	// GetSelfIssuedTokenObject parses the token without checking its signature.
	GetSelfIssuedTokenObject(resp *Response, token string) *Response
	// GetTokenObject parses the token and requires a kid, from which the issuer DID is taken.
	GetTokenObject(resp *Response, token string) *Response
	// ResolveDIDAndGetKeys resolves the issuer DID and looks up the signing key by kid.
	ResolveDIDAndGetKeys(ctx context.Context, resp *Response) *Response
	// ValidateDIDSignature checks the token signature against the key found by ResolveDIDAndGetKeys.
	ValidateDIDSignature(resp *Response, token string) *Response
	// ValidateSignatureOnToken checks the token signature against key.
	ValidateSignatureOnToken(resp *Response, token string, key *cryptoprovider.JWK) *Response
	// FetchKeyAndValidateSignatureOnIDToken gets the issuer keys through its OpenID configuration and checks
	// the token signature.
	FetchKeyAndValidateSignatureOnIDToken(ctx context.Context, resp *Response, token, configurationURL string) *Response
	// CheckTimeValidityOnToken checks exp and nbf.
	CheckTimeValidityOnToken(resp *Response, skew time.Duration) *Response
	// CheckScopeValidityOnToken checks that audience is one of the token audiences.
	CheckScopeValidityOnToken(resp *Response, audience string) *Response
	// GetTokensFromSiop collects the tokens embedded in a SIOP response.
	GetTokensFromSiop(resp *Response) *Response
	// GetClaimBag collects the claims of the token.
	GetClaimBag(resp *Response) *Response
}

// Helpers is the default implementation of Delegates.
type Helpers struct {
	options     *ValidatorOptions
	description string
}

// NewHelpers returns the default delegates for the token type described by inputDescription.
func NewHelpers(options *ValidatorOptions, inputDescription string) *Helpers {
	return &Helpers{options: options, description: inputDescription}
}

// GetSelfIssuedTokenObject parses the token without checking its signature.
func (h *Helpers) GetSelfIssuedTokenObject(resp *Response, token string) *Response {
	if resp.Failed() {
		return resp
	}

	parsed, err := jwt.Parse(token, jwt.WithSignatureVerifier(jose.SignatureVerifierFunc(skipSignatureCheck)))
	if err != nil {
		return resp.Fail(StatusMalformedToken, "The %s could not be deserialized: %s", h.description, err)
	}

	resp.Headers = parsed.Headers
	resp.PayloadObject = parsed.Payload
	resp.Issuer = stringClaim(parsed.Payload, claimIssuer)

	return resp
}

// GetTokenObject parses the token and takes the issuer DID from the kid header.
func (h *Helpers) GetTokenObject(resp *Response, token string) *Response {
	resp = h.GetSelfIssuedTokenObject(resp, token)
	if resp.Failed() {
		return resp
	}

	kid, ok := jose.Headers(resp.Headers).KeyID()
	if !ok || kid == "" {
		return resp.Fail(StatusFormatMismatch, "The protected header in the %s does not contain the kid", h.description)
	}

	resp.KeyID = kid

	if issuerDID := strings.SplitN(kid, "#", 2)[0]; didutils.IsDID(issuerDID) {
		resp.DID = issuerDID
	}

	return resp
}

// ResolveDIDAndGetKeys resolves the issuer DID and looks up the key named by the kid header.
func (h *Helpers) ResolveDIDAndGetKeys(ctx context.Context, resp *Response) *Response {
	if resp.Failed() {
		return resp
	}

	if resp.DID == "" {
		return resp.Fail(StatusKeyResolutionFailure, "The kid in the %s does not contain a DID", h.description)
	}

	if h.options.Resolver == nil {
		return resp.Fail(StatusKeyResolutionFailure, "No DID resolver to resolve %s", resp.DID)
	}

	doc, err := h.options.Resolver.Resolve(ctx, resp.DID)
	if err != nil {
		return resp.Fail(StatusKeyResolutionFailure, "Could not resolve %s: %s", resp.DID, err)
	}

	key, err := didresolver.PublicKey(doc, resp.KeyID)
	if err != nil {
		return resp.Fail(StatusKeyResolutionFailure, "Could not find key %s in the DID document of %s: %s",
			resp.KeyID, resp.DID, err)
	}

	resp.SigningKey = key

	logger.Debugf("Resolved signing key %s of the %s", resp.KeyID, h.description)

	return resp
}

// ValidateDIDSignature checks the token signature with the key found by ResolveDIDAndGetKeys.
func (h *Helpers) ValidateDIDSignature(resp *Response, token string) *Response {
	return h.ValidateSignatureOnToken(resp, token, resp.SigningKey)
}

// ValidateSignatureOnToken checks the token signature against key.
func (h *Helpers) ValidateSignatureOnToken(resp *Response, token string, key *cryptoprovider.JWK) *Response {
	if resp.Failed() {
		return resp
	}

	if key == nil {
		return resp.Fail(StatusSignatureInvalid, "There is no key to validate the signature on the %s", h.description)
	}

	alg, ok := jose.Headers(resp.Headers).Algorithm()
	if !ok || alg == jwt.AlgorithmNone {
		return resp.Fail(StatusSignatureInvalid, "The %s is not signed", h.description)
	}

	parts := strings.Split(token, ".")
	if len(parts) != jwsParts {
		return resp.Fail(StatusMalformedToken, "The %s is not a compact JWS", h.description)
	}

	signature, err := didutils.DecodeString(parts[2])
	if err != nil {
		return resp.Fail(StatusMalformedToken, "The signature of the %s is not base64url encoded", h.description)
	}

	if h.options.Crypto == nil {
		return resp.Fail(StatusSignatureInvalid, "No crypto provider to validate the %s", h.description)
	}

	err = h.options.Crypto.Verify(alg, key, []byte(parts[0]+"."+parts[1]), signature)
	if err != nil {
		return resp.Fail(StatusSignatureInvalid, "The signature on the %s is invalid: %s", h.description, err)
	}

	return resp
}

// CheckTimeValidityOnToken fails the response when the token is expired or not yet valid, allowing for skew.
func (h *Helpers) CheckTimeValidityOnToken(resp *Response, skew time.Duration) *Response {
	if resp.Failed() {
		return resp
	}

	now := h.options.now()

	if exp, ok := numericClaim(resp.PayloadObject, claimExpiration); ok {
		if now.Add(-skew).After(time.Unix(exp, 0)) {
			return resp.Fail(StatusExpiredOrNotYetValid, "The %s has expired", h.description)
		}
	}

	if nbf, ok := numericClaim(resp.PayloadObject, claimNotBefore); ok {
		if now.Add(skew).Before(time.Unix(nbf, 0)) {
			return resp.Fail(StatusExpiredOrNotYetValid, "The %s is not yet valid", h.description)
		}
	}

	return resp
}

// CheckScopeValidityOnToken fails the response unless audience is one of the token audiences.
// A blank audience accepts any token. DID audiences match in short or long form.
func (h *Helpers) CheckScopeValidityOnToken(resp *Response, audience string) *Response {
	if resp.Failed() || audience == "" {
		return resp
	}

	audiences := stringsClaim(resp.PayloadObject, claimAudience)
	if len(audiences) == 0 {
		return resp.Fail(StatusScopeMismatch, "The %s has no aud claim", h.description)
	}

	for _, aud := range audiences {
		if didutils.SameDID(aud, audience) {
			return resp
		}
	}

	return resp.Fail(StatusScopeMismatch, "The audience %s of the %s does not match the expected audience %s",
		strings.Join(audiences, ","), h.description, audience)
}

func skipSignatureCheck(jose.Headers, []byte, []byte, []byte) error {
	return nil
}
