/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"context"
	"strings"

	"github.com/trustbloc/didtoken/pkg/didutils"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const (
	idTokenDescription = "id token"

	openIDConfigurationPath = "/.well-known/openid-configuration"
)

// IDTokenValidator validates id tokens issued by OpenID providers. The signing key is taken from the
// provider metadata, or from the issuer DID document when the issuer is a DID.
type IDTokenValidator struct {
	expected validation.Expected
}

// NewIDTokenValidator returns an id token validator accepting the tokens of expected.Issuers.
func NewIDTokenValidator(expected validation.Expected) *IDTokenValidator {
	return &IDTokenValidator{expected: expected}
}

// Validate validates an id token.
func (v *IDTokenValidator) Validate(ctx context.Context, _ *validation.Queue, item *validation.QueueItem,
	options *validation.ValidatorOptions) (*validation.Response, error) {
	delegates := validation.NewOptions(options, idTokenDescription).Delegates

	resp := delegates.GetTokenObject(validation.NewResponse(), item.RawToken)
	if resp.Failed() {
		return resp, nil
	}

	if resp.Issuer == "" {
		return resp.Fail(validation.StatusFormatMismatch, "The %s has no iss claim", idTokenDescription), nil
	}

	if !v.trusted(resp.Issuer) {
		return resp.Fail(validation.StatusFormatMismatch, "The issuer %s of the %s is not trusted",
			resp.Issuer, idTokenDescription), nil
	}

	if didutils.IsDID(resp.Issuer) {
		if resp.DID == "" {
			resp.DID = resp.Issuer
		}

		resp = delegates.ResolveDIDAndGetKeys(ctx, resp)
		resp = delegates.ValidateDIDSignature(resp, item.RawToken)
	} else {
		resp = delegates.FetchKeyAndValidateSignatureOnIDToken(ctx, resp, item.RawToken,
			strings.TrimSuffix(resp.Issuer, "/")+openIDConfigurationPath)
	}

	resp = delegates.CheckTimeValidityOnToken(resp, options.ClockSkew)
	resp = delegates.CheckScopeValidityOnToken(resp, v.expected.Audience)

	return delegates.GetClaimBag(resp), nil
}

func (v *IDTokenValidator) trusted(issuer string) bool {
	if len(v.expected.Issuers) == 0 {
		return true
	}

	for _, trusted := range v.expected.Issuers {
		if strings.TrimSuffix(trusted, "/") == strings.TrimSuffix(issuer, "/") {
			return true
		}
	}

	return false
}
