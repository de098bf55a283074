/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"context"
	"encoding/json"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const selfIssuedDescription = "self issued token"

// SelfIssuedValidator validates tokens asserted by the holder itself. When the token carries a sub_jwk
// it must be signed with that key and sub must be the key thumbprint.
type SelfIssuedValidator struct{}

// NewSelfIssuedValidator returns a self issued token validator.
func NewSelfIssuedValidator() *SelfIssuedValidator {
	return &SelfIssuedValidator{}
}

// Validate validates a self issued token.
func (v *SelfIssuedValidator) Validate(_ context.Context, _ *validation.Queue, item *validation.QueueItem,
	options *validation.ValidatorOptions) (*validation.Response, error) {
	delegates := validation.NewOptions(options, selfIssuedDescription).Delegates

	resp := delegates.GetSelfIssuedTokenObject(validation.NewResponse(), item.RawToken)
	if resp.Failed() {
		return resp, nil
	}

	if subJWK, ok := validation.SubjectJWK(resp.PayloadObject); ok {
		key, err := toJWK(subJWK)
		if err != nil {
			return resp.Fail(validation.StatusMalformedToken, "The sub_jwk of the %s is invalid: %s",
				selfIssuedDescription, err), nil
		}

		resp = delegates.ValidateSignatureOnToken(resp, item.RawToken, key)
		if resp.Failed() {
			return resp, nil
		}

		thumbprint, err := key.Thumbprint()
		if err != nil {
			return resp.Fail(validation.StatusMalformedToken, "The sub_jwk of the %s is invalid: %s",
				selfIssuedDescription, err), nil
		}

		if subject := validation.Subject(resp.PayloadObject); subject != thumbprint {
			return resp.Fail(validation.StatusFormatMismatch,
				"The subject %s of the %s is not the thumbprint of its sub_jwk", subject, selfIssuedDescription), nil
		}
	}

	resp = delegates.CheckTimeValidityOnToken(resp, options.ClockSkew)

	return delegates.GetClaimBag(resp), nil
}

func toJWK(value map[string]interface{}) (*cryptoprovider.JWK, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var key cryptoprovider.JWK

	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, err
	}

	return key.Public(), nil
}
