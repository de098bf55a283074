/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"context"

	"github.com/trustbloc/didtoken/pkg/didutils"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const siopDescription = "SIOP"

// SIOPValidator validates self-issued OpenID provider responses and queues the tokens they carry.
type SIOPValidator struct {
	expected validation.Expected
}

// NewSIOPValidator returns a SIOP validator accepting responses addressed to expected.Audience.
func NewSIOPValidator(expected validation.Expected) *SIOPValidator {
	return &SIOPValidator{expected: expected}
}

// Validate validates a SIOP response.
func (v *SIOPValidator) Validate(ctx context.Context, queue *validation.Queue, item *validation.QueueItem,
	options *validation.ValidatorOptions) (*validation.Response, error) {
	delegates := validation.NewOptions(options, siopDescription).Delegates

	resp := delegates.GetTokenObject(validation.NewResponse(), item.RawToken)
	resp = delegates.ResolveDIDAndGetKeys(ctx, resp)
	resp = delegates.ValidateDIDSignature(resp, item.RawToken)
	resp = delegates.CheckTimeValidityOnToken(resp, options.ClockSkew)
	resp = delegates.CheckScopeValidityOnToken(resp, v.expected.Audience)
	resp = delegates.GetTokensFromSiop(resp)

	if resp.Failed() {
		return resp, nil
	}

	for _, embedded := range resp.EmbeddedTokens {
		added := queue.AddEmbeddedToken(embedded, didutils.ShortForm(resp.DID))

		logger.Debugf("Queued token %s of SIOP %s", added.ID, item.ID)
	}

	return delegates.GetClaimBag(resp), nil
}
