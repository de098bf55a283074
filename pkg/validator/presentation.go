/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"context"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const presentationDescription = "verifiable presentation"

// VerifiablePresentationValidator validates JWT verifiable presentations and queues their credentials.
type VerifiablePresentationValidator struct {
	expected validation.Expected
}

// NewVerifiablePresentationValidator returns a presentation validator. Presentations that are not part
// of a SIOP response must be addressed to expected.Audience.
func NewVerifiablePresentationValidator(expected validation.Expected) *VerifiablePresentationValidator {
	return &VerifiablePresentationValidator{expected: expected}
}

// Validate validates a verifiable presentation. A presentation found in a SIOP response must be
// addressed to the SIOP issuer.
func (v *VerifiablePresentationValidator) Validate(ctx context.Context, queue *validation.Queue,
	item *validation.QueueItem, options *validation.ValidatorOptions) (*validation.Response, error) {
	delegates := validation.NewOptions(options, presentationDescription).Delegates

	audience := item.Origin
	if audience == "" {
		audience = v.expected.Audience
	}

	resp := delegates.GetTokenObject(validation.NewResponse(), item.RawToken)
	resp = delegates.ResolveDIDAndGetKeys(ctx, resp)
	resp = delegates.ValidateDIDSignature(resp, item.RawToken)
	resp = delegates.CheckTimeValidityOnToken(resp, options.ClockSkew)
	resp = delegates.CheckScopeValidityOnToken(resp, audience)

	if resp.Failed() {
		return resp, nil
	}

	credentials, err := validation.VerifiableCredentials(resp.PayloadObject)
	if err != nil {
		return resp.Fail(validation.StatusMalformedToken, "The %s is malformed: %s", presentationDescription, err), nil
	}

	holder := resp.DID
	if holder == "" {
		holder = resp.Issuer
	}

	for _, credential := range credentials {
		added := queue.AddClaimToken(claimtoken.New(claimtoken.VerifiableCredential, credential, ""), holder)

		logger.Debugf("Queued verifiable credential %s of presentation %s", added.ID, item.ID)
	}

	return delegates.GetClaimBag(resp), nil
}
