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

const credentialDescription = "verifiable credential"

// VerifiableCredentialValidator validates JWT verifiable credentials signed with a DID key.
type VerifiableCredentialValidator struct {
	expected validation.Expected
}

// NewVerifiableCredentialValidator returns a credential validator. Credentials that are not part of a
// presentation must be issued to expected.SubjectDID, when set.
func NewVerifiableCredentialValidator(expected validation.Expected) *VerifiableCredentialValidator {
	return &VerifiableCredentialValidator{expected: expected}
}

// Validate validates a verifiable credential. A credential found in a presentation must be issued to
// the presentation holder.
func (v *VerifiableCredentialValidator) Validate(ctx context.Context, _ *validation.Queue,
	item *validation.QueueItem, options *validation.ValidatorOptions) (*validation.Response, error) {
	delegates := validation.NewOptions(options, credentialDescription).Delegates

	resp := delegates.GetTokenObject(validation.NewResponse(), item.RawToken)
	resp = delegates.ResolveDIDAndGetKeys(ctx, resp)
	resp = delegates.ValidateDIDSignature(resp, item.RawToken)
	resp = delegates.CheckTimeValidityOnToken(resp, options.ClockSkew)

	if resp.Failed() {
		return resp, nil
	}

	expectedSubject := item.Origin
	if expectedSubject == "" {
		expectedSubject = v.expected.SubjectDID
	}

	if subject := validation.Subject(resp.PayloadObject); expectedSubject != "" &&
		!didutils.SameDID(subject, expectedSubject) {
		return resp.Fail(validation.StatusScopeMismatch,
			"The subject %s of the %s does not match the expected subject %s",
			subject, credentialDescription, expectedSubject), nil
	}

	return delegates.GetClaimBag(resp), nil
}
