/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"github.com/trustbloc/didtoken/pkg/claimtoken"
	"github.com/trustbloc/didtoken/pkg/validation"
)

// Classify determines the type of token from its payload. A vc claim makes a credential and a vp claim
// a presentation. A claims claim makes a SIOP response. Any other token whose kid names a key is an
// id token, and it is self issued otherwise.
// The claim token is nil when the token can't be parsed.
func Classify(options *validation.Options, token string) (*validation.Response, *claimtoken.ClaimToken) {
	resp := options.Delegates.GetSelfIssuedTokenObject(validation.NewResponse(), token)
	if resp.Failed() {
		return resp, nil
	}

	payload := resp.PayloadObject

	switch {
	case has(payload, "vc"):
		return resp, claimtoken.New(claimtoken.VerifiableCredential, token, "")
	case has(payload, "vp"):
		return resp, claimtoken.New(claimtoken.VerifiablePresentation, token, "")
	case has(payload, "claims"):
		return resp, claimtoken.New(claimtoken.SIOP, token, "")
	}

	formatResp := options.Delegates.GetTokenObject(validation.NewResponse(), token)
	if formatResp.Failed() && formatResp.Status == validation.StatusFormatMismatch {
		return resp, claimtoken.New(claimtoken.SelfIssued, token, "")
	}

	return resp, claimtoken.New(claimtoken.IDToken, token, "")
}

func has(payload map[string]interface{}, name string) bool {
	_, ok := payload[name]

	return ok
}
