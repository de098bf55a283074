/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validation

import (
	"fmt"
	"net/http"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
)

// Status codes set on a failed Response.
const (
	StatusOK                   = http.StatusOK
	StatusMalformedToken       = http.StatusBadRequest
	StatusSignatureInvalid     = http.StatusUnauthorized
	StatusFormatMismatch       = http.StatusForbidden
	StatusKeyResolutionFailure = http.StatusForbidden
	StatusScopeMismatch        = http.StatusForbidden
	StatusExpiredOrNotYetValid = http.StatusGone
	StatusNotValidated         = http.StatusInternalServerError
)

// Response is threaded through the delegate chain. Once Result is false the remaining checks are skipped.
type Response struct {
	Result        bool                     `json:"result"`
	Status        int                      `json:"status"`
	DetailedError string                   `json:"detailedError,omitempty"`
	PayloadObject map[string]interface{}   `json:"payloadObject,omitempty"`
	DID           string                   `json:"did,omitempty"`
	Issuer        string                   `json:"issuer,omitempty"`
	Claims        map[string]interface{}   `json:"claims,omitempty"`
	Tokens        []*claimtoken.ClaimToken `json:"tokens,omitempty"`

	Headers        map[string]interface{} `json:"-"`
	KeyID          string                 `json:"-"`
	SigningKey     *cryptoprovider.JWK    `json:"-"`
	EmbeddedTokens []EmbeddedToken        `json:"-"`
}

// EmbeddedToken is a token found inside another token.
// A zero Type means the token still has to be classified.
type EmbeddedToken struct {
	RawToken string
	Type     claimtoken.TokenType
}

// NewResponse returns a successful response.
func NewResponse() *Response {
	return &Response{Result: true, Status: StatusOK}
}

// Fail marks the response as failed and returns it.
func (r *Response) Fail(status int, format string, args ...interface{}) *Response {
	r.Result = false
	r.Status = status
	r.DetailedError = fmt.Sprintf(format, args...)

	return r
}

// Failed reports whether a check has failed.
func (r *Response) Failed() bool {
	return !r.Result
}
