/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validation

import (
	"net/http"
	"time"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/didresolver"
)

// HTTPClient sends HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DelegatesFactory builds the delegate chain used for one token type.
type DelegatesFactory func(options *ValidatorOptions, inputDescription string) Delegates

// ValidatorOptions holds the collaborators of one Validate call. It is not modified once built.
type ValidatorOptions struct {
	Resolver     didresolver.Resolver
	Crypto       cryptoprovider.Provider
	HTTPClient   HTTPClient
	ClockSkew    time.Duration
	Now          func() time.Time
	NewDelegates DelegatesFactory
	// FetchRetries is the number of times an OIDC metadata fetch is retried.
	FetchRetries uint64
	// FetchRetryInterval is the wait between OIDC metadata fetch retries.
	FetchRetryInterval time.Duration
}

// Expected holds what the relying party expects to find in a token.
type Expected struct {
	// Audience must match the aud claim of tokens that are not embedded in another token.
	Audience string
	// Issuers lists the accepted id token issuers. Any issuer is accepted when empty.
	Issuers []string
	// SubjectDID must match the sub claim of credentials that are not embedded in a presentation.
	SubjectDID string
}

// Options are the validator options for one token type together with its delegate chain.
type Options struct {
	ValidatorOptions *ValidatorOptions
	InputDescription string
	Delegates        Delegates
}

// NewOptions builds the options for the token type described by inputDescription.
func NewOptions(validatorOptions *ValidatorOptions, inputDescription string) *Options {
	newDelegates := validatorOptions.NewDelegates
	if newDelegates == nil {
		newDelegates = func(options *ValidatorOptions, description string) Delegates {
			return NewHelpers(options, description)
		}
	}

	return &Options{
		ValidatorOptions: validatorOptions,
		InputDescription: inputDescription,
		Delegates:        newDelegates(validatorOptions, inputDescription),
	}
}

func (o *ValidatorOptions) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}

	return o.Now()
}

func (o *ValidatorOptions) httpClient() HTTPClient {
	if o.HTTPClient == nil {
		return http.DefaultClient
	}

	return o.HTTPClient
}
