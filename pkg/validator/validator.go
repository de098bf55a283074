/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package validator validates a token together with every token embedded in it.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/didresolver"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const (
	logModuleName = "validator"

	classifierDescription = "token"
)

var logger = log.New(logModuleName)

// ErrUnsupportedTokenType is returned when a token can't be classified or no validator handles its type.
var ErrUnsupportedTokenType = errors.New("unsupported token type")

// TokenValidator validates one token type. It may add the tokens it finds to the queue.
// A failed check is reported in the returned response. An error aborts the whole validation.
type TokenValidator interface {
	Validate(ctx context.Context, queue *validation.Queue, item *validation.QueueItem,
		options *validation.ValidatorOptions) (*validation.Response, error)
}

// Option configures a Validator.
type Option func(v *Validator)

// WithHTTPClient sets the client used to fetch OpenID provider metadata.
func WithHTTPClient(httpClient validation.HTTPClient) Option {
	return func(v *Validator) {
		v.httpClient = httpClient
	}
}

// WithClockSkew sets the tolerance applied to exp and nbf.
func WithClockSkew(skew time.Duration) Option {
	return func(v *Validator) {
		v.clockSkew = skew
	}
}

// WithClock sets the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithDelegates replaces the default delegate chain.
func WithDelegates(factory validation.DelegatesFactory) Option {
	return func(v *Validator) {
		v.newDelegates = factory
	}
}

// WithFetchRetries sets how OpenID provider metadata fetches are retried.
func WithFetchRetries(retries uint64, interval time.Duration) Option {
	return func(v *Validator) {
		v.fetchRetries = retries
		v.fetchRetryInterval = interval
	}
}

// Validator dispatches every token of a validation to the validator registered for its type.
type Validator struct {
	validators         map[claimtoken.TokenType]TokenValidator
	resolver           didresolver.Resolver
	crypto             cryptoprovider.Provider
	httpClient         validation.HTTPClient
	clockSkew          time.Duration
	now                func() time.Time
	newDelegates       validation.DelegatesFactory
	fetchRetries       uint64
	fetchRetryInterval time.Duration
}

// New returns a Validator dispatching to validators. Signatures are checked with crypto.
func New(validators map[claimtoken.TokenType]TokenValidator, resolver didresolver.Resolver,
	crypto cryptoprovider.Provider, opts ...Option) *Validator {
	v := &Validator{
		validators: make(map[claimtoken.TokenType]TokenValidator, len(validators)),
		resolver:   resolver,
		crypto:     crypto,
	}

	for tokenType, tokenValidator := range validators {
		v.validators[tokenType] = tokenValidator
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate validates rawToken and the tokens embedded in it, breadth first.
// The returned response aggregates the result of every token.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*validation.Response, error) {
	options := &validation.ValidatorOptions{
		Resolver:           v.resolver,
		Crypto:             v.crypto,
		HTTPClient:         v.httpClient,
		ClockSkew:          v.clockSkew,
		Now:                v.now,
		NewDelegates:       v.newDelegates,
		FetchRetries:       v.fetchRetries,
		FetchRetryInterval: v.fetchRetryInterval,
	}

	classifierOptions := validation.NewOptions(options, classifierDescription)

	queue := validation.NewQueue()
	queue.AddToken(rawToken)

	for item, ok := queue.GetNextToken(); ok; item, ok = queue.GetNextToken() {
		if item.ClaimToken() == nil {
			resp, token := Classify(classifierOptions, item.RawToken)
			if token == nil {
				return nil, fmt.Errorf("%w: token %s could not be classified: %s",
					ErrUnsupportedTokenType, item.ID, resp.DetailedError)
			}

			item.SetClaimToken(claimtoken.New(token.Type, token.RawToken, item.ID))
		}

		tokenType := item.ClaimToken().Type
		if !tokenType.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedTokenType, tokenType)
		}

		tokenValidator, ok := v.validators[tokenType]
		if !ok {
			return nil, fmt.Errorf("%w: no validator registered for %s", ErrUnsupportedTokenType, tokenType)
		}

		logger.Debugf("Validating %s %s", tokenType, item.ID)

		resp, err := tokenValidator.Validate(ctx, queue, item, options)
		if err != nil {
			return nil, fmt.Errorf("failed to validate %s %s: %w", tokenType, item.ID, err)
		}

		if err := item.SetResult(resp); err != nil {
			return nil, fmt.Errorf("failed to record result of %s %s: %w", tokenType, item.ID, err)
		}

		if resp.Failed() {
			logger.Debugf("Validation of %s %s failed with status %d: %s", tokenType, item.ID,
				resp.Status, resp.DetailedError)
		}
	}

	return queue.GetResult(), nil
}
