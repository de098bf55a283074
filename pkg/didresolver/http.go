/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didresolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-framework-go/pkg/framework/aries/api/vdr"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/httpbinding"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetries       = 3
	defaultRetryInterval = 500 * time.Millisecond
)

type didReader interface {
	Read(didID string, opts ...vdrapi.DIDMethodOption) (*did.DocResolution, error)
}

// HTTPResolver resolves DIDs through a universal resolver HTTP binding.
type HTTPResolver struct {
	reader        didReader
	retries       uint64
	retryInterval time.Duration
}

type httpResolverOptions struct {
	timeout       time.Duration
	httpClient    *http.Client
	retries       uint64
	retryInterval time.Duration
}

// HTTPOption configures the HTTPResolver.
type HTTPOption func(opts *httpResolverOptions)

// WithTimeout sets the timeout of resolution requests.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(opts *httpResolverOptions) {
		opts.timeout = timeout
	}
}

// WithHTTPClient sets the HTTP client used for resolution requests.
func WithHTTPClient(httpClient *http.Client) HTTPOption {
	return func(opts *httpResolverOptions) {
		opts.httpClient = httpClient
	}
}

// WithRetries sets how many times a failed resolution is retried, and the wait between attempts.
func WithRetries(retries uint64, interval time.Duration) HTTPOption {
	return func(opts *httpResolverOptions) {
		opts.retries = retries
		opts.retryInterval = interval
	}
}

// NewHTTPResolver returns a resolver for the universal resolver at resolverURL.
func NewHTTPResolver(resolverURL string, opts ...HTTPOption) (*HTTPResolver, error) {
	options := &httpResolverOptions{
		timeout:       defaultTimeout,
		retries:       defaultRetries,
		retryInterval: defaultRetryInterval,
	}

	for _, opt := range opts {
		opt(options)
	}

	bindingOpts := []httpbinding.Option{httpbinding.WithTimeout(options.timeout)}

	if options.httpClient != nil {
		bindingOpts = append(bindingOpts, httpbinding.WithHTTPClient(options.httpClient))
	}

	reader, err := httpbinding.New(resolverURL, bindingOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP binding to %s: %w", resolverURL, err)
	}

	return &HTTPResolver{reader: reader, retries: options.retries, retryInterval: options.retryInterval}, nil
}

// Resolve resolves didID. Failures other than "not found" are retried.
func (r *HTTPResolver) Resolve(ctx context.Context, didID string) (*did.Doc, error) {
	var doc *did.Doc

	err := backoff.Retry(func() error {
		resolution, err := r.reader.Read(didID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return backoff.Permanent(err)
			}

			logger.Debugf("Failed to resolve %s, will retry: %s", didID, err)

			return err
		}

		if resolution.DIDDocument == nil {
			return backoff.Permanent(fmt.Errorf("%w: empty document for %s", ErrNotFound, didID))
		}

		doc = resolution.DIDDocument

		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryInterval), r.retries), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", didID, err)
	}

	return doc, nil
}
