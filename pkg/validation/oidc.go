/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/square/go-jose"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
)

const (
	defaultFetchRetries       = 2
	defaultFetchRetryInterval = 200 * time.Millisecond
)

type openIDConfiguration struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// FetchKeyAndValidateSignatureOnIDToken reads the issuer's OpenID configuration at configurationURL,
// fetches its key set and checks the token signature with the key named by the kid header.
func (h *Helpers) FetchKeyAndValidateSignatureOnIDToken(ctx context.Context, resp *Response,
	token, configurationURL string) *Response {
	if resp.Failed() {
		return resp
	}

	var configuration openIDConfiguration

	if err := h.fetchJSON(ctx, configurationURL, &configuration); err != nil {
		return resp.Fail(StatusKeyResolutionFailure, "Could not fetch the configuration of the %s issuer at %s: %s",
			h.description, configurationURL, err)
	}

	if configuration.JWKSURI == "" {
		return resp.Fail(StatusKeyResolutionFailure, "The configuration at %s has no jwks_uri", configurationURL)
	}

	if configuration.Issuer != "" && resp.Issuer != "" && configuration.Issuer != resp.Issuer {
		return resp.Fail(StatusFormatMismatch, "The issuer %s of the %s does not match the configured issuer %s",
			resp.Issuer, h.description, configuration.Issuer)
	}

	var keySet jose.JSONWebKeySet

	if err := h.fetchJSON(ctx, configuration.JWKSURI, &keySet); err != nil {
		return resp.Fail(StatusKeyResolutionFailure, "Could not fetch the keys of the %s issuer at %s: %s",
			h.description, configuration.JWKSURI, err)
	}

	key, err := selectKey(&keySet, resp.KeyID)
	if err != nil {
		return resp.Fail(StatusKeyResolutionFailure, "%s for the %s", err, h.description)
	}

	resp.SigningKey = key

	return h.ValidateSignatureOnToken(resp, token, key)
}

func selectKey(keySet *jose.JSONWebKeySet, kid string) (*cryptoprovider.JWK, error) {
	var candidates []jose.JSONWebKey

	if kid != "" {
		candidates = keySet.Key(kid)
	} else if len(keySet.Keys) == 1 {
		candidates = keySet.Keys
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no key %q in the issuer key set", kid)
	}

	key, err := cryptoprovider.JWKFromKey(candidates[0].Key)
	if err != nil {
		return nil, err
	}

	return key.Public(), nil
}

func (h *Helpers) fetchJSON(ctx context.Context, url string, v interface{}) error {
	retries := h.options.FetchRetries
	interval := h.options.FetchRetryInterval

	if interval == 0 {
		retries = defaultFetchRetries
		interval = defaultFetchRetryInterval
	}

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Set("Accept", "application/json")

		resp, err := h.options.httpClient().Do(req)
		if err != nil {
			return err
		}

		defer func() {
			if errClose := resp.Body.Close(); errClose != nil {
				logger.Warnf("failed to close response body: %s", errClose)
			}
		}()

		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
		}

		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%s returned status %d", url, resp.StatusCode))
		}

		if err := json.Unmarshal(body, v); err != nil {
			return backoff.Permanent(fmt.Errorf("invalid response from %s: %w", url, err))
		}

		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), retries), ctx))
}
