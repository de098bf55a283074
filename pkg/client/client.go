/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtoken/pkg/didresolver"
	"github.com/trustbloc/didtoken/pkg/restapi/models"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const (
	validationsPath = "/validations"
	identifiersPath = "/identifiers"
	logSpecPath     = "/loglevels"

	contentTypeJSON = "application/json"
)

var logger = log.New("didtoken-client")

type addHeaders func(req *http.Request) (*http.Header, error)

type marshalFunc func(interface{}) ([]byte, error)

// Client is used to interact with a DID token server.
type Client struct {
	serverURL   string
	httpClient  *http.Client
	marshal     marshalFunc
	headersFunc addHeaders
}

// Option configures the DID token client.
type Option func(opts *Client)

// WithTLSConfig option is for definition of secured HTTP transport using a tls.Config instance
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opts *Client) {
		opts.httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
}

// WithHeaders option is for setting additional http request headers
func WithHeaders(addHeadersFunc addHeaders) Option {
	return func(opts *Client) {
		opts.headersFunc = addHeadersFunc
	}
}

// New returns a new instance of a DID token client. serverURL is the base URL of the server.
func New(serverURL string, opts ...Option) *Client {
	c := &Client{serverURL: strings.TrimSuffix(serverURL, "/"), httpClient: &http.Client{}, marshal: json.Marshal}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Validate sends a token to the server for validation.
// A token that fails validation is not an error: the failed result is returned.
func (c *Client) Validate(ctx context.Context, token string) (*validation.Response, error) {
	jsonToSend, err := c.marshal(models.ValidationRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal validation request: %w", err)
	}

	statusCode, httpHdr, respBytes, err := c.sendHTTPRequest(ctx, http.MethodPost, c.serverURL+validationsPath,
		jsonToSend)
	if err != nil {
		return nil, fmt.Errorf("failure while sending validation request: %w", err)
	}

	if !strings.HasPrefix(httpHdr.Get("Content-Type"), contentTypeJSON) {
		return nil, statusError(statusCode, respBytes)
	}

	var result validation.Response

	err = json.Unmarshal(respBytes, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation result: %w", err)
	}

	return &result, nil
}

// CreateDID asks the server to create a new long-form DID. A blank keyReference lets the server generate one.
// The location of the new DID is returned along with the creation result.
func (c *Client) CreateDID(ctx context.Context, keyReference string) (string, *models.CreateDIDResponse, error) {
	jsonToSend, err := c.marshal(models.CreateDIDRequest{KeyReference: keyReference})
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal DID creation request: %w", err)
	}

	logger.Debugf("Sending request to create a new DID with key reference %s", keyReference)

	statusCode, httpHdr, respBytes, err := c.sendHTTPRequest(ctx, http.MethodPost, c.serverURL+identifiersPath,
		jsonToSend)
	if err != nil {
		return "", nil, fmt.Errorf("failure while sending DID creation request: %w", err)
	}

	if statusCode != http.StatusCreated {
		return "", nil, statusError(statusCode, respBytes)
	}

	var response models.CreateDIDResponse

	err = json.Unmarshal(respBytes, &response)
	if err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal DID creation response: %w", err)
	}

	return httpHdr.Get("Location"), &response, nil
}

// Resolve asks the server to resolve didID. An unknown DID gives an error matching didresolver.ErrNotFound,
// so the client can be chained with other resolvers.
func (c *Client) Resolve(ctx context.Context, didID string) (*did.Doc, error) {
	statusCode, _, respBytes, err := c.sendHTTPRequest(ctx, http.MethodGet,
		c.serverURL+identifiersPath+"/"+url.PathEscape(didID), nil)
	if err != nil {
		return nil, fmt.Errorf("failure while sending request to resolve DID %s: %w", didID, err)
	}

	switch statusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", didresolver.ErrNotFound, respBytes)
	default:
		return nil, statusError(statusCode, respBytes)
	}

	doc, err := did.ParseDocument(respBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document of DID %s: %w", didID, err)
	}

	return doc, nil
}

// SetLogSpec changes the log levels of the server.
func (c *Client) SetLogSpec(ctx context.Context, spec string) error {
	jsonToSend, err := c.marshal(models.LogSpec{Spec: spec})
	if err != nil {
		return fmt.Errorf("failed to marshal log spec: %w", err)
	}

	statusCode, _, respBytes, err := c.sendHTTPRequest(ctx, http.MethodPut, c.serverURL+logSpecPath, jsonToSend)
	if err != nil {
		return fmt.Errorf("failure while sending log spec: %w", err)
	}

	if statusCode != http.StatusOK {
		return statusError(statusCode, respBytes)
	}

	return nil
}

// GetLogSpec returns the current log levels of the server.
func (c *Client) GetLogSpec(ctx context.Context) (string, error) {
	statusCode, _, respBytes, err := c.sendHTTPRequest(ctx, http.MethodGet, c.serverURL+logSpecPath, nil)
	if err != nil {
		return "", fmt.Errorf("failure while sending request to get the log spec: %w", err)
	}

	if statusCode != http.StatusOK {
		return "", statusError(statusCode, respBytes)
	}

	var logSpec models.LogSpec

	err = json.Unmarshal(respBytes, &logSpec)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal log spec: %w", err)
	}

	return logSpec.Spec, nil
}

func (c *Client) sendHTTPRequest(ctx context.Context, method, endpoint string,
	body []byte) (int, http.Header, []byte, error) {
	req, errReq := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewBuffer(body))
	if errReq != nil {
		return -1, nil, nil, errReq
	}

	if c.headersFunc != nil {
		httpHeaders, err := c.headersFunc(req)
		if err != nil {
			return -1, nil, nil, fmt.Errorf("add optional request headers error: %w", err)
		}

		if httpHeaders != nil {
			req.Header = httpHeaders.Clone()
		}
	}

	if method == http.MethodPost || method == http.MethodPut {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req) //nolint: bodyclose
	if err != nil {
		return -1, nil, nil, err
	}

	defer closeReadCloser(resp.Body)

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return -1, nil, nil, err
	}

	logger.Debugf(`sent %s request to %s response status code: %d response body: %s`, method, endpoint,
		resp.StatusCode, respBytes)

	return resp.StatusCode, resp.Header, respBytes, nil
}

func statusError(statusCode int, respBytes []byte) error {
	return fmt.Errorf("the DID token server returned status code %d along with the following message: %s",
		statusCode, respBytes)
}

func closeReadCloser(respBody io.ReadCloser) {
	err := respBody.Close()
	if err != nil {
		logger.Errorf("Failed to close response body: %s", err)
	}
}
