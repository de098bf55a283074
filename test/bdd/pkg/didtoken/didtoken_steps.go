/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didtoken

import (
	ctx "context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/didutils"
	"github.com/trustbloc/didtoken/pkg/longformdid"
	"github.com/trustbloc/didtoken/test/bdd/pkg/common"
	"github.com/trustbloc/didtoken/test/bdd/pkg/context"
)

const issuerKeyReference = "bdd-issuer"

// Steps is steps for DID token BDD tests
type Steps struct {
	bddContext *context.BDDContext
}

// NewSteps returns BDD test steps for the DID token server
func NewSteps(bddContext *context.BDDContext) *Steps {
	return &Steps{bddContext: bddContext}
}

// RegisterSteps registers DID token server test steps
func (e *Steps) RegisterSteps(s *godog.Suite) {
	s.Step(`^Client sends request to create a new DID with key reference "([^"]*)"$`, e.createDID)
	s.Step(`^Client sends request to create a new DID without a key reference$`, e.createDIDWithoutReference)
	s.Step(`^the DID location and a key reference are returned$`, e.checkCreatedDID)
	s.Step(`^Client resolves the created DID and receives its document$`, e.resolveCreatedDID)
	s.Step(`^Client resolves "([^"]*)" and is told it was not found$`, e.resolveUnknownDID)
	s.Step(`^Client validates a self issued token with name "([^"]*)"$`, e.validateSelfIssuedToken)
	s.Step(`^Client validates a self issued token that expired (\d+) minutes ago$`, e.validateExpiredToken)
	s.Step(`^Client validates a verifiable credential with claim "([^"]*)" set to "([^"]*)"$`,
		e.validateCredential)
	s.Step(`^the validation result is "(true|false)" with status (\d+)$`, e.checkValidationResult)
	s.Step(`^the validation result has claim "([^"]*)" set to "([^"]*)"$`, e.checkClaim)
	s.Step(`^the validation result lists a token of type "([^"]*)"$`, e.checkTokenType)
	s.Step(`^Client sets the log spec to "([^"]*)"$`, e.setLogSpec)
	s.Step(`^the log spec is "([^"]*)"$`, e.checkLogSpec)
}

func (e *Steps) createDID(keyReference string) error {
	location, response, err := e.bddContext.DIDTokenClient.CreateDID(ctx.Background(), keyReference)
	if err != nil {
		return err
	}

	if response.KeyReference != keyReference {
		return common.UnexpectedValueError(keyReference, response.KeyReference)
	}

	e.bddContext.CreatedDID = response
	e.bddContext.CreatedLocation = location

	return nil
}

func (e *Steps) createDIDWithoutReference() error {
	location, response, err := e.bddContext.DIDTokenClient.CreateDID(ctx.Background(), "")
	if err != nil {
		return err
	}

	e.bddContext.CreatedDID = response
	e.bddContext.CreatedLocation = location

	return nil
}

func (e *Steps) checkCreatedDID() error {
	created := e.bddContext.CreatedDID
	if created == nil || created.CreateResult == nil {
		return errors.New("no DID was created")
	}

	if created.KeyReference == "" {
		return errors.New("the server did not return a key reference")
	}

	method, err := didutils.Method(created.DID)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(created.LongFormDID, created.DID+"?-"+method+"-initial-state=") {
		return fmt.Errorf("%s is not the long form of %s", created.LongFormDID, created.DID)
	}

	if !strings.Contains(e.bddContext.CreatedLocation, "/identifiers/") {
		return fmt.Errorf("unexpected DID location %s", e.bddContext.CreatedLocation)
	}

	return nil
}

func (e *Steps) resolveCreatedDID() error {
	created := e.bddContext.CreatedDID
	if created == nil {
		return errors.New("no DID was created")
	}

	doc, err := e.bddContext.DIDTokenClient.Resolve(ctx.Background(), created.LongFormDID)
	if err != nil {
		return err
	}

	if doc.ID != created.LongFormDID {
		return common.UnexpectedValueError(created.LongFormDID, doc.ID)
	}

	if len(doc.VerificationMethod) == 0 {
		return errors.New("the resolved document has no verification method")
	}

	return nil
}

func (e *Steps) resolveUnknownDID(didID string) error {
	_, err := e.bddContext.DIDTokenClient.Resolve(ctx.Background(), didID)
	if err == nil {
		return fmt.Errorf("expected %s to be unresolvable", didID)
	}

	if !strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("expected a not found error but got: %w", err)
	}

	return nil
}

func (e *Steps) validateSelfIssuedToken(name string) error {
	return e.validate(unsignedToken(map[string]interface{}{"iss": "https://self-issued.me", "name": name}))
}

func (e *Steps) validateExpiredToken(minutes int) error {
	return e.validate(unsignedToken(map[string]interface{}{
		"iss": "https://self-issued.me",
		"exp": time.Now().Add(-time.Duration(minutes) * time.Minute).Unix(),
	}))
}

// The credential is issued by a long-form DID created locally, so the server resolves it without a registry.
func (e *Steps) validateCredential(claim, value string) error {
	result, err := e.bddContext.Creator.Create(issuerKeyReference)
	if err != nil {
		return err
	}

	key, err := e.bddContext.KeyStore.Get(issuerKeyReference)
	if err != nil {
		return err
	}

	token, err := signedToken(e.bddContext.Crypto, result.LongFormDID+"#"+longformdid.DefaultSigningKeyID, key,
		map[string]interface{}{
			"iss": result.LongFormDID,
			"sub": "did:ion:bdd-subject",
			"exp": time.Now().Add(time.Hour).Unix(),
			"vc":  map[string]interface{}{"credentialSubject": map[string]interface{}{claim: value}},
		})
	if err != nil {
		return err
	}

	return e.validate(token)
}

func (e *Steps) validate(token string) error {
	result, err := e.bddContext.DIDTokenClient.Validate(ctx.Background(), token)
	if err != nil {
		return err
	}

	e.bddContext.ValidationResult = result

	return nil
}

func (e *Steps) checkValidationResult(expectedResult string, expectedStatus int) error {
	result := e.bddContext.ValidationResult
	if result == nil {
		return errors.New("no token was validated")
	}

	if strconv.FormatBool(result.Result) != expectedResult {
		return fmt.Errorf("expected result %s but got %t: %s", expectedResult, result.Result, result.DetailedError)
	}

	if result.Status != expectedStatus {
		return common.UnexpectedValueError(expectedStatus, result.Status)
	}

	return nil
}

func (e *Steps) checkClaim(name, expectedValue string) error {
	result := e.bddContext.ValidationResult
	if result == nil {
		return errors.New("no token was validated")
	}

	value, ok := result.Claims[name]
	if !ok {
		return fmt.Errorf("claim %s is missing", name)
	}

	if fmt.Sprint(value) != expectedValue {
		return common.UnexpectedValueError(expectedValue, value)
	}

	return nil
}

func (e *Steps) checkTokenType(expectedType string) error {
	result := e.bddContext.ValidationResult
	if result == nil {
		return errors.New("no token was validated")
	}

	for _, token := range result.Tokens {
		if token.Type.String() == expectedType {
			return nil
		}
	}

	return fmt.Errorf("no token of type %s in the validation result", expectedType)
}

func (e *Steps) setLogSpec(spec string) error {
	return e.bddContext.DIDTokenClient.SetLogSpec(ctx.Background(), spec)
}

func (e *Steps) checkLogSpec(expectedSpec string) error {
	spec, err := e.bddContext.DIDTokenClient.GetLogSpec(ctx.Background())
	if err != nil {
		return err
	}

	if spec != expectedSpec {
		return common.UnexpectedValueError(expectedSpec, spec)
	}

	return nil
}

func unsignedToken(payload map[string]interface{}) string {
	return encodeSegment(map[string]interface{}{"alg": "none"}) + "." + encodeSegment(payload) + "."
}

func signedToken(crypto cryptoprovider.Provider, kid string, key *cryptoprovider.JWK,
	payload map[string]interface{}) (string, error) {
	signingInput := encodeSegment(map[string]interface{}{"alg": cryptoprovider.AlgES256K, "typ": "JWT", "kid": kid}) +
		"." + encodeSegment(payload)

	signature, err := crypto.Sign(cryptoprovider.AlgES256K, key, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func encodeSegment(v map[string]interface{}) string {
	// maps of strings and numbers always marshal
	segment, _ := json.Marshal(v) //nolint:errcheck

	return base64.RawURLEncoding.EncodeToString(segment)
}
