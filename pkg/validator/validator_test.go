/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/square/go-jose"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/didresolver"
	"github.com/trustbloc/didtoken/pkg/internal/jwstest"
	"github.com/trustbloc/didtoken/pkg/keystore"
	"github.com/trustbloc/didtoken/pkg/longformdid"
	"github.com/trustbloc/didtoken/pkg/validation"
)

const testAudience = "https://rp.example.com"

var testNow = time.Unix(1600000000, 0) //nolint:gochecknoglobals

type identity struct {
	did       string
	shortForm string
	kid       string
	key *cryptoprovider.JWK
}

func newIdentity(t *testing.T, crypto cryptoprovider.Provider) *identity {
	t.Helper()

	keys := keystore.NewMemKeyStore()

	result, err := longformdid.New(crypto, keys).Create("signing")
	require.NoError(t, err)

	key, err := keys.Get("signing")
	require.NoError(t, err)

	return &identity{
		did:       result.LongFormDID,
		shortForm: result.DID,
		kid:       result.LongFormDID + "#" + longformdid.DefaultSigningKeyID,
		key:       key,
	}
}

func (i *identity) sign(t *testing.T, crypto cryptoprovider.Provider, payload map[string]interface{}) string {
	t.Helper()

	token, err := jwstest.Sign(crypto, cryptoprovider.AlgES256K, i.kid, i.key, payload)
	require.NoError(t, err)

	return token
}

// recordingValidator records the queue length seen by each call.
type recordingValidator struct {
	next       TokenValidator
	queueSizes []int
}

func (r *recordingValidator) Validate(ctx context.Context, queue *validation.Queue, item *validation.QueueItem,
	options *validation.ValidatorOptions) (*validation.Response, error) {
	r.queueSizes = append(r.queueSizes, queue.Len())

	return r.next.Validate(ctx, queue, item, options)
}

type failingValidator struct{}

func (failingValidator) Validate(context.Context, *validation.Queue, *validation.QueueItem,
	*validation.ValidatorOptions) (*validation.Response, error) {
	return nil, errors.New("validator error")
}

func newTestValidator(crypto cryptoprovider.Provider, validators map[claimtoken.TokenType]TokenValidator,
	opts ...Option) *Validator {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)

	return New(validators, didresolver.NewLongFormResolver(crypto), crypto, opts...)
}

func allValidators(expected validation.Expected) map[claimtoken.TokenType]TokenValidator {
	return map[claimtoken.TokenType]TokenValidator{
		claimtoken.IDToken:                NewIDTokenValidator(expected),
		claimtoken.VerifiableCredential:   NewVerifiableCredentialValidator(expected),
		claimtoken.VerifiablePresentation: NewVerifiablePresentationValidator(expected),
		claimtoken.SIOP:                   NewSIOPValidator(expected),
		claimtoken.SelfIssued:             NewSelfIssuedValidator(),
	}
}

func TestValidator_Validate_VerifiableCredential(t *testing.T) {
	crypto := jwstest.NewCrypto(t)
	issuer := newIdentity(t, crypto)

	credential := issuer.sign(t, crypto, map[string]interface{}{
		"iss": issuer.did,
		"sub": "did:ion:alice",
		"exp": testNow.Add(time.Hour).Unix(),
		"vc":  map[string]interface{}{"credentialSubject": map[string]interface{}{"degree": "BSc"}},
	})

	t.Run("success", func(t *testing.T) {
		v := newTestValidator(crypto, map[claimtoken.TokenType]TokenValidator{
			claimtoken.VerifiableCredential: NewVerifiableCredentialValidator(validation.Expected{}),
		})

		resp, err := v.Validate(context.Background(), credential)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Equal(t, validation.StatusOK, resp.Status)
		require.Equal(t, "BSc", resp.Claims["degree"])
		require.Len(t, resp.Tokens, 1)
		require.Equal(t, claimtoken.VerifiableCredential, resp.Tokens[0].Type)
	})
	t.Run("failure - subject mismatch", func(t *testing.T) {
		v := newTestValidator(crypto, allValidators(validation.Expected{SubjectDID: "did:ion:bob"}))

		resp, err := v.Validate(context.Background(), credential)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusScopeMismatch, resp.Status)
	})
	t.Run("failure - expired", func(t *testing.T) {
		v := newTestValidator(crypto, allValidators(validation.Expected{}),
			WithClock(func() time.Time { return testNow.Add(2 * time.Hour) }))

		resp, err := v.Validate(context.Background(), credential)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusExpiredOrNotYetValid, resp.Status)
	})
	t.Run("success - within clock skew", func(t *testing.T) {
		v := newTestValidator(crypto, allValidators(validation.Expected{}),
			WithClock(func() time.Time { return testNow.Add(time.Hour + time.Minute) }),
			WithClockSkew(5*time.Minute))

		resp, err := v.Validate(context.Background(), credential)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
	})
}

func TestValidator_Validate_SIOP(t *testing.T) {
	crypto := jwstest.NewCrypto(t)
	holder := newIdentity(t, crypto)
	issuer := newIdentity(t, crypto)

	credential := issuer.sign(t, crypto, map[string]interface{}{
		"iss": issuer.did,
		"sub": holder.did,
		"vc":  map[string]interface{}{"credentialSubject": map[string]interface{}{"degree": "BSc"}},
	})

	t.Run("success - queue grows while processing", func(t *testing.T) {
		presentation := holder.sign(t, crypto, map[string]interface{}{
			"iss": holder.did,
			"aud": holder.did,
			"vp":  map[string]interface{}{},
		})

		siop := holder.sign(t, crypto, map[string]interface{}{
			"iss":    holder.did,
			"aud":    testAudience,
			"name":   "Alice",
			"claims": []interface{}{presentation},
		})

		siopValidator := &recordingValidator{next: NewSIOPValidator(validation.Expected{Audience: testAudience})}
		vpValidator := &recordingValidator{next: NewVerifiablePresentationValidator(validation.Expected{})}

		v := newTestValidator(crypto, map[claimtoken.TokenType]TokenValidator{
			claimtoken.SIOP:                   siopValidator,
			claimtoken.VerifiablePresentation: vpValidator,
		})

		resp, err := v.Validate(context.Background(), siop)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Equal(t, []int{1}, siopValidator.queueSizes)
		require.Equal(t, []int{2}, vpValidator.queueSizes)
		require.Len(t, resp.Tokens, 2)
		require.Equal(t, claimtoken.SIOP, resp.Tokens[0].Type)
		require.Equal(t, claimtoken.VerifiablePresentation, resp.Tokens[1].Type)
		require.Equal(t, "Alice", resp.Claims["name"])
	})
	t.Run("success - attestations with credentials", func(t *testing.T) {
		presentation := holder.sign(t, crypto, map[string]interface{}{
			"iss": holder.did,
			"aud": holder.did,
			"vp":  map[string]interface{}{"verifiableCredential": []interface{}{credential}},
		})

		siop := holder.sign(t, crypto, map[string]interface{}{
			"iss":          holder.did,
			"aud":          testAudience,
			"claims":       map[string]interface{}{"name": "Alice"},
			"attestations": map[string]interface{}{"presentations": map[string]interface{}{"Diploma": presentation}},
		})

		resp, err := newTestValidator(crypto, allValidators(validation.Expected{Audience: testAudience})).
			Validate(context.Background(), siop)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Len(t, resp.Tokens, 3)
		require.Equal(t, claimtoken.VerifiableCredential, resp.Tokens[2].Type)
		require.Equal(t, "BSc", resp.Claims["degree"])
	})
	t.Run("success - presentation addressed to the short-form holder DID", func(t *testing.T) {
		shortFormCredential := issuer.sign(t, crypto, map[string]interface{}{
			"iss": issuer.did,
			"sub": holder.shortForm,
			"vc":  map[string]interface{}{"credentialSubject": map[string]interface{}{"degree": "MSc"}},
		})

		presentation := holder.sign(t, crypto, map[string]interface{}{
			"iss": holder.did,
			"aud": holder.shortForm,
			"vp":  map[string]interface{}{"verifiableCredential": []interface{}{shortFormCredential}},
		})

		siop := holder.sign(t, crypto, map[string]interface{}{
			"iss":    holder.did,
			"aud":    testAudience,
			"claims": []interface{}{presentation},
		})

		resp, err := newTestValidator(crypto, allValidators(validation.Expected{Audience: testAudience})).
			Validate(context.Background(), siop)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Len(t, resp.Tokens, 3)
		require.Equal(t, "MSc", resp.Claims["degree"])
	})
	t.Run("failure - credential issued to someone else", func(t *testing.T) {
		other := newIdentity(t, crypto)

		presentation := other.sign(t, crypto, map[string]interface{}{
			"iss": other.did,
			"aud": holder.did,
			"vp":  map[string]interface{}{"verifiableCredential": credential},
		})

		siop := holder.sign(t, crypto, map[string]interface{}{
			"iss":    holder.did,
			"aud":    testAudience,
			"claims": map[string]interface{}{"diploma": presentation},
		})

		resp, err := newTestValidator(crypto, allValidators(validation.Expected{Audience: testAudience})).
			Validate(context.Background(), siop)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusScopeMismatch, resp.Status)
		require.Contains(t, resp.DetailedError, "verifiable credential")
		require.Len(t, resp.Tokens, 3)
	})
	t.Run("failure - presentation addressed to someone else", func(t *testing.T) {
		presentation := holder.sign(t, crypto, map[string]interface{}{
			"iss": holder.did,
			"aud": "did:ion:other",
			"vp":  map[string]interface{}{},
		})

		siop := holder.sign(t, crypto, map[string]interface{}{
			"iss":    holder.did,
			"aud":    testAudience,
			"claims": []interface{}{presentation},
		})

		resp, err := newTestValidator(crypto, allValidators(validation.Expected{Audience: testAudience})).
			Validate(context.Background(), siop)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusScopeMismatch, resp.Status)
		require.Contains(t, resp.DetailedError, "verifiable presentation")
	})
	t.Run("failure - wrong audience stops at the SIOP", func(t *testing.T) {
		siop := holder.sign(t, crypto, map[string]interface{}{
			"iss":    holder.did,
			"aud":    "https://other.example.com",
			"claims": []interface{}{credential},
		})

		resp, err := newTestValidator(crypto, allValidators(validation.Expected{Audience: testAudience})).
			Validate(context.Background(), siop)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusScopeMismatch, resp.Status)
		require.Len(t, resp.Tokens, 1)
	})
}

func TestValidator_Validate_Errors(t *testing.T) {
	crypto := jwstest.NewCrypto(t)
	issuer := newIdentity(t, crypto)

	credential := issuer.sign(t, crypto, map[string]interface{}{"iss": issuer.did, "vc": map[string]interface{}{}})

	t.Run("unregistered token type", func(t *testing.T) {
		v := newTestValidator(crypto, map[claimtoken.TokenType]TokenValidator{
			claimtoken.SIOP: NewSIOPValidator(validation.Expected{}),
		})

		resp, err := v.Validate(context.Background(), credential)
		require.Nil(t, resp)
		require.ErrorIs(t, err, ErrUnsupportedTokenType)
		require.Contains(t, err.Error(), "verifiableCredential")
	})
	t.Run("unregistered nested token type", func(t *testing.T) {
		siop := issuer.sign(t, crypto, map[string]interface{}{"iss": issuer.did, "claims": []interface{}{credential}})

		v := newTestValidator(crypto, map[claimtoken.TokenType]TokenValidator{
			claimtoken.SIOP: NewSIOPValidator(validation.Expected{}),
		})

		_, err := v.Validate(context.Background(), siop)
		require.ErrorIs(t, err, ErrUnsupportedTokenType)
		require.Contains(t, err.Error(), "verifiableCredential")
	})
	t.Run("token can't be classified", func(t *testing.T) {
		_, err := newTestValidator(crypto, allValidators(validation.Expected{})).
			Validate(context.Background(), "not a token")
		require.ErrorIs(t, err, ErrUnsupportedTokenType)
	})
	t.Run("validator error aborts", func(t *testing.T) {
		v := newTestValidator(crypto, map[claimtoken.TokenType]TokenValidator{
			claimtoken.VerifiableCredential: failingValidator{},
		})

		_, err := v.Validate(context.Background(), credential)
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to validate verifiableCredential")
		require.Contains(t, err.Error(), "validator error")
	})
}

func TestValidator_Validate_SelfIssued(t *testing.T) {
	crypto := jwstest.NewCrypto(t)

	key, err := crypto.GenerateKeyPair(cryptoprovider.CurveP256)
	require.NoError(t, err)

	thumbprint, err := key.Thumbprint()
	require.NoError(t, err)

	v := newTestValidator(crypto, allValidators(validation.Expected{}))

	t.Run("success - signed with sub_jwk", func(t *testing.T) {
		token, err := jwstest.Sign(crypto, cryptoprovider.AlgES256, "", key, map[string]interface{}{
			"sub":     thumbprint,
			"sub_jwk": key.Public(),
			"email":   "alice@example.com",
		})
		require.NoError(t, err)

		resp, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Equal(t, claimtoken.SelfIssued, resp.Tokens[0].Type)
		require.Equal(t, "alice@example.com", resp.Claims["email"])
	})
	t.Run("success - unsigned", func(t *testing.T) {
		token, err := jwstest.Unsigned(map[string]interface{}{"name": "Alice"})
		require.NoError(t, err)

		resp, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Equal(t, "Alice", resp.Claims["name"])
	})
	t.Run("failure - subject is not the thumbprint", func(t *testing.T) {
		token, err := jwstest.Sign(crypto, cryptoprovider.AlgES256, "", key, map[string]interface{}{
			"sub":     "someone",
			"sub_jwk": key.Public(),
		})
		require.NoError(t, err)

		resp, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusFormatMismatch, resp.Status)
	})
	t.Run("failure - not signed with sub_jwk", func(t *testing.T) {
		other, err := crypto.GenerateKeyPair(cryptoprovider.CurveP256)
		require.NoError(t, err)

		token, err := jwstest.Sign(crypto, cryptoprovider.AlgES256, "", other, map[string]interface{}{
			"sub":     thumbprint,
			"sub_jwk": key.Public(),
		})
		require.NoError(t, err)

		resp, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusSignatureInvalid, resp.Status)
	})
}

func newOpenIDProvider(t *testing.T) (*httptest.Server, *cryptoprovider.JWK) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	key, err := cryptoprovider.JWKFromKey(privateKey)
	require.NoError(t, err)

	var server *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc(openIDConfigurationPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"issuer":   server.URL,
			"jwks_uri": server.URL + "/jwks",
		}))
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
			{Key: &privateKey.PublicKey, KeyID: "k1", Algorithm: cryptoprovider.AlgES256, Use: "sig"},
		}}))
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, key
}

func TestValidator_Validate_IDToken(t *testing.T) {
	crypto := jwstest.NewCrypto(t)
	server, key := newOpenIDProvider(t)

	token, err := jwstest.Sign(crypto, cryptoprovider.AlgES256, "k1", key, map[string]interface{}{
		"iss":   server.URL,
		"aud":   testAudience,
		"email": "alice@example.com",
		"exp":   testNow.Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		v := newTestValidator(crypto, allValidators(validation.Expected{
			Audience: testAudience,
			Issuers:  []string{server.URL + "/"},
		}), WithHTTPClient(server.Client()), WithFetchRetries(1, time.Millisecond))

		resp, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Equal(t, claimtoken.IDToken, resp.Tokens[0].Type)
		require.Equal(t, "alice@example.com", resp.Claims["email"])
	})
	t.Run("failure - untrusted issuer", func(t *testing.T) {
		v := newTestValidator(crypto, allValidators(validation.Expected{
			Audience: testAudience,
			Issuers:  []string{"https://login.example.com"},
		}))

		resp, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusFormatMismatch, resp.Status)
	})
	t.Run("failure - wrong audience", func(t *testing.T) {
		v := newTestValidator(crypto, allValidators(validation.Expected{Audience: "https://other.example.com"}),
			WithFetchRetries(1, time.Millisecond))

		resp, err := v.Validate(context.Background(), token)
		require.NoError(t, err)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusScopeMismatch, resp.Status)
	})
	t.Run("success - DID issuer", func(t *testing.T) {
		issuer := newIdentity(t, crypto)

		idToken := issuer.sign(t, crypto, map[string]interface{}{"iss": issuer.did, "aud": testAudience})

		resp, err := newTestValidator(crypto, allValidators(validation.Expected{Audience: testAudience})).
			Validate(context.Background(), idToken)
		require.NoError(t, err)
		require.True(t, resp.Result, resp.DetailedError)
		require.Equal(t, claimtoken.IDToken, resp.Tokens[0].Type)
	})
}

type recordingDelegates struct {
	*validation.Helpers
}

func TestWithDelegates(t *testing.T) {
	crypto := jwstest.NewCrypto(t)
	issuer := newIdentity(t, crypto)

	var descriptions []string

	v := newTestValidator(crypto, allValidators(validation.Expected{}),
		WithDelegates(func(options *validation.ValidatorOptions, description string) validation.Delegates {
			descriptions = append(descriptions, description)

			return &recordingDelegates{Helpers: validation.NewHelpers(options, description)}
		}))

	resp, err := v.Validate(context.Background(),
		issuer.sign(t, crypto, map[string]interface{}{"iss": issuer.did, "vc": map[string]interface{}{}}))
	require.NoError(t, err)
	require.True(t, resp.Result, resp.DetailedError)
	require.Equal(t, []string{classifierDescription, credentialDescription}, descriptions)
}

func TestClassify(t *testing.T) {
	crypto := jwstest.NewCrypto(t)
	issuer := newIdentity(t, crypto)
	options := validation.NewOptions(&validation.ValidatorOptions{Crypto: crypto}, classifierDescription)

	unsigned, err := jwstest.Unsigned(map[string]interface{}{"name": "Alice"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		expected claimtoken.TokenType
	}{
		{
			name: "vc wins over vp and claims",
			token: issuer.sign(t, crypto, map[string]interface{}{
				"vc": map[string]interface{}{}, "vp": map[string]interface{}{}, "claims": []interface{}{},
			}),
			expected: claimtoken.VerifiableCredential,
		},
		{
			name: "vp wins over claims",
			token: issuer.sign(t, crypto, map[string]interface{}{
				"vp": map[string]interface{}{}, "claims": []interface{}{},
			}),
			expected: claimtoken.VerifiablePresentation,
		},
		{
			name:     "claims",
			token:    issuer.sign(t, crypto, map[string]interface{}{"claims": []interface{}{}}),
			expected: claimtoken.SIOP,
		},
		{
			name: "attestations without claims",
			token: issuer.sign(t, crypto, map[string]interface{}{
				"iss": "https://login.example.com", "attestations": map[string]interface{}{},
			}),
			expected: claimtoken.IDToken,
		},
		{
			name:     "kid",
			token:    issuer.sign(t, crypto, map[string]interface{}{"iss": "https://login.example.com"}),
			expected: claimtoken.IDToken,
		},
		{
			name:     "no kid",
			token:    unsigned,
			expected: claimtoken.SelfIssued,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			resp, token := Classify(options, tc.token)
			require.True(t, resp.Result)
			require.NotNil(t, token)
			require.Equal(t, tc.expected, token.Type)
			require.Equal(t, tc.token, token.RawToken)
		})
	}

	t.Run("malformed", func(t *testing.T) {
		resp, token := Classify(options, "x.y.z")
		require.Nil(t, token)
		require.False(t, resp.Result)
		require.Equal(t, validation.StatusMalformedToken, resp.Status)
	})
}
