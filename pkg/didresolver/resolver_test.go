/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didresolver

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/internal/jwstest"
	"github.com/trustbloc/didtoken/pkg/keystore"
	"github.com/trustbloc/didtoken/pkg/longformdid"
)

const (
	testDID     = "did:example:123"
	didLDJson   = "application/did+ld+json"
	docTemplate = `{
  "@context": ["https://www.w3.org/ns/did/v1"],
  "id": "%[1]s",
  "verificationMethod": [{
    "id": "%[1]s#key-1",
    "type": "Ed25519VerificationKey2018",
    "controller": "%[1]s",
    "publicKeyBase58": "%[2]s"
  }]
}`
)

type stubResolver struct {
	doc *did.Doc
	err error
}

func (s *stubResolver) Resolve(context.Context, string) (*did.Doc, error) {
	return s.doc, s.err
}

func newUniversalResolver(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()

	var hits int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)

		require.True(t, strings.HasSuffix(r.URL.Path, "/"+testDID))

		w.Header().Set("Content-type", didLDJson)
		w.WriteHeader(status)
		_, err := w.Write([]byte(body))
		require.NoError(t, err)
	}))

	t.Cleanup(server.Close)

	return server, &hits
}

func TestHTTPResolver_Resolve(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		server, hits := newUniversalResolver(t, http.StatusOK, fmt.Sprintf(docTemplate, testDID, base58.Encode(pub)))

		resolver, err := NewHTTPResolver(server.URL+"/1.0/identifiers", WithTimeout(time.Second),
			WithHTTPClient(server.Client()))
		require.NoError(t, err)

		doc, err := resolver.Resolve(context.Background(), testDID)
		require.NoError(t, err)
		require.Equal(t, testDID, doc.ID)
		require.EqualValues(t, 1, atomic.LoadInt32(hits))

		key, err := PublicKey(doc, testDID+"#key-1")
		require.NoError(t, err)
		require.Equal(t, cryptoprovider.KeyTypeOKP, key.Kty)

		expected, err := cryptoprovider.JWKFromKey(pub)
		require.NoError(t, err)
		require.Equal(t, expected.X, key.X)
	})
	t.Run("failure - not found is not retried", func(t *testing.T) {
		server, hits := newUniversalResolver(t, http.StatusNotFound, "")

		resolver, err := NewHTTPResolver(server.URL, WithRetries(3, time.Millisecond))
		require.NoError(t, err)

		_, err = resolver.Resolve(context.Background(), testDID)
		require.True(t, IsNotFound(err))
		require.EqualValues(t, 1, atomic.LoadInt32(hits))
	})
	t.Run("failure - server errors are retried", func(t *testing.T) {
		server, hits := newUniversalResolver(t, http.StatusInternalServerError, "boom")

		resolver, err := NewHTTPResolver(server.URL, WithRetries(2, time.Millisecond))
		require.NoError(t, err)

		_, err = resolver.Resolve(context.Background(), testDID)
		require.Error(t, err)
		require.False(t, IsNotFound(err))
		require.EqualValues(t, 3, atomic.LoadInt32(hits))
	})
	t.Run("failure - cancelled context stops retries", func(t *testing.T) {
		server, _ := newUniversalResolver(t, http.StatusInternalServerError, "boom")

		resolver, err := NewHTTPResolver(server.URL, WithRetries(100, time.Hour))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = resolver.Resolve(ctx, testDID)
		require.Error(t, err)
	})
}

func TestLongFormResolver_Resolve(t *testing.T) {
	crypto := jwstest.NewCrypto(t)

	result, err := longformdid.New(crypto, keystore.NewMemKeyStore()).Create("sig-ref")
	require.NoError(t, err)

	resolver := NewLongFormResolver(crypto)

	t.Run("success", func(t *testing.T) {
		doc, err := resolver.Resolve(context.Background(), result.LongFormDID)
		require.NoError(t, err)
		require.Equal(t, result.LongFormDID, doc.ID)

		key, err := PublicKey(doc, result.LongFormDID+"#"+longformdid.DefaultSigningKeyID)
		require.NoError(t, err)
		require.Equal(t, result.SigningPublicKey.Public(), key)

		key, err = PublicKey(doc, "#"+longformdid.DefaultSigningKeyID)
		require.NoError(t, err)
		require.Equal(t, result.SigningPublicKey.X, key.X)

		_, err = PublicKey(doc, "#missing")
		require.True(t, errors.Is(err, ErrKeyNotFound))
	})
	t.Run("failure - short form", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), result.DID)
		require.True(t, IsNotFound(err))
	})
	t.Run("failure - tampered initial state", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), result.LongFormDID+"x")
		require.True(t, errors.Is(err, longformdid.ErrInvalidOperation))
	})
}

func TestChain_Resolve(t *testing.T) {
	doc := &did.Doc{ID: testDID}

	t.Run("success - first resolver that succeeds wins", func(t *testing.T) {
		chain := NewChain(&stubResolver{err: ErrNotFound}, &stubResolver{doc: doc},
			&stubResolver{err: errors.New("never reached")})

		resolved, err := chain.Resolve(context.Background(), testDID)
		require.NoError(t, err)
		require.Equal(t, doc, resolved)
	})
	t.Run("failure - every resolver reports not found", func(t *testing.T) {
		chain := NewChain(&stubResolver{err: fmt.Errorf("%w: first", ErrNotFound)},
			&stubResolver{err: fmt.Errorf("%w: second", ErrNotFound)})

		_, err := chain.Resolve(context.Background(), testDID)
		require.True(t, IsNotFound(err))
		require.Contains(t, err.Error(), "first; second")
	})
	t.Run("failure - resolver error is not reported as not found", func(t *testing.T) {
		chain := NewChain(&stubResolver{err: errors.New("resolver unavailable")},
			&stubResolver{err: fmt.Errorf("%w: second", ErrNotFound)})

		_, err := chain.Resolve(context.Background(), testDID)
		require.Error(t, err)
		require.False(t, IsNotFound(err))
		require.Contains(t, err.Error(), "resolver unavailable")
	})
	t.Run("failure - last resolver error wins", func(t *testing.T) {
		chain := NewChain(&stubResolver{err: errors.New("first")}, &stubResolver{err: errors.New("second")})

		_, err := chain.Resolve(context.Background(), testDID)
		require.False(t, IsNotFound(err))
		require.Contains(t, err.Error(), "second")
		require.NotContains(t, err.Error(), "first")
	})
	t.Run("failure - empty chain", func(t *testing.T) {
		_, err := NewChain().Resolve(context.Background(), testDID)
		require.True(t, IsNotFound(err))
	})
	t.Run("failure - cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		chain := NewChain(&stubResolver{err: errors.New("first")}, &stubResolver{doc: doc})

		_, err := chain.Resolve(ctx, testDID)
		require.True(t, errors.Is(err, context.Canceled))
	})
}
