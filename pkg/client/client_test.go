/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtoken/pkg/claimtoken"
	"github.com/trustbloc/didtoken/pkg/didresolver"
	"github.com/trustbloc/didtoken/pkg/internal/common/support"
	"github.com/trustbloc/didtoken/pkg/internal/jwstest"
	"github.com/trustbloc/didtoken/pkg/keystore"
	"github.com/trustbloc/didtoken/pkg/longformdid"
	"github.com/trustbloc/didtoken/pkg/restapi"
	"github.com/trustbloc/didtoken/pkg/restapi/operation"
	"github.com/trustbloc/didtoken/pkg/validator"
)

const testKeyReference = "testKeyReference"

var errFailingMarshal = errors.New("failingMarshal always fails")

func TestClient_New(t *testing.T) {
	client := New("http://localhost/", WithTLSConfig(&tls.Config{ServerName: "name"}))

	require.NotNil(t, client)
	require.NotNil(t, client.httpClient.Transport)
	require.Equal(t, "http://localhost", client.serverURL)
}

func TestClient_CreateDID(t *testing.T) {
	srvAddr := randomURL()

	srv := startDIDTokenServer(t, srvAddr)
	defer shutdown(t, srv)

	waitForServerToStart(t, srvAddr)

	client := New("http://" + srvAddr)

	t.Run("Success", func(t *testing.T) {
		location, response, err := client.CreateDID(context.Background(), testKeyReference)
		require.NoError(t, err)
		require.Equal(t, testKeyReference, response.KeyReference)
		require.Equal(t, srvAddr+"/identifiers/"+url.PathEscape(response.LongFormDID), location)
	})
	t.Run("Key reference generated by the server", func(t *testing.T) {
		_, response, err := client.CreateDID(context.Background(), "")
		require.NoError(t, err)
		require.NotEmpty(t, response.KeyReference)
	})
	t.Run("Fail to marshal request", func(t *testing.T) {
		failing := New("http://" + srvAddr)
		failing.marshal = failingMarshal

		_, _, err := failing.CreateDID(context.Background(), testKeyReference)
		require.True(t, errors.Is(err, errFailingMarshal))
	})
}

func TestClient_Resolve(t *testing.T) {
	srvAddr := randomURL()

	srv := startDIDTokenServer(t, srvAddr)
	defer shutdown(t, srv)

	waitForServerToStart(t, srvAddr)

	client := New("http://" + srvAddr)

	t.Run("Success", func(t *testing.T) {
		_, response, err := client.CreateDID(context.Background(), "")
		require.NoError(t, err)

		doc, err := client.Resolve(context.Background(), response.LongFormDID)
		require.NoError(t, err)
		require.Equal(t, response.LongFormDID, doc.ID)
		require.NotEmpty(t, doc.VerificationMethod)
	})
	t.Run("DID not found", func(t *testing.T) {
		doc, err := client.Resolve(context.Background(), "did:example:123")
		require.Error(t, err)
		require.True(t, didresolver.IsNotFound(err))
		require.Nil(t, doc)
	})
	t.Run("Chained behind another resolver", func(t *testing.T) {
		_, response, err := client.CreateDID(context.Background(), "")
		require.NoError(t, err)

		chain := didresolver.NewChain(&notFoundResolver{}, client)

		doc, err := chain.Resolve(context.Background(), response.LongFormDID)
		require.NoError(t, err)
		require.Equal(t, response.LongFormDID, doc.ID)
	})
}

func TestClient_Validate(t *testing.T) {
	srvAddr := randomURL()

	srv := startDIDTokenServer(t, srvAddr)
	defer shutdown(t, srv)

	waitForServerToStart(t, srvAddr)

	client := New("http://" + srvAddr)

	t.Run("Success", func(t *testing.T) {
		token, err := jwstest.Unsigned(map[string]interface{}{"sub": "alice"})
		require.NoError(t, err)

		result, err := client.Validate(context.Background(), token)
		require.NoError(t, err)
		require.True(t, result.Result)
		require.Equal(t, http.StatusOK, result.Status)
		require.Len(t, result.Tokens, 1)
		require.Equal(t, claimtoken.SelfIssued, result.Tokens[0].Type)
	})
	t.Run("Failed validation is returned as a result", func(t *testing.T) {
		token, err := jwstest.Unsigned(map[string]interface{}{"exp": time.Now().Add(-time.Hour).Unix()})
		require.NoError(t, err)

		result, err := client.Validate(context.Background(), token)
		require.NoError(t, err)
		require.False(t, result.Result)
		require.Equal(t, http.StatusGone, result.Status)
	})
	t.Run("Unsupported token type", func(t *testing.T) {
		token, err := jwstest.Unsigned(map[string]interface{}{"vp": map[string]interface{}{}})
		require.NoError(t, err)

		result, err := client.Validate(context.Background(), token)
		require.Error(t, err)
		require.Contains(t, err.Error(), "status code 400")
		require.Nil(t, result)
	})
	t.Run("Server unreachable", func(t *testing.T) {
		result, err := New("http://" + randomURL()).Validate(context.Background(), "a.b.c")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failure while sending validation request")
		require.Nil(t, result)
	})
}

func TestClient_LogSpec(t *testing.T) {
	srvAddr := randomURL()

	srv := startDIDTokenServer(t, srvAddr)
	defer shutdown(t, srv)

	waitForServerToStart(t, srvAddr)

	client := New("http://"+srvAddr, WithHeaders(func(req *http.Request) (*http.Header, error) {
		req.Header.Set("X-Test", "true")

		return &req.Header, nil
	}))

	err := client.SetLogSpec(context.Background(), "didtoken-client=debug:info")
	require.NoError(t, err)

	spec, err := client.GetLogSpec(context.Background())
	require.NoError(t, err)
	require.Equal(t, "didtoken-client=DEBUG:INFO", spec)

	err = client.SetLogSpec(context.Background(), "loud")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status code 400")
}

func TestClient_HeadersFuncFails(t *testing.T) {
	client := New("http://"+randomURL(), WithHeaders(func(*http.Request) (*http.Header, error) {
		return nil, errors.New("no headers")
	}))

	_, err := client.GetLogSpec(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "add optional request headers error")
}

func TestClient_InvalidResponses(t *testing.T) {
	srvAddr := randomURL()

	srv := startMockServer(srvAddr, support.NewHTTPHandler("/identifiers/{did}", http.MethodGet, mockInvalidJSONHandler))
	defer shutdown(t, srv)

	waitForServerToStart(t, srvAddr)

	doc, err := New("http://"+srvAddr).Resolve(context.Background(), "did:example:123")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse document of DID did:example:123")
	require.Nil(t, doc)

	_, _, err = New("http://"+srvAddr).CreateDID(context.Background(), "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status code 404")
}

type notFoundResolver struct{}

func (r *notFoundResolver) Resolve(context.Context, string) (*did.Doc, error) {
	return nil, didresolver.ErrNotFound
}

// Returns a reference to the server so the caller can stop it.
func startDIDTokenServer(t *testing.T, srvAddr string) *http.Server {
	crypto := jwstest.NewCrypto(t)
	resolver := didresolver.NewLongFormResolver(crypto)

	controller, err := restapi.New(&operation.Config{
		Validator: validator.New(map[claimtoken.TokenType]validator.TokenValidator{
			claimtoken.SelfIssued: validator.NewSelfIssuedValidator(),
		}, resolver, crypto),
		Creator:  longformdid.New(crypto, keystore.NewMemKeyStore()),
		Resolver: resolver,
	})
	require.NoError(t, err)

	router := mux.NewRouter()
	router.UseEncodedPath()

	for _, handler := range controller.GetOperations() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	return serve(srvAddr, router)
}

// Returns a reference to the server so the caller can stop it.
func startMockServer(srvAddr string, httpHandler operation.Handler) *http.Server {
	router := mux.NewRouter()

	if httpHandler != nil {
		router.HandleFunc(httpHandler.Path(), httpHandler.Handle()).Methods(httpHandler.Method())
	}

	return serve(srvAddr, router)
}

func serve(srvAddr string, handler http.Handler) *http.Server {
	srv := http.Server{Addr: srvAddr, Handler: handler}
	go func(srv *http.Server) {
		err := srv.ListenAndServe()
		if err.Error() != "http: Server closed" {
			logger.Fatalf("server failure")
		}
	}(&srv)

	return &srv
}

func shutdown(t *testing.T, srv *http.Server) {
	require.NoError(t, srv.Shutdown(context.Background()))
}

// Just writes some invalid JSON to the response.
func mockInvalidJSONHandler(rw http.ResponseWriter, _ *http.Request) {
	_, err := rw.Write([]byte("this is invalid JSON and will cause parsing to fail"))
	if err != nil {
		logger.Fatalf("failed to write in mock handler")
	}
}

func failingMarshal(_ interface{}) ([]byte, error) {
	return nil, errFailingMarshal
}

func waitForServerToStart(t *testing.T, srvAddr string) {
	if err := listenFor(srvAddr); err != nil {
		t.Fatal(err)
	}
}

func listenFor(host string) error {
	timeout := time.After(10 * time.Second)

	for {
		select {
		case <-timeout:
			return fmt.Errorf("timeout: server is not available")
		default:
			conn, err := net.Dial("tcp", host)
			if err != nil {
				continue
			}

			return conn.Close()
		}
	}
}

func randomURL() string {
	return fmt.Sprintf("localhost:%d", mustGetRandomPort(3))
}

func mustGetRandomPort(n int) int {
	for ; n > 0; n-- {
		port, err := getRandomPort()
		if err != nil {
			continue
		}

		return port
	}
	panic("cannot acquire the random port")
}

func getRandomPort() (int, error) {
	const network = "tcp"

	addr, err := net.ResolveTCPAddr(network, "localhost:0")
	if err != nil {
		return 0, err
	}

	listener, err := net.ListenTCP(network, addr)
	if err != nil {
		return 0, err
	}

	err = listener.Close()
	if err != nil {
		return 0, err
	}

	return listener.Addr().(*net.TCPAddr).Port, nil
}

func TestStatusError(t *testing.T) {
	err := statusError(http.StatusTeapot, []byte("short and stout"))
	require.True(t, strings.HasSuffix(err.Error(), "418 along with the following message: short and stout"))
}
