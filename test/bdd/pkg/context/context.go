/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package context

import (
	"github.com/trustbloc/didtoken/pkg/client"
	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/keystore"
	"github.com/trustbloc/didtoken/pkg/longformdid"
	"github.com/trustbloc/didtoken/pkg/restapi/models"
	"github.com/trustbloc/didtoken/pkg/validation"
)

// BDDContext is a global context shared between different test suites in bddtests.
type BDDContext struct {
	DIDTokenClient *client.Client
	Crypto         cryptoprovider.Provider
	// KeyStore holds the keys of DIDs created by the tests themselves.
	KeyStore *keystore.MemKeyStore
	Creator  *longformdid.Creator

	CreatedDID       *models.CreateDIDResponse
	CreatedLocation  string
	ValidationResult *validation.Response
	Args             map[string]string
}

// NewBDDContext creates a new BDD context.
func NewBDDContext(didTokenServerURL string) (*BDDContext, error) {
	crypto, err := cryptoprovider.New()
	if err != nil {
		return nil, err
	}

	keyStore := keystore.NewMemKeyStore()

	return &BDDContext{
		DIDTokenClient: client.New(didTokenServerURL),
		Crypto:         crypto,
		KeyStore:       keyStore,
		Creator:        longformdid.New(crypto, keyStore),
		Args:           make(map[string]string),
	}, nil
}
