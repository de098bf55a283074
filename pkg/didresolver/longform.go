/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didresolver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/longformdid"
)

const (
	didContext        = "https://www.w3.org/ns/did/v1"
	jsonWebKey2020    = "JsonWebKey2020"
	generatedKeyIDFmt = "key-%d"
)

type rawVerificationMethod struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	Controller   string              `json:"controller"`
	PublicKeyJWK *cryptoprovider.JWK `json:"publicKeyJwk"`
}

type rawDoc struct {
	Context            []string                `json:"@context"`
	ID                 string                  `json:"id"`
	VerificationMethod []rawVerificationMethod `json:"verificationMethod,omitempty"`
	Authentication     []string                `json:"authentication,omitempty"`
	AssertionMethod    []string                `json:"assertionMethod,omitempty"`
}

// LongFormResolver resolves long-form DIDs locally from their initial state.
type LongFormResolver struct {
	hasher longformdid.Hasher
}

// NewLongFormResolver returns a LongFormResolver that checks operations with hasher.
func NewLongFormResolver(hasher longformdid.Hasher) *LongFormResolver {
	return &LongFormResolver{hasher: hasher}
}

// Resolve builds the DID document described by the initial state of didID.
func (r *LongFormResolver) Resolve(_ context.Context, didID string) (*did.Doc, error) {
	if !longformdid.IsLongForm(didID) {
		return nil, fmt.Errorf("%w: %s is not a long-form DID", ErrNotFound, didID)
	}

	_, operation, err := longformdid.ParseLongFormDID(r.hasher, didID)
	if err != nil {
		return nil, err
	}

	docBytes, err := json.Marshal(buildDocument(didID, operation))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document of %s: %w", didID, err)
	}

	doc, err := did.ParseDocument(docBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document of %s: %w", didID, err)
	}

	return doc, nil
}

func buildDocument(didID string, operation *longformdid.CreateOperation) *rawDoc {
	doc := &rawDoc{Context: []string{didContext}, ID: didID}

	for _, patch := range operation.Delta.Patches {
		if patch.Action != longformdid.PatchActionReplace {
			continue
		}

		doc.VerificationMethod = nil
		doc.Authentication = nil
		doc.AssertionMethod = nil

		for i, key := range patch.Document.PublicKeys {
			keyID := key.Kid
			if keyID == "" {
				keyID = fmt.Sprintf(generatedKeyIDFmt, i+1)
			}

			methodID := didID + "#" + keyID

			doc.VerificationMethod = append(doc.VerificationMethod, rawVerificationMethod{
				ID:           methodID,
				Type:         jsonWebKey2020,
				Controller:   didID,
				PublicKeyJWK: key.Public(),
			})
			doc.Authentication = append(doc.Authentication, methodID)
			doc.AssertionMethod = append(doc.AssertionMethod, methodID)
		}
	}

	return doc
}
