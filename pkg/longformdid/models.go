/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package longformdid

import "github.com/trustbloc/didtoken/pkg/cryptoprovider"

const (
	// OperationTypeCreate is the type of create operations.
	OperationTypeCreate = "create"
	// PatchActionReplace replaces the whole document.
	PatchActionReplace = "replace"
)

// CommitRevealPair is a fresh secret (the reveal value) and its multihash (the commitment), both base64url encoded.
type CommitRevealPair struct {
	RevealValue string `json:"revealValue"`
	Commitment  string `json:"commitment"`
}

// CreateOperationRequest is the create operation as sent over the wire.
// SuffixData and Delta hold base64url encoded JSON.
type CreateOperationRequest struct {
	Type       string `json:"type"`
	SuffixData string `json:"suffix_data"`
	Delta      string `json:"delta"`
}

// Delta is the decoded delta of a create operation.
type Delta struct {
	UpdateCommitment string  `json:"update_commitment"`
	Patches          []Patch `json:"patches"`
}

// Patch is a document patch.
type Patch struct {
	Action   string   `json:"action"`
	Document Document `json:"document"`
}

// Document is the content of a replace patch.
type Document struct {
	PublicKeys []*cryptoprovider.JWK `json:"publicKeys"`
}

// SuffixData is the decoded suffix data of a create operation.
type SuffixData struct {
	DeltaHash          string              `json:"delta_hash"`
	RecoveryKey        *cryptoprovider.JWK `json:"recovery_key"`
	RecoveryCommitment string              `json:"recovery_commitment"`
}

// CreateOperation is a parsed and verified create operation.
type CreateOperation struct {
	Request      *CreateOperationRequest `json:"request"`
	UniqueSuffix string                  `json:"didUniqueSuffix"`
	SuffixData   *SuffixData             `json:"suffixData"`
	Delta        *Delta                  `json:"delta"`
}

// CreateResult is everything produced by a DID creation. The reveal values must be kept by the
// caller, they authorize the next recovery and update of the DID.
type CreateResult struct {
	CreateOperation         *CreateOperation        `json:"createOperation"`
	OperationRequest        *CreateOperationRequest `json:"operationRequest"`
	RecoveryPublicKey       *cryptoprovider.JWK     `json:"recoveryPublicKey"`
	SigningPublicKey        *cryptoprovider.JWK     `json:"signingPublicKey"`
	NextRecoveryRevealValue string                  `json:"nextRecoveryRevealValue"`
	NextUpdateRevealValue   string                  `json:"nextUpdateRevealValue"`
	DID                     string                  `json:"did"`
	LongFormDID             string                  `json:"longFormDid"`
}
