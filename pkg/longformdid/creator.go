/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package longformdid

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
	"github.com/trustbloc/didtoken/pkg/didutils"
	"github.com/trustbloc/didtoken/pkg/keystore"
)

const (
	logModuleName = "longformdid"

	// DefaultMethod is the DID method used unless WithMethod is given.
	DefaultMethod = "ion"
	// DefaultRecoveryKeyReference is the key store reference of the recovery private key.
	DefaultRecoveryKeyReference = "recovery"
	// DefaultSigningKeyID is the key ID of the signing key in the DID document.
	DefaultSigningKeyID = "signing"

	secretBits = 256
)

var logger = log.New(logModuleName)

// ErrCommitmentMismatch is returned when a reveal value does not hash to the commitment.
var ErrCommitmentMismatch = errors.New("reveal value does not match commitment")

// Creator creates long-form DIDs.
type Creator struct {
	crypto               cryptoprovider.Provider
	keyStore             keystore.KeyStore
	curve                string
	method               string
	recoveryKeyReference string
	signingKeyID         string
}

// Option configures the Creator.
type Option func(opts *Creator)

// WithCurve sets the curve of generated key pairs.
func WithCurve(curve string) Option {
	return func(opts *Creator) {
		opts.curve = curve
	}
}

// WithMethod sets the DID method.
func WithMethod(method string) Option {
	return func(opts *Creator) {
		opts.method = method
	}
}

// WithRecoveryKeyReference sets the key store reference of the recovery private key.
func WithRecoveryKeyReference(reference string) Option {
	return func(opts *Creator) {
		opts.recoveryKeyReference = reference
	}
}

// WithSigningKeyID sets the key ID given to the signing key in the DID document.
func WithSigningKeyID(keyID string) Option {
	return func(opts *Creator) {
		opts.signingKeyID = keyID
	}
}

// New returns a new Creator.
func New(crypto cryptoprovider.Provider, keyStore keystore.KeyStore, opts ...Option) *Creator {
	c := &Creator{
		crypto:               crypto,
		keyStore:             keyStore,
		curve:                cryptoprovider.CurveSecp256k1,
		method:               DefaultMethod,
		recoveryKeyReference: DefaultRecoveryKeyReference,
		signingKeyID:         DefaultSigningKeyID,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Method returns the DID method of created DIDs.
func (c *Creator) Method() string {
	return c.method
}

// Create generates a signing and a recovery key pair, saves the private keys and
// returns the create operation for a new DID. The signing key is saved under keyReference.
func (c *Creator) Create(keyReference string) (*CreateResult, error) {
	signingPrivate, err := c.crypto.GenerateKeyPair(c.curve)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	recoveryPrivate, err := c.crypto.GenerateKeyPair(c.curve)
	if err != nil {
		return nil, fmt.Errorf("failed to generate recovery key: %w", err)
	}

	signingPublic := signingPrivate.Public()
	signingPublic.Kid = c.signingKeyID
	recoveryPublic := recoveryPrivate.Public()

	if err := c.keyStore.Save(keyReference, signingPrivate); err != nil {
		return nil, fmt.Errorf("failed to save signing key: %w", err)
	}

	if err := c.keyStore.Save(c.recoveryKeyReference, recoveryPrivate); err != nil {
		c.deleteKey(keyReference)

		return nil, fmt.Errorf("failed to save recovery key: %w", err)
	}

	result, err := c.GenerateCreateOperation(recoveryPublic, signingPublic)
	if err != nil {
		c.deleteKey(keyReference)

		return nil, err
	}

	logger.Debugf("Created DID %s with signing key reference %s", result.DID, keyReference)

	return result, nil
}

// deleteKey drops the signing key of a DID that could not be created.
func (c *Creator) deleteKey(keyReference string) {
	if err := c.keyStore.Delete(keyReference); err != nil {
		logger.Warnf("Failed to delete signing key %s: %s", keyReference, err)
	}
}

// GenerateCreateOperation builds the create operation for the given public keys, with fresh commitments
// for the next recovery and the next update.
func (c *Creator) GenerateCreateOperation(recoveryPublicKey, signingPublicKey *cryptoprovider.JWK) (*CreateResult, error) {
	nextRecovery, err := c.GenerateCommitRevealPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate recovery commitment: %w", err)
	}

	nextUpdate, err := c.GenerateCommitRevealPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate update commitment: %w", err)
	}

	request, err := c.GenerateCreateOperationRequest(recoveryPublicKey, signingPublicKey,
		nextRecovery.Commitment, nextUpdate.Commitment)
	if err != nil {
		return nil, err
	}

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create operation request: %w", err)
	}

	operation, err := ParseCreateOperation(c.crypto, requestBytes)
	if err != nil {
		return nil, err
	}

	return &CreateResult{
		CreateOperation:         operation,
		OperationRequest:        request,
		RecoveryPublicKey:       recoveryPublicKey,
		SigningPublicKey:        signingPublicKey,
		NextRecoveryRevealValue: nextRecovery.RevealValue,
		NextUpdateRevealValue:   nextUpdate.RevealValue,
		DID:                     ShortFormDID(c.method, operation),
		LongFormDID:             LongFormDID(c.method, operation),
	}, nil
}

// GenerateCommitRevealPair generates a 256 bit secret and commits to it with its multihash.
func (c *Creator) GenerateCommitRevealPair() (*CommitRevealPair, error) {
	secret, err := c.crypto.GenerateSecret(secretBits)
	if err != nil {
		return nil, err
	}

	commitment, err := c.crypto.Hash(secret)
	if err != nil {
		return nil, err
	}

	return &CommitRevealPair{
		RevealValue: didutils.EncodeToString(secret),
		Commitment:  didutils.EncodeToString(commitment),
	}, nil
}

// GenerateCreateOperationRequest assembles a create operation that puts the signing key in the DID document.
func (c *Creator) GenerateCreateOperationRequest(recoveryPublicKey, signingPublicKey *cryptoprovider.JWK,
	recoveryCommitment, updateCommitment string) (*CreateOperationRequest, error) {
	delta := &Delta{
		UpdateCommitment: updateCommitment,
		Patches: []Patch{{
			Action:   PatchActionReplace,
			Document: Document{PublicKeys: []*cryptoprovider.JWK{signingPublicKey}},
		}},
	}

	deltaBytes, err := json.Marshal(delta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delta: %w", err)
	}

	deltaHash, err := c.crypto.Hash(deltaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to hash delta: %w", err)
	}

	suffixData := &SuffixData{
		DeltaHash:          didutils.EncodeToString(deltaHash),
		RecoveryKey:        recoveryPublicKey,
		RecoveryCommitment: recoveryCommitment,
	}

	suffixDataBytes, err := json.Marshal(suffixData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal suffix data: %w", err)
	}

	return &CreateOperationRequest{
		Type:       OperationTypeCreate,
		SuffixData: didutils.EncodeToString(suffixDataBytes),
		Delta:      didutils.EncodeToString(deltaBytes),
	}, nil
}

// VerifyCommitment checks that revealValue hashes to commitment.
func (c *Creator) VerifyCommitment(revealValue, commitment string) error {
	return VerifyCommitment(c.crypto, revealValue, commitment)
}

// VerifyCommitment checks that revealValue hashes to commitment.
func VerifyCommitment(hasher Hasher, revealValue, commitment string) error {
	secret, err := didutils.DecodeString(revealValue)
	if err != nil {
		return fmt.Errorf("failed to decode reveal value: %w", err)
	}

	hash, err := hasher.Hash(secret)
	if err != nil {
		return err
	}

	if didutils.EncodeToString(hash) != commitment {
		return ErrCommitmentMismatch
	}

	return nil
}
