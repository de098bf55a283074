/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package longformdid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/trustbloc/didtoken/pkg/didutils"
)

const initialStateParam = "-%s-initial-state="

var (
	// ErrInvalidOperation is returned for create operations that can't be parsed or don't verify.
	ErrInvalidOperation = errors.New("invalid create operation")
	// ErrNotLongForm is returned when a DID carries no initial state.
	ErrNotLongForm = errors.New("not a long-form DID")
)

// Hasher computes multihashes.
type Hasher interface {
	Hash(data []byte) ([]byte, error)
}

// ParseCreateOperation parses a serialized create operation request, checks that the delta hash in the
// suffix data matches the delta and computes the DID unique suffix.
func ParseCreateOperation(hasher Hasher, operationBytes []byte) (*CreateOperation, error) {
	var request CreateOperationRequest

	if err := json.Unmarshal(operationBytes, &request); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOperation, err)
	}

	return parseCreateOperationRequest(hasher, &request)
}

func parseCreateOperationRequest(hasher Hasher, request *CreateOperationRequest) (*CreateOperation, error) {
	if request.Type != OperationTypeCreate {
		return nil, fmt.Errorf("%w: operation type %q", ErrInvalidOperation, request.Type)
	}

	suffixDataBytes, err := didutils.DecodeString(request.SuffixData)
	if err != nil {
		return nil, fmt.Errorf("%w: decode suffix data: %s", ErrInvalidOperation, err)
	}

	deltaBytes, err := didutils.DecodeString(request.Delta)
	if err != nil {
		return nil, fmt.Errorf("%w: decode delta: %s", ErrInvalidOperation, err)
	}

	var suffixData SuffixData

	if err := json.Unmarshal(suffixDataBytes, &suffixData); err != nil {
		return nil, fmt.Errorf("%w: unmarshal suffix data: %s", ErrInvalidOperation, err)
	}

	var delta Delta

	if err := json.Unmarshal(deltaBytes, &delta); err != nil {
		return nil, fmt.Errorf("%w: unmarshal delta: %s", ErrInvalidOperation, err)
	}

	if suffixData.RecoveryKey == nil || suffixData.RecoveryCommitment == "" || delta.UpdateCommitment == "" {
		return nil, fmt.Errorf("%w: missing recovery key or commitments", ErrInvalidOperation)
	}

	deltaHash, err := hasher.Hash(deltaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to hash delta: %w", err)
	}

	if didutils.EncodeToString(deltaHash) != suffixData.DeltaHash {
		return nil, fmt.Errorf("%w: delta hash does not match delta", ErrInvalidOperation)
	}

	uniqueSuffix, err := hasher.Hash(suffixDataBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to hash suffix data: %w", err)
	}

	return &CreateOperation{
		Request:      request,
		UniqueSuffix: didutils.EncodeToString(uniqueSuffix),
		SuffixData:   &suffixData,
		Delta:        &delta,
	}, nil
}

// ShortFormDID returns did:<method>:<unique suffix>.
func ShortFormDID(method string, operation *CreateOperation) string {
	return fmt.Sprintf("did:%s:%s", method, operation.UniqueSuffix)
}

// LongFormDID returns the DID followed by its initial state, so it can be resolved before it is anchored.
func LongFormDID(method string, operation *CreateOperation) string {
	return fmt.Sprintf("%s?"+initialStateParam+"%s.%s", ShortFormDID(method, operation), method,
		operation.Request.SuffixData, operation.Request.Delta)
}

// IsLongForm reports whether did carries an initial state.
func IsLongForm(did string) bool {
	method, err := didutils.Method(did)
	if err != nil {
		return false
	}

	return strings.Contains(did, "?"+fmt.Sprintf(initialStateParam, method))
}

// ParseLongFormDID extracts the create operation from a long-form DID and checks that it
// produces the DID's unique suffix. It returns the short-form DID and the operation.
func ParseLongFormDID(hasher Hasher, did string) (string, *CreateOperation, error) {
	method, err := didutils.Method(did)
	if err != nil {
		return "", nil, err
	}

	parts := strings.SplitN(did, "?"+fmt.Sprintf(initialStateParam, method), 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("%w: %s", ErrNotLongForm, did)
	}

	shortForm := parts[0]

	initialState := strings.Split(parts[1], ".")
	if len(initialState) != 2 {
		return "", nil, fmt.Errorf("%w: initial state must be <suffix data>.<delta>", ErrInvalidOperation)
	}

	operation, err := parseCreateOperationRequest(hasher, &CreateOperationRequest{
		Type:       OperationTypeCreate,
		SuffixData: initialState[0],
		Delta:      initialState[1],
	})
	if err != nil {
		return "", nil, err
	}

	if ShortFormDID(method, operation) != shortForm {
		return "", nil, fmt.Errorf("%w: unique suffix does not match initial state", ErrInvalidOperation)
	}

	return shortForm, operation, nil
}
