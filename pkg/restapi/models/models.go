/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package models

import (
	"github.com/trustbloc/didtoken/pkg/longformdid"
)

// ValidationRequest is the body of a token validation request.
type ValidationRequest struct {
	Token string `json:"token"`
}

// CreateDIDRequest is the body of a DID creation request.
// A key reference is generated when none is given.
type CreateDIDRequest struct {
	KeyReference string `json:"keyReference,omitempty"`
}

// CreateDIDResponse is returned when a DID has been created. The signing key is stored under KeyReference.
type CreateDIDResponse struct {
	KeyReference string `json:"keyReference"`
	*longformdid.CreateResult
}

// LogSpec is the body of log level requests and responses.
type LogSpec struct {
	Spec string `json:"spec"`
}
