/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"github.com/trustbloc/didtoken/pkg/restapi/models"
	"github.com/trustbloc/didtoken/pkg/validation"
)

// genericError model
//
// swagger:response genericError
type genericError struct { // nolint: unused,deadcode
	// in: body
	ErrMsg string
}

// changeLogSpecRes model
//
// swagger:response changeLogSpecRes
type changeLogSpecRes struct { // nolint: unused,deadcode
	// in: body
	Body string
}

// validateTokenReq model
//
// swagger:parameters validateTokenReq
type validateTokenReq struct { // nolint: unused,deadcode
	// in: body
	Request models.ValidationRequest
}

// validateTokenRes model
//
// The HTTP status is the status of the aggregated result.
//
// swagger:response validateTokenRes
type validateTokenRes struct { // nolint: unused,deadcode
	// in: body
	Result validation.Response
}

// createDIDReq model
//
// swagger:parameters createDIDReq
type createDIDReq struct { // nolint: unused,deadcode
	// in: body
	Request models.CreateDIDRequest
}

// createDIDRes model
//
// swagger:response createDIDRes
type createDIDRes struct { // nolint: unused,deadcode
	Location string
	// in: body
	Response models.CreateDIDResponse
}

// resolveDIDReq model
//
// swagger:parameters resolveDIDReq
type resolveDIDReq struct { // nolint: unused,deadcode
	// in: path
	// required: true
	DID string `json:"did"`
}

// resolveDIDRes model
//
// swagger:response resolveDIDRes
type resolveDIDRes struct { // nolint: unused,deadcode
	// in: body
	Document string
}

// changeLogSpecReq model
//
// swagger:parameters changeLogSpecReq
type changeLogSpecReq struct { // nolint: unused,deadcode
	// in: body
	Body struct {
		// The new log specification
		//
		// Required: true
		// Example: restapi=debug:validator=critical:error
		Spec string `json:"spec"`
	}
}

// getLogSpecRes model
//
// swagger:response getLogSpecRes
type getLogSpecRes struct { // nolint: unused,deadcode
	// in: body
	Body models.LogSpec
}
