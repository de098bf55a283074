/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package restapi

import (
	"errors"

	"github.com/trustbloc/didtoken/pkg/restapi/operation"
)

var errMissingConfig = errors.New("the validator, creator and resolver must all be configured")

// Controller contains handlers for controller.
type Controller struct {
	handlers []operation.Handler
}

// New returns new controller instance.
func New(config *operation.Config) (*Controller, error) {
	if config == nil || config.Validator == nil || config.Creator == nil || config.Resolver == nil {
		return nil, errMissingConfig
	}

	var allHandlers []operation.Handler

	didTokenService := operation.New(config)

	handlers := didTokenService.GetRESTHandlers()

	allHandlers = append(allHandlers, handlers...)

	return &Controller{handlers: allHandlers}, nil
}

// GetOperations returns all controller endpoints.
func (c *Controller) GetOperations() []operation.Handler {
	return c.handlers
}
