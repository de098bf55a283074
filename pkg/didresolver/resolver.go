/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package didresolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/aries-framework-go/pkg/doc/did"
	vdrapi "github.com/hyperledger/aries-framework-go/pkg/framework/aries/api/vdr"
	"github.com/trustbloc/edge-core/pkg/log"
)

const logModuleName = "didresolver"

var logger = log.New(logModuleName)

// ErrNotFound is returned when a DID can't be resolved by any resolver.
var ErrNotFound = vdrapi.ErrNotFound

// Resolver resolves a DID to its document.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*did.Doc, error)
}

// Chain tries its resolvers in order and returns the first document found.
type Chain struct {
	resolvers []Resolver
}

// NewChain returns a resolver that tries each of resolvers in turn.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve returns the document from the first resolver that can resolve did. ErrNotFound is returned
// only when every resolver reported the DID as not found. Otherwise the last other failure is returned.
func (c *Chain) Resolve(ctx context.Context, didID string) (*did.Doc, error) {
	var (
		errs    []string
		lastErr error
	)

	for _, resolver := range c.resolvers {
		doc, err := resolver.Resolve(ctx, didID)
		if err == nil {
			return doc, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		logger.Debugf("Resolver %T could not resolve %s: %s", resolver, didID, err)

		errs = append(errs, err.Error())

		if !IsNotFound(err) {
			lastErr = err
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", didID, lastErr)
	}

	return nil, fmt.Errorf("%w: %s [%s]", ErrNotFound, didID, strings.Join(errs, "; "))
}

// IsNotFound reports whether err means the DID does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
