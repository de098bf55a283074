/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwstest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
)

// NewCrypto returns a crypto provider backed by an in-memory key manager.
func NewCrypto(t testing.TB) *cryptoprovider.LocalProvider {
	t.Helper()

	crypto, err := cryptoprovider.New()
	require.NoError(t, err)

	return crypto
}
