/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cryptoprovider

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	ariesjwk "github.com/hyperledger/aries-framework-go/pkg/doc/jose/jwk"
	gojose "github.com/square/go-jose/v3"
)

const (
	// KeyTypeEC is the JWK key type of elliptic curve keys.
	KeyTypeEC = "EC"
	// KeyTypeOKP is the JWK key type of octet key pairs (Ed25519).
	KeyTypeOKP = "OKP"
	// KeyTypeRSA is the JWK key type of RSA keys.
	KeyTypeRSA = "RSA"

	// CurveSecp256k1 is the JWK name of the secp256k1 curve.
	CurveSecp256k1 = "secp256k1"
	// CurveP256 is the JWK name of the NIST P-256 curve.
	CurveP256 = "P-256"
	// CurveEd25519 is the JWK name of the Ed25519 curve.
	CurveEd25519 = "Ed25519"
)

// ErrInvalidKey is returned when a JWK can't be turned into a usable key.
var ErrInvalidKey = errors.New("invalid JWK")

// JWK is a JSON Web Key. Private keys carry D, public keys leave it blank.
// Field order is the serialization order used in DID create operations.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	D   string `json:"d,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// IsPrivate reports whether the key holds private material.
func (k *JWK) IsPrivate() bool {
	return k.D != ""
}

// Public returns a copy of the key without private material and without a key ID.
func (k *JWK) Public() *JWK {
	return &JWK{Kty: k.Kty, Crv: k.Crv, X: k.X, Y: k.Y, N: k.N, E: k.E}
}

// Thumbprint computes the RFC 7638 SHA-256 thumbprint, base64url encoded.
// go-jose can't do this for secp256k1 keys, so the required members are assembled here.
func (k *JWK) Thumbprint() (string, error) {
	var required string

	switch k.Kty {
	case KeyTypeEC:
		required = fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q,"y":%q}`, k.Crv, k.Kty, k.X, k.Y)
	case KeyTypeOKP:
		required = fmt.Sprintf(`{"crv":%q,"kty":%q,"x":%q}`, k.Crv, k.Kty, k.X)
	case KeyTypeRSA:
		required = fmt.Sprintf(`{"e":%q,"kty":%q,"n":%q}`, k.E, k.Kty, k.N)
	default:
		return "", fmt.Errorf("%w: unsupported key type %q", ErrInvalidKey, k.Kty)
	}

	digest := sha256.Sum256([]byte(required))

	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// PublicKey converts the JWK to a Go public key (*ecdsa.PublicKey, ed25519.PublicKey or *rsa.PublicKey).
func (k *JWK) PublicKey() (crypto.PublicKey, error) {
	ariesKey, err := k.public().toAries()
	if err != nil {
		return nil, err
	}

	return ariesKey.Key, nil
}

func (k *JWK) privateKey() (crypto.PrivateKey, error) {
	if !k.IsPrivate() {
		return nil, fmt.Errorf("%w: private key material missing", ErrInvalidKey)
	}

	ariesKey, err := k.toAries()
	if err != nil {
		return nil, err
	}

	return ariesKey.Key, nil
}

func (k *JWK) public() *JWK {
	pub := k.Public()
	pub.Kid = k.Kid

	return pub
}

// toAries parses the key with the Aries JWK codec, which also reads secp256k1 keys.
func (k *JWK) toAries() (*ariesjwk.JWK, error) {
	keyBytes, err := json.Marshal(k)
	if err != nil {
		return nil, err
	}

	var ariesKey ariesjwk.JWK

	if err := ariesKey.UnmarshalJSON(keyBytes); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}

	var point *ecdsa.PublicKey

	switch ecKey := ariesKey.Key.(type) {
	case *ecdsa.PublicKey:
		point = ecKey
	case *ecdsa.PrivateKey:
		point = &ecKey.PublicKey
	}

	if point != nil && !point.Curve.IsOnCurve(point.X, point.Y) {
		return nil, fmt.Errorf("%w: point is not on curve %s", ErrInvalidKey, k.Crv)
	}

	return &ariesKey, nil
}

// JWKFromKey builds a JWK from a Go public or private key.
func JWKFromKey(key interface{}) (*JWK, error) {
	ariesKey := ariesjwk.JWK{JSONWebKey: gojose.JSONWebKey{Key: key}}

	if isSecp256k1(key) {
		ariesKey.Kty = KeyTypeEC
		ariesKey.Crv = CurveSecp256k1
	}

	keyBytes, err := ariesKey.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}

	var jwk JWK

	if err := json.Unmarshal(keyBytes, &jwk); err != nil {
		return nil, err
	}

	return &jwk, nil
}

// JWKFromPublicKeyBytes builds a public JWK from raw key bytes as found in DID documents:
// 32 bytes are read as Ed25519, 33 or 65 bytes as a secp256k1 point.
func JWKFromPublicKeyBytes(value []byte) (*JWK, error) {
	switch len(value) {
	case ed25519.PublicKeySize:
		return JWKFromKey(ed25519.PublicKey(value))
	case btcec.PubKeyBytesLenCompressed, btcec.PubKeyBytesLenUncompressed:
		pub, err := btcec.ParsePubKey(value, btcec.S256())
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
		}

		return JWKFromKey(pub.ToECDSA())
	default:
		return nil, fmt.Errorf("%w: unsupported raw key length %d", ErrInvalidKey, len(value))
	}
}

func isSecp256k1(key interface{}) bool {
	switch ecKey := key.(type) {
	case *ecdsa.PublicKey:
		return ecKey.Curve == btcec.S256()
	case *ecdsa.PrivateKey:
		return ecKey.Curve == btcec.S256()
	default:
		return false
	}
}

func curveByName(name string) (elliptic.Curve, error) {
	switch name {
	case CurveSecp256k1:
		return btcec.S256(), nil
	case CurveP256:
		return elliptic.P256(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, name)
	}
}
