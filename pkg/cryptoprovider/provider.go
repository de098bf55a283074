/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cryptoprovider

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	cryptoapi "github.com/hyperledger/aries-framework-go/pkg/crypto"
	"github.com/hyperledger/aries-framework-go/pkg/crypto/tinkcrypto"
	"github.com/hyperledger/aries-framework-go/pkg/doc/jwt"
	"github.com/hyperledger/aries-framework-go/pkg/doc/signature/verifier"
	"github.com/hyperledger/aries-framework-go/pkg/kms"
	"github.com/hyperledger/aries-framework-go/pkg/kms/localkms"
	"github.com/hyperledger/aries-framework-go/pkg/secretlock"
	"github.com/hyperledger/aries-framework-go/pkg/secretlock/noop"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/multiformats/go-multihash"
)

const (
	// AlgES256K is the JWS algorithm for ECDSA over secp256k1 with SHA-256.
	AlgES256K = "ES256K"
	// AlgES256 is the JWS algorithm for ECDSA over P-256 with SHA-256.
	AlgES256 = "ES256"
	// AlgEdDSA is the JWS algorithm for Ed25519.
	AlgEdDSA = "EdDSA"
	// AlgRS256 is the JWS algorithm for RSASSA-PKCS1-v1_5 with SHA-256.
	AlgRS256 = "RS256"

	primaryKeyURI    = "local-lock://didtoken/primary/key/"
	bitsPerByte      = 8
	secp256k1KeySize = 32
)

var (
	// ErrUnsupportedCurve is returned for key generation on an unknown curve.
	ErrUnsupportedCurve = errors.New("unsupported curve")
	// ErrUnsupportedAlgorithm is returned when signing or verifying with an unknown JWS algorithm.
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
)

// signingAlgorithm ties a JWS algorithm to the key it needs and the matching KMS key type.
// Algorithms without a KMS key type are signed in process.
type signingAlgorithm struct {
	keyType  string
	curve    string
	kmsType  kms.KeyType
	verifier verifier.SignatureVerifier
}

// ECDSA key types are IEEE P1363 so signatures come out as R||S, as JWS requires.
// The local KMS can't import secp256k1 keys, ES256K is signed with btcec.
var signingAlgorithms = map[string]signingAlgorithm{ //nolint:gochecknoglobals
	AlgES256K: {
		keyType: KeyTypeEC, curve: CurveSecp256k1,
		verifier: verifier.NewECDSASecp256k1SignatureVerifier(),
	},
	AlgES256: {
		keyType: KeyTypeEC, curve: CurveP256, kmsType: kms.ECDSAP256TypeIEEEP1363,
		verifier: verifier.NewECDSAES256SignatureVerifier(),
	},
	AlgEdDSA: {
		keyType: KeyTypeOKP, curve: CurveEd25519, kmsType: kms.ED25519Type,
		verifier: verifier.NewEd25519SignatureVerifier(),
	},
}

// Provider is the set of cryptographic primitives used for token validation and DID creation.
type Provider interface {
	GenerateKeyPair(curve string) (*JWK, error)
	GenerateSecret(bits int) ([]byte, error)
	Sign(alg string, privateKey *JWK, data []byte) ([]byte, error)
	Verify(alg string, publicKey *JWK, data, sig []byte) error
	Hash(data []byte) ([]byte, error)
}

type kmsProvider struct {
	storageProvider   storage.Provider
	secretLockService secretlock.Service
}

func (k kmsProvider) StorageProvider() storage.Provider {
	return k.storageProvider
}

func (k kmsProvider) SecretLock() secretlock.Service {
	return k.secretLockService
}

// LocalProvider implements Provider on an Aries local KMS and Tink crypto. Private keys handed to Sign
// are imported into the KMS under their thumbprint the first time they are used.
// secp256k1 keys never enter the KMS.
type LocalProvider struct {
	random          io.Reader
	storageProvider storage.Provider
	keyManager      kms.KeyManager
	crypto          cryptoapi.Crypto
}

// Option configures the LocalProvider.
type Option func(opts *LocalProvider)

// WithRandomReader sets the entropy source used for keys and secrets.
func WithRandomReader(random io.Reader) Option {
	return func(opts *LocalProvider) {
		opts.random = random
	}
}

// WithStorageProvider sets the storage backing the key manager. Keys are kept in memory by default.
func WithStorageProvider(provider storage.Provider) Option {
	return func(opts *LocalProvider) {
		opts.storageProvider = provider
	}
}

// WithKeyManager replaces the local key manager.
func WithKeyManager(keyManager kms.KeyManager) Option {
	return func(opts *LocalProvider) {
		opts.keyManager = keyManager
	}
}

// New returns a new LocalProvider.
func New(opts ...Option) (*LocalProvider, error) {
	p := &LocalProvider{random: rand.Reader}

	for _, opt := range opts {
		opt(p)
	}

	if p.keyManager == nil {
		if p.storageProvider == nil {
			p.storageProvider = mem.NewProvider()
		}

		keyManager, err := localkms.New(primaryKeyURI,
			kmsProvider{storageProvider: p.storageProvider, secretLockService: &noop.NoLock{}})
		if err != nil {
			return nil, fmt.Errorf("failed to create key manager: %w", err)
		}

		p.keyManager = keyManager
	}

	crypto, err := tinkcrypto.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create crypto: %w", err)
	}

	p.crypto = crypto

	return p, nil
}

// GenerateKeyPair generates a private JWK on the named curve (secp256k1, P-256 or Ed25519).
func (p *LocalProvider) GenerateKeyPair(curve string) (*JWK, error) {
	if curve == CurveEd25519 {
		_, privateKey, err := ed25519.GenerateKey(p.random)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
		}

		return JWKFromKey(privateKey)
	}

	ellipticCurve, err := curveByName(curve)
	if err != nil {
		return nil, err
	}

	privateKey, err := ecdsa.GenerateKey(ellipticCurve, p.random)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", curve, err)
	}

	return JWKFromKey(privateKey)
}

// GenerateSecret returns bits/8 random bytes.
func (p *LocalProvider) GenerateSecret(bits int) ([]byte, error) {
	if bits <= 0 || bits%bitsPerByte != 0 {
		return nil, fmt.Errorf("secret size must be a positive multiple of 8 bits, got %d", bits)
	}

	secret := make([]byte, bits/bitsPerByte)

	if _, err := io.ReadFull(p.random, secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	return secret, nil
}

// Sign produces a JWS signature over data. ECDSA signatures are R||S.
func (p *LocalProvider) Sign(alg string, privateKey *JWK, data []byte) ([]byte, error) {
	algorithm, err := algorithmFor(alg, privateKey)
	if err != nil {
		return nil, err
	}

	if algorithm.kmsType == "" {
		return signSecp256k1(privateKey, data)
	}

	keyHandle, err := p.keyHandle(privateKey, algorithm.kmsType)
	if err != nil {
		return nil, err
	}

	sig, err := p.crypto.Sign(data, keyHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to sign with %s: %w", alg, err)
	}

	return sig, nil
}

// keyHandle returns the KMS handle of privateKey, importing the key when the KMS does not hold it yet.
func (p *LocalProvider) keyHandle(privateKey *JWK, keyType kms.KeyType) (interface{}, error) {
	keyID, err := privateKey.Thumbprint()
	if err != nil {
		return nil, err
	}

	if keyHandle, err := p.keyManager.Get(keyID); err == nil {
		return keyHandle, nil
	}

	key, err := privateKey.privateKey()
	if err != nil {
		return nil, err
	}

	_, _, importErr := p.keyManager.ImportPrivateKey(key, keyType, kms.WithKeyID(keyID))

	keyHandle, err := p.keyManager.Get(keyID)
	if err != nil {
		if importErr != nil {
			return nil, fmt.Errorf("failed to import key %s: %w", keyID, importErr)
		}

		return nil, fmt.Errorf("failed to get key %s: %w", keyID, err)
	}

	return keyHandle, nil
}

// Verify checks sig over data with the public key.
func (p *LocalProvider) Verify(alg string, publicKey *JWK, data, sig []byte) error {
	if alg == AlgRS256 {
		return verifyRS256(publicKey, data, sig)
	}

	algorithm, err := algorithmFor(alg, publicKey)
	if err != nil {
		return err
	}

	ariesKey, err := publicKey.public().toAries()
	if err != nil {
		return err
	}

	var keyBytes []byte

	switch key := ariesKey.Key.(type) {
	case *ecdsa.PublicKey:
		keyBytes = elliptic.Marshal(key.Curve, key.X, key.Y)
	case ed25519.PublicKey:
		keyBytes = key
	default:
		return fmt.Errorf("%w: %s requires a %s key", ErrUnsupportedAlgorithm, alg, algorithm.curve)
	}

	err = algorithm.verifier.Verify(&verifier.PublicKey{Type: publicKey.Kty, Value: keyBytes, JWK: ariesKey},
		data, sig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	return nil
}

// Hash returns the multihash (SHA2-256) of data.
func (p *LocalProvider) Hash(data []byte) ([]byte, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to compute multihash: %w", err)
	}

	return mh, nil
}

func signSecp256k1(privateKey *JWK, data []byte) ([]byte, error) {
	key, err := privateKey.privateKey()
	if err != nil {
		return nil, err
	}

	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires a %s key", ErrUnsupportedAlgorithm, AlgES256K, CurveSecp256k1)
	}

	digest := sha256.Sum256(data)

	sig, err := (*btcec.PrivateKey)(ecKey).Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign with %s: %w", AlgES256K, err)
	}

	signature := make([]byte, 2*secp256k1KeySize)
	sig.R.FillBytes(signature[:secp256k1KeySize])
	sig.S.FillBytes(signature[secp256k1KeySize:])

	return signature, nil
}

func verifyRS256(publicKey *JWK, data, sig []byte) error {
	ariesKey, err := publicKey.public().toAries()
	if err != nil {
		return err
	}

	rsaKey, ok := ariesKey.Key.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: %s requires an RSA key", ErrUnsupportedAlgorithm, AlgRS256)
	}

	err = jwt.VerifyRS256(&verifier.PublicKey{Type: KeyTypeRSA, Value: x509.MarshalPKCS1PublicKey(rsaKey),
		JWK: ariesKey}, data, sig)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	return nil
}

func algorithmFor(alg string, key *JWK) (signingAlgorithm, error) {
	algorithm, ok := signingAlgorithms[alg]
	if !ok {
		return signingAlgorithm{}, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	if key.Kty != algorithm.keyType || key.Crv != algorithm.curve {
		return signingAlgorithm{}, fmt.Errorf("%w: %s requires a %s key", ErrUnsupportedAlgorithm, alg,
			algorithm.curve)
	}

	return algorithm, nil
}
