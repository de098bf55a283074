/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtoken/pkg/cryptoprovider"
)

const (
	logModuleName = "keystore"

	// StoreName is the name of the underlying store that holds private keys.
	StoreName = "didtoken_keys"

	keyReferenceTag = "keyReference"
)

var logger = log.New(logModuleName)

// ErrKeyNotFound is returned when no key is stored under a reference.
var ErrKeyNotFound = errors.New("key not found")

// KeyStore saves private keys under a reference.
type KeyStore interface {
	Save(reference string, key *cryptoprovider.JWK) error
	Delete(reference string) error
}

// Store is a KeyStore backed by an Aries storage provider.
type Store struct {
	coreStore storage.Store
}

// New opens the key store in the given provider.
func New(provider storage.Provider) (*Store, error) {
	coreStore, err := provider.OpenStore(StoreName)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}

	err = provider.SetStoreConfig(StoreName, storage.StoreConfiguration{TagNames: []string{keyReferenceTag}})
	if err != nil {
		return nil, fmt.Errorf("failed to set key store configuration: %w", err)
	}

	return &Store{coreStore: coreStore}, nil
}

// Save stores key under reference, replacing any key already there.
func (s *Store) Save(reference string, key *cryptoprovider.JWK) error {
	if reference == "" {
		return errors.New("key reference can't be blank")
	}

	keyBytes, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key %s: %w", reference, err)
	}

	err = s.coreStore.Put(reference, keyBytes, storage.Tag{Name: keyReferenceTag, Value: reference})
	if err != nil {
		return fmt.Errorf("failed to store key %s: %w", reference, err)
	}

	logger.Debugf("Stored key %s", reference)

	return nil
}

// Get returns the key stored under reference.
func (s *Store) Get(reference string) (*cryptoprovider.JWK, error) {
	keyBytes, err := s.coreStore.Get(reference)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, reference)
		}

		return nil, fmt.Errorf("failed to get key %s: %w", reference, err)
	}

	var key cryptoprovider.JWK

	if err := json.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key %s: %w", reference, err)
	}

	return &key, nil
}

// Delete removes the key stored under reference.
func (s *Store) Delete(reference string) error {
	if err := s.coreStore.Delete(reference); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", reference, err)
	}

	logger.Debugf("Deleted key %s", reference)

	return nil
}

// MemKeyStore is an in-memory KeyStore.
type MemKeyStore struct {
	mutex sync.RWMutex
	keys  map[string]*cryptoprovider.JWK
}

// NewMemKeyStore returns an empty MemKeyStore.
func NewMemKeyStore() *MemKeyStore {
	return &MemKeyStore{keys: make(map[string]*cryptoprovider.JWK)}
}

// Save stores key under reference.
func (m *MemKeyStore) Save(reference string, key *cryptoprovider.JWK) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.keys[reference] = key

	return nil
}

// Delete removes the key stored under reference.
func (m *MemKeyStore) Delete(reference string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.keys, reference)

	return nil
}

// Get returns the key stored under reference.
func (m *MemKeyStore) Get(reference string) (*cryptoprovider.JWK, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	key, ok := m.keys[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, reference)
	}

	return key, nil
}
