// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package db provides the key-value storage underneath the engine's
// persistence. Records are grouped by namespace. A batch groups writes from
// one engine operation so they commit all-or-nothing.
package db

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/w3eproject/w3e-core/pkg/lifecycle"
)

var (
	// ErrBucketNotExist indicates certain bucket does not exist in db
	ErrBucketNotExist = errors.New("bucket not exist in DB")
	// ErrNotExist indicates certain item does not exist in db
	ErrNotExist = errors.New("not exist in DB")
	// ErrIO indicates the generic error of DB I/O operation
	ErrIO = errors.New("DB I/O operation error")
)

// KVStore is the interface of KV store.
type KVStore interface {
	lifecycle.StartStopper

	// Put inserts or updates a record identified by (namespace, key)
	Put(string, []byte, []byte) error
	// Get gets a record by (namespace, key)
	Get(string, []byte) ([]byte, error)
	// Delete deletes a record by (namespace, key)
	Delete(string, []byte) error
	// ForAll iterates all records in a namespace
	ForAll(string, func(key, value []byte) error) error
	// Commit commits a batch atomically
	Commit(KVStoreBatch) error
}

const _keyDelimiter = "."

// memKVStore is the in-memory implementation of KVStore for testing purpose
type memKVStore struct {
	data   *sync.Map
	bucket *sync.Map
}

// NewMemKVStore instantiates an in-memory KV store
func NewMemKVStore() KVStore {
	return &memKVStore{
		bucket: &sync.Map{},
		data:   &sync.Map{},
	}
}

func (m *memKVStore) Start(_ context.Context) error { return nil }

func (m *memKVStore) Stop(_ context.Context) error { return nil }

func (m *memKVStore) Put(namespace string, key, value []byte) error {
	_, _ = m.bucket.LoadOrStore(namespace, struct{}{})
	m.data.Store(namespace+_keyDelimiter+string(key), value)
	return nil
}

func (m *memKVStore) Get(namespace string, key []byte) ([]byte, error) {
	if _, ok := m.bucket.Load(namespace); !ok {
		return nil, errors.Wrapf(ErrBucketNotExist, "namespace = %s", namespace)
	}
	value, _ := m.data.Load(namespace + _keyDelimiter + string(key))
	if value != nil {
		return value.([]byte), nil
	}
	return nil, errors.Wrapf(ErrNotExist, "key = %x", key)
}

func (m *memKVStore) Delete(namespace string, key []byte) error {
	m.data.Delete(namespace + _keyDelimiter + string(key))
	return nil
}

func (m *memKVStore) ForAll(namespace string, cb func(key, value []byte) error) error {
	prefix := namespace + _keyDelimiter
	var err error
	m.data.Range(func(k, v interface{}) bool {
		ks := k.(string)
		if len(ks) < len(prefix) || ks[:len(prefix)] != prefix {
			return true
		}
		err = cb([]byte(ks[len(prefix):]), v.([]byte))
		return err == nil
	})
	return err
}

func (m *memKVStore) Commit(b KVStoreBatch) error {
	b.Lock()
	defer b.ClearAndUnlock()
	for i := 0; i < b.Size(); i++ {
		entry, err := b.Entry(i)
		if err != nil {
			return err
		}
		switch entry.writeType {
		case _put:
			if err := m.Put(entry.namespace, entry.key, entry.value); err != nil {
				return err
			}
		case _delete:
			if err := m.Delete(entry.namespace, entry.key); err != nil {
				return err
			}
		}
	}
	return nil
}
