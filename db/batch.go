// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"sync"

	"github.com/pkg/errors"
)

const (
	_put int32 = iota
	_delete
)

type (
	// KVStoreBatch collects writes so they can be committed atomically.
	// A batch must not be shared between operations.
	KVStoreBatch interface {
		// Lock locks the batch
		Lock()
		// Unlock unlocks the batch
		Unlock()
		// ClearAndUnlock clears the batch and unlocks it
		ClearAndUnlock()
		// Put stages a write of a record
		Put(namespace string, key, value []byte)
		// Delete stages a deletion of a record
		Delete(namespace string, key []byte)
		// Size returns the number of staged writes
		Size() int
		// Entry returns the staged write at the given index
		Entry(int) (*writeInfo, error)
		// Clear drops all staged writes
		Clear()
	}

	writeInfo struct {
		writeType int32
		namespace string
		key       []byte
		value     []byte
	}

	baseKVStoreBatch struct {
		mutex      sync.Mutex
		writeQueue []writeInfo
	}
)

// NewBatch returns a batch
func NewBatch() KVStoreBatch {
	return &baseKVStoreBatch{}
}

func (b *baseKVStoreBatch) Lock() { b.mutex.Lock() }

func (b *baseKVStoreBatch) Unlock() { b.mutex.Unlock() }

func (b *baseKVStoreBatch) ClearAndUnlock() {
	defer b.mutex.Unlock()
	b.writeQueue = nil
}

func (b *baseKVStoreBatch) Put(namespace string, key, value []byte) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.batch(_put, namespace, key, value)
}

func (b *baseKVStoreBatch) Delete(namespace string, key []byte) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.batch(_delete, namespace, key, nil)
}

func (b *baseKVStoreBatch) Size() int { return len(b.writeQueue) }

func (b *baseKVStoreBatch) Entry(index int) (*writeInfo, error) {
	if index < 0 || index >= len(b.writeQueue) {
		return nil, errors.Errorf("index %d out of range", index)
	}
	return &b.writeQueue[index], nil
}

func (b *baseKVStoreBatch) Clear() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.writeQueue = nil
}

func (b *baseKVStoreBatch) batch(op int32, namespace string, key, value []byte) {
	b.writeQueue = append(b.writeQueue, writeInfo{
		writeType: op,
		namespace: namespace,
		key:       key,
		value:     value,
	})
}
