// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package engine

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/w3eproject/w3e-core/db"
	"github.com/w3eproject/w3e-core/ledger"
	"github.com/w3eproject/w3e-core/staking"
)

const (
	_tokenNS   = "token"
	_stakingNS = "staking"
)

var _stakingKey = []byte("state")

// persistAll snapshots every ledger and the staking system into one batch
// and commits it, so the store never holds a torn write.
func (e *Engine) persistAll() error {
	b := db.NewBatch()
	for symbol, l := range e.ledgers {
		raw, err := json.Marshal(l.Snapshot())
		if err != nil {
			return errors.Wrapf(err, "failed to encode ledger %s", symbol)
		}
		b.Put(_tokenNS, []byte(symbol), raw)
	}
	raw, err := json.Marshal(e.staking.Snapshot())
	if err != nil {
		return errors.Wrap(err, "failed to encode staking state")
	}
	b.Put(_stakingNS, _stakingKey, raw)
	return e.kv.Commit(b)
}

// load rebuilds the in-memory state from the store. It returns false when
// the store holds no staking state, meaning a fresh bootstrap is needed.
func (e *Engine) load() (bool, error) {
	raw, err := e.kv.Get(_stakingNS, _stakingKey)
	if err != nil {
		if errors.Cause(err) == db.ErrNotExist || errors.Cause(err) == db.ErrBucketNotExist {
			return false, nil
		}
		return false, err
	}
	if err := e.kv.ForAll(_tokenNS, func(key, value []byte) error {
		var s ledger.State
		if err := json.Unmarshal(value, &s); err != nil {
			return errors.Wrapf(err, "failed to decode ledger %s", key)
		}
		l, err := ledger.FromState(&s)
		if err != nil {
			return errors.Wrapf(err, "failed to restore ledger %s", key)
		}
		e.ledgers[l.Symbol()] = l
		return nil
	}); err != nil {
		return false, err
	}
	var s staking.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, errors.Wrap(err, "failed to decode staking state")
	}
	sl, err := staking.FromState(&s, func(symbol string) (*ledger.Ledger, bool) {
		l, ok := e.ledgers[symbol]
		return l, ok
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to restore staking state")
	}
	e.staking = sl
	return true, nil
}
