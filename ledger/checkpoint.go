// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package ledger

import (
	"math/big"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Checkpoint is one point of an address' voting power history. The history
// is an append-only log ordered by timestamp; past lookups binary-search it.
type Checkpoint struct {
	Timestamp time.Time
	Votes     *big.Int
}

// Delegate makes the caller's balance count towards the voting power of the
// delegatee from this point forward. An account holds no voting power until
// it has delegated, so activating one's own power requires self-delegation.
func (l *Ledger) Delegate(now time.Time, from, to Address) error {
	if from == Zero || to == Zero {
		return errors.Wrap(ErrInvalidAddress, "delegate with the zero address")
	}
	prev := l.delegatee[from]
	if prev == to {
		return nil
	}
	l.delegatee[from] = to
	balance := l.BalanceOf(from)
	if prev != Zero {
		l.writeCheckpoint(now, prev, new(big.Int).Sub(l.Votes(prev), balance))
	}
	l.writeCheckpoint(now, to, new(big.Int).Add(l.Votes(to), balance))
	return nil
}

// Delegatee returns whom the address has delegated to, or Zero.
func (l *Ledger) Delegatee(addr Address) Address { return l.delegatee[addr] }

// Votes returns the current voting power delegated to the address.
func (l *Ledger) Votes(addr Address) *big.Int {
	cps := l.checkpoints[addr]
	if len(cps) == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(cps[len(cps)-1].Votes)
}

// PastVotes returns the voting power delegated to the address as of the
// given instant.
func (l *Ledger) PastVotes(addr Address, at time.Time) *big.Int {
	cps := l.checkpoints[addr]
	// first checkpoint strictly after at
	i := sort.Search(len(cps), func(i int) bool {
		return cps[i].Timestamp.After(at)
	})
	if i == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(cps[i-1].Votes)
}

// Checkpoints returns the checkpoint history of the address.
func (l *Ledger) Checkpoints(addr Address) []Checkpoint {
	cps := l.checkpoints[addr]
	out := make([]Checkpoint, len(cps))
	for i, cp := range cps {
		out[i] = Checkpoint{Timestamp: cp.Timestamp, Votes: new(big.Int).Set(cp.Votes)}
	}
	return out
}

// moveVotes adjusts delegated voting power after a balance movement of
// amount from src to dst. Zero stands for mint (no source) or burn (no
// destination). Undelegated parties carry no power, nothing to adjust.
func (l *Ledger) moveVotes(now time.Time, src, dst Address, amount *big.Int) {
	if amount.Sign() == 0 || src == dst {
		return
	}
	if srcDelegatee := l.delegatee[src]; src != Zero && srcDelegatee != Zero {
		l.writeCheckpoint(now, srcDelegatee, new(big.Int).Sub(l.Votes(srcDelegatee), amount))
	}
	if dstDelegatee := l.delegatee[dst]; dst != Zero && dstDelegatee != Zero {
		l.writeCheckpoint(now, dstDelegatee, new(big.Int).Add(l.Votes(dstDelegatee), amount))
	}
}

// writeCheckpoint appends the new voting power, collapsing updates that
// share one timestamp into the last checkpoint.
func (l *Ledger) writeCheckpoint(now time.Time, addr Address, votes *big.Int) {
	cps := l.checkpoints[addr]
	if n := len(cps); n > 0 && cps[n-1].Timestamp.Equal(now) {
		cps[n-1].Votes = votes
		return
	}
	l.checkpoints[addr] = append(cps, Checkpoint{Timestamp: now, Votes: votes})
}
