// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"time"
)

// Scale is the fixed-point precision of accRewardPerShare. All divisions
// round down, so accumulated dust stays with the pool, never with a staker.
var Scale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// projectedAcc computes the accumulator value the pool would hold after
// accruing up to now, without mutating the pool. With nothing staked there
// is no accrual.
func (p *Pool) projectedAcc(now time.Time) *big.Int {
	acc := new(big.Int).Set(p.accRewardPerShare)
	if p.totalStaked.Sign() == 0 {
		return acc
	}
	elapsed := int64(now.Sub(p.lastAccrualTime) / time.Second)
	if elapsed <= 0 {
		// saturate at zero, a non-monotonic clock must not rewind rewards
		return acc
	}
	reward := new(big.Int).Mul(p.rewardRate, big.NewInt(elapsed))
	reward.Mul(reward, Scale)
	reward.Quo(reward, p.totalStaked)
	return acc.Add(acc, reward)
}

// sync accrues rewards up to now and advances the accrual cursor. Every
// mutating stake operation calls this before touching staked amounts.
func (p *Pool) sync(now time.Time) {
	p.accRewardPerShare = p.projectedAcc(now)
	if now.After(p.lastAccrualTime) {
		p.lastAccrualTime = now
	}
}

// pendingAt returns the stake's claimable reward against the given
// accumulator value: banked rewards from earlier mutations plus freshly
// accrued share, minus the already-priced-in reward debt.
func (s *UserStake) pendingAt(acc *big.Int) *big.Int {
	pending := new(big.Int).Mul(s.amount, acc)
	pending.Quo(pending, Scale)
	pending.Sub(pending, s.rewardDebt)
	return pending.Add(pending, s.pendingBanked)
}

// settle banks the stake's accrued reward so a following amount mutation
// cannot double-count or lose it.
func (s *UserStake) settle(acc *big.Int) {
	fresh := new(big.Int).Mul(s.amount, acc)
	fresh.Quo(fresh, Scale)
	fresh.Sub(fresh, s.rewardDebt)
	s.pendingBanked.Add(s.pendingBanked, fresh)
}

// resetDebt re-prices the stake against the accumulator after a mutation.
func (s *UserStake) resetDebt(acc *big.Int) {
	s.rewardDebt = new(big.Int).Mul(s.amount, acc)
	s.rewardDebt.Quo(s.rewardDebt, Scale)
}
