// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package staking implements the multi-pool staking rewards engine: a pool
// registry, the per-pool reward-per-share accumulator, and the stake ledger
// carrying per-(pool, user) stake records.
//
// Like the token ledger, this package is not internally synchronized; the
// engine serializes all mutating calls.
package staking

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/w3eproject/w3e-core/ledger"
)

type (
	// Pool is one staking pool. It is bound to the ledger whose token it
	// accepts, and pays rewards in that same token out of its reserve.
	Pool struct {
		id                uint64
		asset             *ledger.Ledger
		totalStaked       *big.Int
		maxStakeLimit     *big.Int
		minStakeAmount    *big.Int
		rewardRate        *big.Int
		lockPeriod        time.Duration
		active            bool
		accRewardPerShare *big.Int
		lastAccrualTime   time.Time
		rewardReserve     *big.Int
		totalRewardsPaid  *big.Int
	}

	// PoolInfo is the read model of a pool.
	PoolInfo struct {
		ID                  uint64
		Asset               string
		TotalStaked         *big.Int
		MaxStakeLimit       *big.Int
		MinStakeAmount      *big.Int
		RewardRatePerSecond *big.Int
		LockPeriod          time.Duration
		IsActive            bool
		AccRewardPerShare   *big.Int
		LastAccrualTime     time.Time
		RewardReserve       *big.Int
		TotalRewardsPaid    *big.Int
	}

	// PoolUpdate carries the mutable pool fields of an update operation.
	// Nil fields are left unchanged.
	PoolUpdate struct {
		MaxStakeLimit       *big.Int
		MinStakeAmount      *big.Int
		RewardRatePerSecond *big.Int
		LockPeriod          *time.Duration
		IsActive            *bool
	}

	// PoolRegistry is the catalog of staking pools. Pool ids are assigned
	// sequentially and pools are never removed, only deactivated.
	PoolRegistry struct {
		pools []*Pool
	}
)

// NewPoolRegistry creates an empty pool registry.
func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{}
}

// AddPool appends a new active pool and returns its assigned id.
func (r *PoolRegistry) AddPool(
	now time.Time,
	asset *ledger.Ledger,
	maxStakeLimit, minStakeAmount, rewardRatePerSecond *big.Int,
	lockPeriod time.Duration,
) (uint64, error) {
	if asset == nil {
		return 0, errors.Wrap(ErrInvalidPoolParam, "pool requires a staking asset")
	}
	if err := validatePoolParams(maxStakeLimit, minStakeAmount, rewardRatePerSecond, lockPeriod); err != nil {
		return 0, err
	}
	p := &Pool{
		id:                uint64(len(r.pools)),
		asset:             asset,
		totalStaked:       new(big.Int),
		maxStakeLimit:     new(big.Int).Set(maxStakeLimit),
		minStakeAmount:    new(big.Int).Set(minStakeAmount),
		rewardRate:        new(big.Int).Set(rewardRatePerSecond),
		lockPeriod:        lockPeriod,
		active:            true,
		accRewardPerShare: new(big.Int),
		lastAccrualTime:   now,
		rewardReserve:     new(big.Int),
		totalRewardsPaid:  new(big.Int),
	}
	r.pools = append(r.pools, p)
	return p.id, nil
}

// UpdatePool mutates the pool's adjustable fields. Rewards are accrued with
// the old rate up to now first, so a rate change never applies retroactively.
func (r *PoolRegistry) UpdatePool(now time.Time, id uint64, upd PoolUpdate) error {
	p, err := r.pool(id)
	if err != nil {
		return err
	}
	maxLimit := p.maxStakeLimit
	if upd.MaxStakeLimit != nil {
		maxLimit = upd.MaxStakeLimit
	}
	minStake := p.minStakeAmount
	if upd.MinStakeAmount != nil {
		minStake = upd.MinStakeAmount
	}
	rate := p.rewardRate
	if upd.RewardRatePerSecond != nil {
		rate = upd.RewardRatePerSecond
	}
	lock := p.lockPeriod
	if upd.LockPeriod != nil {
		lock = *upd.LockPeriod
	}
	if err := validatePoolParams(maxLimit, minStake, rate, lock); err != nil {
		return err
	}
	// settle with the old rate before any field changes
	p.sync(now)
	p.maxStakeLimit = new(big.Int).Set(maxLimit)
	p.minStakeAmount = new(big.Int).Set(minStake)
	p.rewardRate = new(big.Int).Set(rate)
	p.lockPeriod = lock
	if upd.IsActive != nil {
		p.active = *upd.IsActive
	}
	return nil
}

// PoolCount returns the number of pools ever created.
func (r *PoolRegistry) PoolCount() uint64 { return uint64(len(r.pools)) }

// PoolInfo returns the read model of the pool.
func (r *PoolRegistry) PoolInfo(id uint64) (*PoolInfo, error) {
	p, err := r.pool(id)
	if err != nil {
		return nil, err
	}
	return p.info(), nil
}

// AllPools returns the read models of every pool, ordered by id.
func (r *PoolRegistry) AllPools() []*PoolInfo {
	out := make([]*PoolInfo, len(r.pools))
	for i, p := range r.pools {
		out[i] = p.info()
	}
	return out
}

// Utilization returns the integer percentage of the pool's capacity filled.
func (r *PoolRegistry) Utilization(id uint64) (uint64, error) {
	p, err := r.pool(id)
	if err != nil {
		return 0, err
	}
	pct := new(big.Int).Mul(p.totalStaked, big.NewInt(100))
	pct.Quo(pct, p.maxStakeLimit)
	return pct.Uint64(), nil
}

func (r *PoolRegistry) pool(id uint64) (*Pool, error) {
	if id >= uint64(len(r.pools)) {
		return nil, errors.Wrapf(ErrPoolNotFound, "pool %d", id)
	}
	return r.pools[id], nil
}

func (p *Pool) info() *PoolInfo {
	return &PoolInfo{
		ID:                  p.id,
		Asset:               p.asset.Symbol(),
		TotalStaked:         new(big.Int).Set(p.totalStaked),
		MaxStakeLimit:       new(big.Int).Set(p.maxStakeLimit),
		MinStakeAmount:      new(big.Int).Set(p.minStakeAmount),
		RewardRatePerSecond: new(big.Int).Set(p.rewardRate),
		LockPeriod:          p.lockPeriod,
		IsActive:            p.active,
		AccRewardPerShare:   new(big.Int).Set(p.accRewardPerShare),
		LastAccrualTime:     p.lastAccrualTime,
		RewardReserve:       new(big.Int).Set(p.rewardReserve),
		TotalRewardsPaid:    new(big.Int).Set(p.totalRewardsPaid),
	}
}
