// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/w3eproject/w3e-core/ledger"
)

type (
	// UserStake is the stake record of one user in one pool. Records are
	// created on first stake and only logically emptied afterwards, so the
	// claim history survives a full exit.
	UserStake struct {
		amount        *big.Int
		rewardDebt    *big.Int
		pendingBanked *big.Int
		lastStakeTime time.Time
		totalClaimed  *big.Int
	}

	// UserInfo is the read model of a user's position in a pool.
	UserInfo struct {
		StakedAmount        *big.Int
		PendingRewards      *big.Int
		LastStakeTime       time.Time
		TotalRewardsClaimed *big.Int
	}

	// StakeLedger orchestrates stake operations against the pool registry
	// and the pools' staking assets. Staked tokens and reward reserves are
	// held by the custody address; emergency-exit penalty fees accumulate
	// there too until the admin collects them.
	StakeLedger struct {
		admin           ledger.Address
		custody         ledger.Address
		emergencyFeeBps uint64
		registry        *PoolRegistry
		stakes          map[uint64]map[ledger.Address]*UserStake
		userPools       map[ledger.Address]map[uint64]struct{}
		collectedFees   map[uint64]*big.Int
	}
)

// DefaultEmergencyFeeBps is the default emergency withdraw penalty (5%).
const DefaultEmergencyFeeBps = 500

// NewStakeLedger creates a stake ledger administered by admin, holding
// custody of staked tokens under the custody address.
func NewStakeLedger(registry *PoolRegistry, admin, custody ledger.Address) (*StakeLedger, error) {
	if admin == ledger.Zero || custody == ledger.Zero {
		return nil, errors.Wrap(ledger.ErrInvalidAddress, "stake ledger requires admin and custody addresses")
	}
	return &StakeLedger{
		admin:           admin,
		custody:         custody,
		emergencyFeeBps: DefaultEmergencyFeeBps,
		registry:        registry,
		stakes:          make(map[uint64]map[ledger.Address]*UserStake),
		userPools:       make(map[ledger.Address]map[uint64]struct{}),
		collectedFees:   make(map[uint64]*big.Int),
	}, nil
}

// Registry returns the pool registry the stake ledger operates on.
func (sl *StakeLedger) Registry() *PoolRegistry { return sl.registry }

// Custody returns the custody address.
func (sl *StakeLedger) Custody() ledger.Address { return sl.custody }

// Admin returns the admin address.
func (sl *StakeLedger) Admin() ledger.Address { return sl.admin }

// EmergencyWithdrawFeeBps returns the emergency withdraw penalty rate.
func (sl *StakeLedger) EmergencyWithdrawFeeBps() uint64 { return sl.emergencyFeeBps }

// AddPool creates a new pool. Admin only.
func (sl *StakeLedger) AddPool(
	now time.Time,
	caller ledger.Address,
	asset *ledger.Ledger,
	maxStakeLimit, minStakeAmount, rewardRatePerSecond *big.Int,
	lockPeriod time.Duration,
) (uint64, error) {
	if err := sl.requireAdmin(caller); err != nil {
		return 0, err
	}
	return sl.registry.AddPool(now, asset, maxStakeLimit, minStakeAmount, rewardRatePerSecond, lockPeriod)
}

// UpdatePool adjusts a pool's mutable fields. Admin only.
func (sl *StakeLedger) UpdatePool(now time.Time, caller ledger.Address, id uint64, upd PoolUpdate) error {
	if err := sl.requireAdmin(caller); err != nil {
		return err
	}
	return sl.registry.UpdatePool(now, id, upd)
}

// SetEmergencyWithdrawFee sets the emergency withdraw penalty rate. Admin only.
func (sl *StakeLedger) SetEmergencyWithdrawFee(caller ledger.Address, basisPoints uint64) error {
	if err := sl.requireAdmin(caller); err != nil {
		return err
	}
	if basisPoints > ledger.MaxFeeBasisPoints {
		return errors.Wrapf(ledger.ErrInvalidFee, "fee %d exceeds %d basis points", basisPoints, ledger.MaxFeeBasisPoints)
	}
	sl.emergencyFeeBps = basisPoints
	return nil
}

// Stake moves amount of the pool's asset from the user into custody and
// records the stake. Any new stake re-locks the user's entire balance in
// the pool.
func (sl *StakeLedger) Stake(now time.Time, user ledger.Address, id uint64, amount *big.Int) error {
	p, err := sl.registry.pool(id)
	if err != nil {
		return err
	}
	if !p.active {
		return errors.Wrapf(ErrPoolInactive, "pool %d", id)
	}
	if err := validateStakeAmount(amount); err != nil {
		return err
	}
	st := sl.stake(id, user)
	if (st == nil || st.amount.Sign() == 0) && amount.Cmp(p.minStakeAmount) < 0 {
		return errors.Wrapf(ErrBelowMinimumStake, "amount %s < minimum %s", amount, p.minStakeAmount)
	}
	if new(big.Int).Add(p.totalStaked, amount).Cmp(p.maxStakeLimit) > 0 {
		return errors.Wrapf(ErrPoolLimitExceeded, "staked %s + %s > limit %s", p.totalStaked, amount, p.maxStakeLimit)
	}
	// custody pull is the last fallible step, the bookkeeping below cannot fail
	if err := p.asset.Transfer(now, user, sl.custody, amount); err != nil {
		return err
	}

	p.sync(now)
	if st == nil {
		st = newUserStake()
		if _, ok := sl.stakes[id]; !ok {
			sl.stakes[id] = make(map[ledger.Address]*UserStake)
		}
		sl.stakes[id][user] = st
	}
	st.settle(p.accRewardPerShare)
	st.amount.Add(st.amount, amount)
	st.lastStakeTime = now
	st.resetDebt(p.accRewardPerShare)
	p.totalStaked.Add(p.totalStaked, amount)
	sl.indexAdd(user, id)
	return nil
}

// Unstake returns amount of staked tokens to the user once the lock period
// has elapsed.
func (sl *StakeLedger) Unstake(now time.Time, user ledger.Address, id uint64, amount *big.Int) error {
	p, err := sl.registry.pool(id)
	if err != nil {
		return err
	}
	if err := validateStakeAmount(amount); err != nil {
		return err
	}
	st := sl.stake(id, user)
	if st == nil || st.amount.Sign() == 0 {
		return errors.Wrapf(ErrInsufficientStaked, "no stake in pool %d", id)
	}
	if locked := st.lastStakeTime.Add(p.lockPeriod); now.Before(locked) {
		return errors.Wrapf(ErrTokensLocked, "unlocks at %s", locked)
	}
	if amount.Cmp(st.amount) > 0 {
		return errors.Wrapf(ErrInsufficientStaked, "staked %s < %s", st.amount, amount)
	}
	if err := p.asset.Transfer(now, sl.custody, user, amount); err != nil {
		return err
	}

	p.sync(now)
	st.settle(p.accRewardPerShare)
	st.amount.Sub(st.amount, amount)
	st.resetDebt(p.accRewardPerShare)
	p.totalStaked.Sub(p.totalStaked, amount)
	if st.amount.Sign() == 0 {
		sl.indexRemove(user, id)
	}
	return nil
}

// ClaimRewards pays out the user's accrued rewards from the pool's reserve.
func (sl *StakeLedger) ClaimRewards(now time.Time, user ledger.Address, id uint64) (*big.Int, error) {
	p, err := sl.registry.pool(id)
	if err != nil {
		return nil, err
	}
	st := sl.stake(id, user)
	if st == nil {
		return nil, errors.Wrapf(ErrNoRewardsToClaim, "no stake record in pool %d", id)
	}
	pending := st.pendingAt(p.projectedAcc(now))
	if pending.Sign() == 0 {
		return nil, errors.Wrapf(ErrNoRewardsToClaim, "pool %d", id)
	}
	if p.rewardReserve.Cmp(pending) < 0 {
		return nil, errors.Wrapf(ErrInsufficientRewardReserve, "reserve %s < pending %s", p.rewardReserve, pending)
	}
	if err := p.asset.Transfer(now, sl.custody, user, pending); err != nil {
		return nil, err
	}

	p.sync(now)
	st.pendingBanked = new(big.Int)
	st.resetDebt(p.accRewardPerShare)
	st.totalClaimed.Add(st.totalClaimed, pending)
	p.rewardReserve.Sub(p.rewardReserve, pending)
	p.totalRewardsPaid.Add(p.totalRewardsPaid, pending)
	return pending, nil
}

// EmergencyUnstake exits the full position immediately, bypassing the lock.
// A penalty fee is withheld and all unclaimed rewards are forfeited.
func (sl *StakeLedger) EmergencyUnstake(now time.Time, user ledger.Address, id uint64) (*big.Int, error) {
	p, err := sl.registry.pool(id)
	if err != nil {
		return nil, err
	}
	st := sl.stake(id, user)
	if st == nil || st.amount.Sign() == 0 {
		return nil, errors.Wrapf(ErrInsufficientStaked, "no stake in pool %d", id)
	}
	staked := new(big.Int).Set(st.amount)
	fee := new(big.Int).Mul(staked, new(big.Int).SetUint64(sl.emergencyFeeBps))
	fee.Quo(fee, big.NewInt(ledger.MaxFeeBasisPoints))
	returned := new(big.Int).Sub(staked, fee)
	// a full-penalty exit returns nothing, there is no transfer to make
	if returned.Sign() > 0 {
		if err := p.asset.Transfer(now, sl.custody, user, returned); err != nil {
			return nil, err
		}
	}

	p.sync(now)
	p.totalStaked.Sub(p.totalStaked, staked)
	st.amount = new(big.Int)
	st.pendingBanked = new(big.Int)
	st.rewardDebt = new(big.Int)
	if fees, ok := sl.collectedFees[id]; ok {
		fees.Add(fees, fee)
	} else {
		sl.collectedFees[id] = fee
	}
	sl.indexRemove(user, id)
	return returned, nil
}

// FundRewards moves amount from the caller into the pool's reward reserve.
// Admin only.
func (sl *StakeLedger) FundRewards(now time.Time, caller ledger.Address, id uint64, amount *big.Int) error {
	if err := sl.requireAdmin(caller); err != nil {
		return err
	}
	p, err := sl.registry.pool(id)
	if err != nil {
		return err
	}
	if err := validateStakeAmount(amount); err != nil {
		return err
	}
	if err := p.asset.Transfer(now, caller, sl.custody, amount); err != nil {
		return err
	}
	p.rewardReserve.Add(p.rewardReserve, amount)
	return nil
}

// CollectFees withdraws accumulated emergency penalty fees to the admin.
// Admin only.
func (sl *StakeLedger) CollectFees(now time.Time, caller ledger.Address, id uint64, amount *big.Int) error {
	if err := sl.requireAdmin(caller); err != nil {
		return err
	}
	p, err := sl.registry.pool(id)
	if err != nil {
		return err
	}
	if err := validateStakeAmount(amount); err != nil {
		return err
	}
	collected, ok := sl.collectedFees[id]
	if !ok || collected.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientFees, "collected %s < %s", sl.CollectedFees(id), amount)
	}
	if err := p.asset.Transfer(now, sl.custody, caller, amount); err != nil {
		return err
	}
	collected.Sub(collected, amount)
	return nil
}

// CollectedFees returns the emergency fees accumulated for the pool and not
// yet withdrawn.
func (sl *StakeLedger) CollectedFees(id uint64) *big.Int {
	if fees, ok := sl.collectedFees[id]; ok {
		return new(big.Int).Set(fees)
	}
	return new(big.Int)
}

// PendingRewards returns the user's claimable reward as of now, without
// advancing the pool's accrual cursor.
func (sl *StakeLedger) PendingRewards(now time.Time, id uint64, user ledger.Address) (*big.Int, error) {
	p, err := sl.registry.pool(id)
	if err != nil {
		return nil, err
	}
	st := sl.stake(id, user)
	if st == nil {
		return new(big.Int), nil
	}
	return st.pendingAt(p.projectedAcc(now)), nil
}

// UserInfo returns the user's position in the pool as of now.
func (sl *StakeLedger) UserInfo(now time.Time, id uint64, user ledger.Address) (*UserInfo, error) {
	p, err := sl.registry.pool(id)
	if err != nil {
		return nil, err
	}
	st := sl.stake(id, user)
	if st == nil {
		return &UserInfo{
			StakedAmount:        new(big.Int),
			PendingRewards:      new(big.Int),
			TotalRewardsClaimed: new(big.Int),
		}, nil
	}
	return &UserInfo{
		StakedAmount:        new(big.Int).Set(st.amount),
		PendingRewards:      st.pendingAt(p.projectedAcc(now)),
		LastStakeTime:       st.lastStakeTime,
		TotalRewardsClaimed: new(big.Int).Set(st.totalClaimed),
	}, nil
}

// UserStakedPools returns the ids of pools where the user holds a non-zero
// stake, in ascending order.
func (sl *StakeLedger) UserStakedPools(user ledger.Address) []uint64 {
	pools := sl.userPools[user]
	out := make([]uint64, 0, len(pools))
	for id := range pools {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (sl *StakeLedger) requireAdmin(caller ledger.Address) error {
	if caller != sl.admin {
		return errors.Wrapf(ledger.ErrUnauthorized, "%s is not the staking admin", caller)
	}
	return nil
}

func (sl *StakeLedger) stake(id uint64, user ledger.Address) *UserStake {
	if m, ok := sl.stakes[id]; ok {
		return m[user]
	}
	return nil
}

func (sl *StakeLedger) indexAdd(user ledger.Address, id uint64) {
	if _, ok := sl.userPools[user]; !ok {
		sl.userPools[user] = make(map[uint64]struct{})
	}
	sl.userPools[user][id] = struct{}{}
}

func (sl *StakeLedger) indexRemove(user ledger.Address, id uint64) {
	if pools, ok := sl.userPools[user]; ok {
		delete(pools, id)
		if len(pools) == 0 {
			delete(sl.userPools, user)
		}
	}
}

func newUserStake() *UserStake {
	return &UserStake{
		amount:        new(big.Int),
		rewardDebt:    new(big.Int),
		pendingBanked: new(big.Int),
		totalClaimed:  new(big.Int),
	}
}
