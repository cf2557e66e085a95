// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/w3eproject/w3e-core/ledger"
	"github.com/w3eproject/w3e-core/pkg/unit"
)

var (
	_admin   = ledger.Address("w3e1admin")
	_custody = ledger.Address("w3e1custody")
	_alice   = ledger.Address("w3e1alice")
	_bob     = ledger.Address("w3e1bob")

	_t0 = time.Unix(1700000000, 0).UTC()
)

type testEnv struct {
	asset *ledger.Ledger
	sl    *StakeLedger
	pool  uint64
}

// newTestEnv creates a funded asset ledger and a stake ledger with one pool:
// 1 W3E/second reward, 1h lock, 1M W3E capacity, 100 W3E minimum.
func newTestEnv(t *testing.T) *testEnv {
	require := require.New(t)
	asset, err := ledger.New(ledger.Config{
		Name:          "W3E Token",
		Symbol:        "W3E",
		Decimals:      18,
		MaxSupply:     unit.ConvertW3eToDust(10_000_000),
		InitialSupply: unit.ConvertW3eToDust(5_000_000),
		Owner:         _admin,
	})
	require.NoError(err)
	require.NoError(asset.SetFeeExemption(_admin, _custody, true))
	require.NoError(asset.Transfer(_t0, _admin, _alice, unit.ConvertW3eToDust(100_000)))
	require.NoError(asset.Transfer(_t0, _admin, _bob, unit.ConvertW3eToDust(100_000)))

	sl, err := NewStakeLedger(NewPoolRegistry(), _admin, _custody)
	require.NoError(err)
	id, err := sl.AddPool(_t0, _admin, asset,
		unit.ConvertW3eToDust(1_000_000), unit.ConvertW3eToDust(100), unit.ConvertW3eToDust(1), time.Hour)
	require.NoError(err)
	require.NoError(sl.FundRewards(_t0, _admin, id, unit.ConvertW3eToDust(1_000)))
	return &testEnv{asset: asset, sl: sl, pool: id}
}

func TestStake(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	amount := unit.ConvertW3eToDust(1_000)

	require.NoError(env.sl.Stake(_t0, _alice, env.pool, amount))
	require.Equal(unit.ConvertW3eToDust(99_000), env.asset.BalanceOf(_alice))

	info, err := env.sl.UserInfo(_t0, env.pool, _alice)
	require.NoError(err)
	require.Equal(amount, info.StakedAmount)
	require.Equal(_t0, info.LastStakeTime)
	require.Equal([]uint64{env.pool}, env.sl.UserStakedPools(_alice))

	pi, err := env.sl.Registry().PoolInfo(env.pool)
	require.NoError(err)
	require.Equal(amount, pi.TotalStaked)
}

func TestStakeValidations(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	err := env.sl.Stake(_t0, _alice, 42, big.NewInt(1))
	require.Equal(ErrPoolNotFound, errors.Cause(err))

	// below the pool minimum on a first stake
	err = env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(99))
	require.Equal(ErrBelowMinimumStake, errors.Cause(err))

	// top-ups below the minimum are fine once staked
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(100)))
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, big.NewInt(1)))

	// capacity
	err = env.sl.Stake(_t0, _bob, env.pool, unit.ConvertW3eToDust(1_000_000))
	require.Equal(ErrPoolLimitExceeded, errors.Cause(err))

	// more than the user holds
	err = env.sl.Stake(_t0, _bob, env.pool, unit.ConvertW3eToDust(200_000))
	require.Equal(ledger.ErrInsufficientBalance, errors.Cause(err))

	// deactivated pool rejects new stakes
	inactive := false
	require.NoError(env.sl.UpdatePool(_t0, _admin, env.pool, PoolUpdate{IsActive: &inactive}))
	err = env.sl.Stake(_t0, _bob, env.pool, unit.ConvertW3eToDust(100))
	require.Equal(ErrPoolInactive, errors.Cause(err))
}

func TestUnstakeLock(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	amount := unit.ConvertW3eToDust(1_000)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, amount))

	// within the lock period
	err := env.sl.Unstake(_t0.Add(time.Hour-time.Second), _alice, env.pool, amount)
	require.Equal(ErrTokensLocked, errors.Cause(err))

	// exactly at the lock boundary it succeeds
	require.NoError(env.sl.Unstake(_t0.Add(time.Hour), _alice, env.pool, amount))
	require.Equal(unit.ConvertW3eToDust(100_000), env.asset.BalanceOf(_alice))
	require.Empty(env.sl.UserStakedPools(_alice))
}

func TestStakeResetsLock(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))

	// a later top-up re-locks the entire balance
	t1 := _t0.Add(59 * time.Minute)
	require.NoError(env.sl.Stake(t1, _alice, env.pool, unit.ConvertW3eToDust(100)))
	err := env.sl.Unstake(_t0.Add(time.Hour), _alice, env.pool, big.NewInt(1))
	require.Equal(ErrTokensLocked, errors.Cause(err))
	require.NoError(env.sl.Unstake(t1.Add(time.Hour), _alice, env.pool, unit.ConvertW3eToDust(1_100)))
}

func TestUnstakeValidations(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	err := env.sl.Unstake(_t0, _alice, 42, big.NewInt(1))
	require.Equal(ErrPoolNotFound, errors.Cause(err))
	err = env.sl.Unstake(_t0, _alice, env.pool, big.NewInt(1))
	require.Equal(ErrInsufficientStaked, errors.Cause(err))

	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))
	err = env.sl.Unstake(_t0.Add(2*time.Hour), _alice, env.pool, unit.ConvertW3eToDust(1_001))
	require.Equal(ErrInsufficientStaked, errors.Cause(err))
}

func TestRewardAccrual(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))

	// single staker earns the full rate
	pending, err := env.sl.PendingRewards(_t0.Add(100*time.Second), env.pool, _alice)
	require.NoError(err)
	require.Equal(unit.ConvertW3eToDust(100), pending)

	// strictly increasing with elapsed time
	later, err := env.sl.PendingRewards(_t0.Add(101*time.Second), env.pool, _alice)
	require.NoError(err)
	require.Equal(1, later.Cmp(pending))

	// reads do not advance the accrual cursor
	pi, err := env.sl.Registry().PoolInfo(env.pool)
	require.NoError(err)
	require.Equal(_t0, pi.LastAccrualTime)
	again, err := env.sl.PendingRewards(_t0.Add(100*time.Second), env.pool, _alice)
	require.NoError(err)
	require.Equal(pending, again)
}

func TestRewardSplitBetweenStakers(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	stake := unit.ConvertW3eToDust(1_000)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, stake))
	require.NoError(env.sl.Stake(_t0.Add(100*time.Second), _bob, env.pool, stake))

	// alice was alone for 100s, then the rate splits evenly
	pendingAlice, err := env.sl.PendingRewards(_t0.Add(300*time.Second), env.pool, _alice)
	require.NoError(err)
	require.Equal(unit.ConvertW3eToDust(200), pendingAlice)
	pendingBob, err := env.sl.PendingRewards(_t0.Add(300*time.Second), env.pool, _bob)
	require.NoError(err)
	require.Equal(unit.ConvertW3eToDust(100), pendingBob)
}

func TestClaimRewards(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))

	_, err := env.sl.ClaimRewards(_t0, _alice, env.pool)
	require.Equal(ErrNoRewardsToClaim, errors.Cause(err))

	t1 := _t0.Add(500 * time.Second)
	balance := env.asset.BalanceOf(_alice)
	claimed, err := env.sl.ClaimRewards(t1, _alice, env.pool)
	require.NoError(err)
	require.Equal(unit.ConvertW3eToDust(500), claimed)
	require.Equal(new(big.Int).Add(balance, claimed), env.asset.BalanceOf(_alice))

	info, err := env.sl.UserInfo(t1, env.pool, _alice)
	require.NoError(err)
	require.Equal(int64(0), info.PendingRewards.Int64())
	require.Equal(claimed, info.TotalRewardsClaimed)

	// nothing left to claim at the same instant
	_, err = env.sl.ClaimRewards(t1, _alice, env.pool)
	require.Equal(ErrNoRewardsToClaim, errors.Cause(err))

	// reserve decreases by exactly the claim
	pi, err := env.sl.Registry().PoolInfo(env.pool)
	require.NoError(err)
	require.Equal(new(big.Int).Sub(unit.ConvertW3eToDust(1_000), claimed), pi.RewardReserve)
	require.Equal(claimed, pi.TotalRewardsPaid)
}

func TestClaimExhaustedReserve(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	// a second pool with a huge rate and a tiny reserve
	id, err := env.sl.AddPool(_t0, _admin, env.asset,
		unit.ConvertW3eToDust(1_000_000), unit.ConvertW3eToDust(100), unit.ConvertW3eToDust(10), time.Hour)
	require.NoError(err)
	require.NoError(env.sl.FundRewards(_t0, _admin, id, big.NewInt(1)))
	require.NoError(env.sl.Stake(_t0, _alice, id, unit.ConvertW3eToDust(1_000)))

	_, err = env.sl.ClaimRewards(_t0.Add(time.Hour), _alice, id)
	require.Equal(ErrInsufficientRewardReserve, errors.Cause(err))
}

func TestEmergencyUnstake(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	staked := unit.ConvertW3eToDust(1_000)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, staked))

	// bypasses the lock entirely, with the default 5% penalty
	t1 := _t0.Add(10 * time.Minute)
	balance := env.asset.BalanceOf(_alice)
	returned, err := env.sl.EmergencyUnstake(t1, _alice, env.pool)
	require.NoError(err)
	fee := new(big.Int).Quo(new(big.Int).Mul(staked, big.NewInt(500)), big.NewInt(10000))
	require.Equal(new(big.Int).Sub(staked, fee), returned)
	require.Equal(new(big.Int).Add(balance, returned), env.asset.BalanceOf(_alice))
	require.Equal(fee, env.sl.CollectedFees(env.pool))

	// position emptied, pending rewards forfeited, claim history kept
	info, err := env.sl.UserInfo(t1, env.pool, _alice)
	require.NoError(err)
	require.Equal(int64(0), info.StakedAmount.Int64())
	require.Equal(int64(0), info.PendingRewards.Int64())
	require.Empty(env.sl.UserStakedPools(_alice))

	pi, err := env.sl.Registry().PoolInfo(env.pool)
	require.NoError(err)
	require.Equal(int64(0), pi.TotalStaked.Int64())

	_, err = env.sl.EmergencyUnstake(t1, _alice, env.pool)
	require.Equal(ErrInsufficientStaked, errors.Cause(err))
}

func TestCollectFees(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))
	_, err := env.sl.EmergencyUnstake(_t0, _alice, env.pool)
	require.NoError(err)
	collected := env.sl.CollectedFees(env.pool)
	require.True(collected.Sign() > 0)

	err = env.sl.CollectFees(_t0, _alice, env.pool, big.NewInt(1))
	require.Equal(ledger.ErrUnauthorized, errors.Cause(err))
	err = env.sl.CollectFees(_t0, _admin, env.pool, new(big.Int).Add(collected, big.NewInt(1)))
	require.Equal(ErrInsufficientFees, errors.Cause(err))

	balance := env.asset.BalanceOf(_admin)
	require.NoError(env.sl.CollectFees(_t0, _admin, env.pool, collected))
	require.Equal(new(big.Int).Add(balance, collected), env.asset.BalanceOf(_admin))
	require.Equal(int64(0), env.sl.CollectedFees(env.pool).Int64())
}

func TestSetEmergencyWithdrawFee(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	err := env.sl.SetEmergencyWithdrawFee(_alice, 100)
	require.Equal(ledger.ErrUnauthorized, errors.Cause(err))
	require.Error(env.sl.SetEmergencyWithdrawFee(_admin, 10001))

	require.NoError(env.sl.SetEmergencyWithdrawFee(_admin, 1000))
	require.Equal(uint64(1000), env.sl.EmergencyWithdrawFeeBps())

	staked := unit.ConvertW3eToDust(1_000)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, staked))
	returned, err := env.sl.EmergencyUnstake(_t0, _alice, env.pool)
	require.NoError(err)
	require.Equal(unit.ConvertW3eToDust(900), returned)

	// a 100% penalty forfeits the entire position
	require.NoError(env.sl.SetEmergencyWithdrawFee(_admin, 10000))
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, staked))
	balance := env.asset.BalanceOf(_alice)
	returned, err = env.sl.EmergencyUnstake(_t0, _alice, env.pool)
	require.NoError(err)
	require.Zero(returned.Sign())
	require.Equal(balance, env.asset.BalanceOf(_alice))
	// 10% of the first exit plus the whole second one
	require.Equal(unit.ConvertW3eToDust(1_100), env.sl.CollectedFees(env.pool))
}

func TestUserStakedPools(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	id2, err := env.sl.AddPool(_t0, _admin, env.asset,
		unit.ConvertW3eToDust(1_000_000), big.NewInt(1), big.NewInt(1), 0)
	require.NoError(err)

	require.Empty(env.sl.UserStakedPools(_alice))
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))
	require.NoError(env.sl.Stake(_t0, _alice, id2, unit.ConvertW3eToDust(1_000)))
	require.Equal([]uint64{env.pool, id2}, env.sl.UserStakedPools(_alice))

	// partial unstake keeps the pool in the index
	require.NoError(env.sl.Unstake(_t0, _alice, id2, unit.ConvertW3eToDust(500)))
	require.Equal([]uint64{env.pool, id2}, env.sl.UserStakedPools(_alice))
	// full unstake drops it
	require.NoError(env.sl.Unstake(_t0, _alice, id2, unit.ConvertW3eToDust(500)))
	require.Equal([]uint64{env.pool}, env.sl.UserStakedPools(_alice))
}

func TestAdminGating(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	_, err := env.sl.AddPool(_t0, _alice, env.asset, big.NewInt(1), big.NewInt(0), big.NewInt(0), 0)
	require.Equal(ledger.ErrUnauthorized, errors.Cause(err))
	err = env.sl.UpdatePool(_t0, _alice, env.pool, PoolUpdate{})
	require.Equal(ledger.ErrUnauthorized, errors.Cause(err))
	err = env.sl.FundRewards(_t0, _alice, env.pool, big.NewInt(1))
	require.Equal(ledger.ErrUnauthorized, errors.Cause(err))
}

func TestStakingStateRoundTrip(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))
	require.NoError(env.sl.Stake(_t0.Add(time.Minute), _bob, env.pool, unit.ConvertW3eToDust(2_000)))
	_, err := env.sl.EmergencyUnstake(_t0.Add(2*time.Minute), _bob, env.pool)
	require.NoError(err)

	restored, err := FromState(env.sl.Snapshot(), func(symbol string) (*ledger.Ledger, bool) {
		if symbol == env.asset.Symbol() {
			return env.asset, true
		}
		return nil, false
	})
	require.NoError(err)

	at := _t0.Add(10 * time.Minute)
	wantPending, err := env.sl.PendingRewards(at, env.pool, _alice)
	require.NoError(err)
	gotPending, err := restored.PendingRewards(at, env.pool, _alice)
	require.NoError(err)
	require.Equal(wantPending, gotPending)

	require.Equal(env.sl.UserStakedPools(_alice), restored.UserStakedPools(_alice))
	require.Empty(restored.UserStakedPools(_bob))
	require.Equal(env.sl.CollectedFees(env.pool), restored.CollectedFees(env.pool))

	wantPool, err := env.sl.Registry().PoolInfo(env.pool)
	require.NoError(err)
	gotPool, err := restored.Registry().PoolInfo(env.pool)
	require.NoError(err)
	require.Equal(wantPool, gotPool)
}
