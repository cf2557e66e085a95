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

	"github.com/w3eproject/w3e-core/pkg/unit"
)

func TestAddPoolValidation(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	r := NewPoolRegistry()

	_, err := r.AddPool(_t0, nil, big.NewInt(100), big.NewInt(1), big.NewInt(1), 0)
	require.Equal(ErrInvalidPoolParam, errors.Cause(err))
	_, err = r.AddPool(_t0, env.asset, big.NewInt(0), big.NewInt(0), big.NewInt(1), 0)
	require.Equal(ErrInvalidPoolParam, errors.Cause(err))
	_, err = r.AddPool(_t0, env.asset, big.NewInt(100), big.NewInt(101), big.NewInt(1), 0)
	require.Equal(ErrInvalidPoolParam, errors.Cause(err))
	_, err = r.AddPool(_t0, env.asset, big.NewInt(100), big.NewInt(1), big.NewInt(-1), 0)
	require.Equal(ErrInvalidPoolParam, errors.Cause(err))
	_, err = r.AddPool(_t0, env.asset, big.NewInt(100), big.NewInt(1), big.NewInt(1), -time.Second)
	require.Equal(ErrInvalidPoolParam, errors.Cause(err))

	// ids are sequential
	id0, err := r.AddPool(_t0, env.asset, big.NewInt(100), big.NewInt(1), big.NewInt(1), 0)
	require.NoError(err)
	require.Equal(uint64(0), id0)
	id1, err := r.AddPool(_t0, env.asset, big.NewInt(100), big.NewInt(1), big.NewInt(1), 0)
	require.NoError(err)
	require.Equal(uint64(1), id1)
	require.Equal(uint64(2), r.PoolCount())
	require.Len(r.AllPools(), 2)

	_, err = r.PoolInfo(2)
	require.Equal(ErrPoolNotFound, errors.Cause(err))
}

func TestUpdatePoolRateChange(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))

	// double the rate after 100s; the first interval stays priced at the old rate
	t1 := _t0.Add(100 * time.Second)
	newRate := unit.ConvertW3eToDust(2)
	require.NoError(env.sl.UpdatePool(t1, _admin, env.pool, PoolUpdate{RewardRatePerSecond: newRate}))

	pending, err := env.sl.PendingRewards(t1.Add(100*time.Second), env.pool, _alice)
	require.NoError(err)
	require.Equal(unit.ConvertW3eToDust(300), pending)

	pi, err := env.sl.Registry().PoolInfo(env.pool)
	require.NoError(err)
	require.Equal(newRate, pi.RewardRatePerSecond)
	require.Equal(t1, pi.LastAccrualTime)
}

func TestUpdatePoolValidation(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	err := env.sl.UpdatePool(_t0, _admin, 42, PoolUpdate{})
	require.Equal(ErrPoolNotFound, errors.Cause(err))

	// merged parameters are validated together
	badMin := new(big.Int).Add(unit.ConvertW3eToDust(1_000_000), big.NewInt(1))
	err = env.sl.UpdatePool(_t0, _admin, env.pool, PoolUpdate{MinStakeAmount: badMin})
	require.Equal(ErrInvalidPoolParam, errors.Cause(err))

	// an unrelated update leaves the rest of the pool untouched
	lock := 2 * time.Hour
	require.NoError(env.sl.UpdatePool(_t0, _admin, env.pool, PoolUpdate{LockPeriod: &lock}))
	pi, err := env.sl.Registry().PoolInfo(env.pool)
	require.NoError(err)
	require.Equal(lock, pi.LockPeriod)
	require.Equal(unit.ConvertW3eToDust(100), pi.MinStakeAmount)
	require.True(pi.IsActive)
}

func TestDeactivateReactivate(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))

	inactive := false
	require.NoError(env.sl.UpdatePool(_t0, _admin, env.pool, PoolUpdate{IsActive: &inactive}))

	// existing stakes keep accruing and can exit while the pool is closed
	pending, err := env.sl.PendingRewards(_t0.Add(10*time.Second), env.pool, _alice)
	require.NoError(err)
	require.Equal(unit.ConvertW3eToDust(10), pending)
	require.NoError(env.sl.Unstake(_t0.Add(time.Hour), _alice, env.pool, unit.ConvertW3eToDust(500)))

	active := true
	require.NoError(env.sl.UpdatePool(_t0, _admin, env.pool, PoolUpdate{IsActive: &active}))
	require.NoError(env.sl.Stake(_t0.Add(time.Hour), _alice, env.pool, unit.ConvertW3eToDust(100)))
}

func TestUtilization(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	pct, err := env.sl.Registry().Utilization(env.pool)
	require.NoError(err)
	require.Zero(pct)

	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(10_000)))
	pct, err = env.sl.Registry().Utilization(env.pool)
	require.NoError(err)
	require.Equal(uint64(1), pct)

	// rounds down below a full percent
	require.NoError(env.sl.Stake(_t0, _bob, env.pool, unit.ConvertW3eToDust(9_999)))
	pct, err = env.sl.Registry().Utilization(env.pool)
	require.NoError(err)
	require.Equal(uint64(1), pct)

	_, err = env.sl.Registry().Utilization(42)
	require.Equal(ErrPoolNotFound, errors.Cause(err))
}

func TestAccrualWithEmptyPool(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	// nothing staked, nothing accrues
	p, err := env.sl.Registry().pool(env.pool)
	require.NoError(err)
	require.Zero(p.projectedAcc(_t0.Add(time.Hour)).Sign())

	// the first staker does not inherit the idle interval
	require.NoError(env.sl.Stake(_t0.Add(time.Hour), _alice, env.pool, unit.ConvertW3eToDust(1_000)))
	pending, err := env.sl.PendingRewards(_t0.Add(time.Hour), env.pool, _alice)
	require.NoError(err)
	require.Zero(pending.Sign())
}

func TestAccrualClockRewind(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	require.NoError(env.sl.Stake(_t0, _alice, env.pool, unit.ConvertW3eToDust(1_000)))

	// a timestamp before the accrual cursor never produces negative rewards
	pending, err := env.sl.PendingRewards(_t0.Add(-time.Hour), env.pool, _alice)
	require.NoError(err)
	require.Zero(pending.Sign())
}
