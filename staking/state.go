// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/w3eproject/w3e-core/ledger"
)

type (
	// PoolState is the serializable form of a pool. The staking asset is
	// referenced by symbol and resolved on restore.
	PoolState struct {
		ID                  uint64        `json:"id"`
		Asset               string        `json:"asset"`
		TotalStaked         string        `json:"totalStaked"`
		MaxStakeLimit       string        `json:"maxStakeLimit"`
		MinStakeAmount      string        `json:"minStakeAmount"`
		RewardRatePerSecond string        `json:"rewardRatePerSecond"`
		LockPeriod          time.Duration `json:"lockPeriod"`
		IsActive            bool          `json:"isActive"`
		AccRewardPerShare   string        `json:"accRewardPerShare"`
		LastAccrualTime     time.Time     `json:"lastAccrualTime"`
		RewardReserve       string        `json:"rewardReserve"`
		TotalRewardsPaid    string        `json:"totalRewardsPaid"`
	}

	// UserStakeState is the serializable form of a user stake record.
	UserStakeState struct {
		Amount              string    `json:"amount"`
		RewardDebt          string    `json:"rewardDebt"`
		PendingBanked       string    `json:"pendingBanked"`
		LastStakeTime       time.Time `json:"lastStakeTime"`
		TotalRewardsClaimed string    `json:"totalRewardsClaimed"`
	}

	// State is the serializable snapshot of the staking system.
	State struct {
		Admin           ledger.Address                               `json:"admin"`
		Custody         ledger.Address                               `json:"custody"`
		EmergencyFeeBps uint64                                       `json:"emergencyFeeBps"`
		Pools           []PoolState                                  `json:"pools"`
		Stakes          map[uint64]map[ledger.Address]UserStakeState `json:"stakes,omitempty"`
		CollectedFees   map[uint64]string                            `json:"collectedFees,omitempty"`
	}
)

// Snapshot captures the full staking state.
func (sl *StakeLedger) Snapshot() *State {
	s := &State{
		Admin:           sl.admin,
		Custody:         sl.custody,
		EmergencyFeeBps: sl.emergencyFeeBps,
		Pools:           make([]PoolState, len(sl.registry.pools)),
	}
	for i, p := range sl.registry.pools {
		s.Pools[i] = PoolState{
			ID:                  p.id,
			Asset:               p.asset.Symbol(),
			TotalStaked:         p.totalStaked.String(),
			MaxStakeLimit:       p.maxStakeLimit.String(),
			MinStakeAmount:      p.minStakeAmount.String(),
			RewardRatePerSecond: p.rewardRate.String(),
			LockPeriod:          p.lockPeriod,
			IsActive:            p.active,
			AccRewardPerShare:   p.accRewardPerShare.String(),
			LastAccrualTime:     p.lastAccrualTime,
			RewardReserve:       p.rewardReserve.String(),
			TotalRewardsPaid:    p.totalRewardsPaid.String(),
		}
	}
	if len(sl.stakes) > 0 {
		s.Stakes = make(map[uint64]map[ledger.Address]UserStakeState, len(sl.stakes))
		for id, m := range sl.stakes {
			inner := make(map[ledger.Address]UserStakeState, len(m))
			for user, st := range m {
				inner[user] = UserStakeState{
					Amount:              st.amount.String(),
					RewardDebt:          st.rewardDebt.String(),
					PendingBanked:       st.pendingBanked.String(),
					LastStakeTime:       st.lastStakeTime,
					TotalRewardsClaimed: st.totalClaimed.String(),
				}
			}
			s.Stakes[id] = inner
		}
	}
	if len(sl.collectedFees) > 0 {
		s.CollectedFees = make(map[uint64]string, len(sl.collectedFees))
		for id, fees := range sl.collectedFees {
			s.CollectedFees[id] = fees.String()
		}
	}
	return s
}

// FromState rebuilds the staking system from a snapshot. Assets are
// resolved by symbol through the given lookup.
func FromState(s *State, assetBySymbol func(string) (*ledger.Ledger, bool)) (*StakeLedger, error) {
	sl, err := NewStakeLedger(NewPoolRegistry(), s.Admin, s.Custody)
	if err != nil {
		return nil, err
	}
	sl.emergencyFeeBps = s.EmergencyFeeBps
	for _, ps := range s.Pools {
		asset, ok := assetBySymbol(ps.Asset)
		if !ok {
			return nil, errors.Errorf("unknown staking asset %q for pool %d", ps.Asset, ps.ID)
		}
		p := &Pool{
			id:         ps.ID,
			asset:      asset,
			lockPeriod: ps.LockPeriod,
			active:     ps.IsActive,
		}
		if p.totalStaked, err = parseAmount(ps.TotalStaked); err != nil {
			return nil, err
		}
		if p.maxStakeLimit, err = parseAmount(ps.MaxStakeLimit); err != nil {
			return nil, err
		}
		if p.minStakeAmount, err = parseAmount(ps.MinStakeAmount); err != nil {
			return nil, err
		}
		if p.rewardRate, err = parseAmount(ps.RewardRatePerSecond); err != nil {
			return nil, err
		}
		if p.accRewardPerShare, err = parseAmount(ps.AccRewardPerShare); err != nil {
			return nil, err
		}
		if p.rewardReserve, err = parseAmount(ps.RewardReserve); err != nil {
			return nil, err
		}
		if p.totalRewardsPaid, err = parseAmount(ps.TotalRewardsPaid); err != nil {
			return nil, err
		}
		p.lastAccrualTime = ps.LastAccrualTime
		if p.id != uint64(len(sl.registry.pools)) {
			return nil, errors.Errorf("pool ids not sequential: got %d, want %d", p.id, len(sl.registry.pools))
		}
		sl.registry.pools = append(sl.registry.pools, p)
	}
	for id, m := range s.Stakes {
		if id >= uint64(len(sl.registry.pools)) {
			return nil, errors.Wrapf(ErrPoolNotFound, "stake records for pool %d", id)
		}
		inner := make(map[ledger.Address]*UserStake, len(m))
		for user, ss := range m {
			st := newUserStake()
			if st.amount, err = parseAmount(ss.Amount); err != nil {
				return nil, err
			}
			if st.rewardDebt, err = parseAmount(ss.RewardDebt); err != nil {
				return nil, err
			}
			if st.pendingBanked, err = parseAmount(ss.PendingBanked); err != nil {
				return nil, err
			}
			if st.totalClaimed, err = parseAmount(ss.TotalRewardsClaimed); err != nil {
				return nil, err
			}
			st.lastStakeTime = ss.LastStakeTime
			inner[user] = st
			if st.amount.Sign() > 0 {
				sl.indexAdd(user, id)
			}
		}
		sl.stakes[id] = inner
	}
	for id, raw := range s.CollectedFees {
		fees, err := parseAmount(raw)
		if err != nil {
			return nil, err
		}
		sl.collectedFees[id] = fees
	}
	return sl, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("failed to parse amount %q", s)
	}
	return v, nil
}
