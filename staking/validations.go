// Copyright (c) 2024 W3E Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// Errors of the staking state machine. All rejections are deterministic and
// leave state unchanged.
var (
	ErrPoolNotFound              = errors.New("pool does not exist")
	ErrPoolInactive              = errors.New("pool is not accepting stakes")
	ErrPoolLimitExceeded         = errors.New("pool stake limit exceeded")
	ErrBelowMinimumStake         = errors.New("stake below pool minimum")
	ErrTokensLocked              = errors.New("staked tokens are still locked")
	ErrInsufficientStaked        = errors.New("insufficient staked amount")
	ErrNoRewardsToClaim          = errors.New("no rewards to claim")
	ErrInsufficientFees          = errors.New("insufficient collected fees")
	ErrInsufficientRewardReserve = errors.New("insufficient reward reserve")
	ErrInvalidPoolParam          = errors.New("invalid pool parameter")
)

func validatePoolParams(maxStakeLimit, minStakeAmount, rewardRate *big.Int, lockPeriod time.Duration) error {
	if maxStakeLimit == nil || maxStakeLimit.Sign() <= 0 {
		return errors.Wrap(ErrInvalidPoolParam, "max stake limit must be positive")
	}
	if minStakeAmount == nil || minStakeAmount.Sign() < 0 {
		return errors.Wrap(ErrInvalidPoolParam, "negative min stake amount")
	}
	if minStakeAmount.Cmp(maxStakeLimit) > 0 {
		return errors.Wrap(ErrInvalidPoolParam, "min stake amount exceeds max stake limit")
	}
	if rewardRate == nil || rewardRate.Sign() < 0 {
		return errors.Wrap(ErrInvalidPoolParam, "negative reward rate")
	}
	if lockPeriod < 0 {
		return errors.Wrap(ErrInvalidPoolParam, "negative lock period")
	}
	return nil
}

func validateStakeAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrap(ErrInvalidPoolParam, "stake amount must be positive")
	}
	return nil
}
